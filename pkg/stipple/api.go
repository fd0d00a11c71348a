package stipple

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"stipple/internal/evo"
	"stipple/internal/fitness"
	"stipple/internal/model"
	"stipple/internal/preview"
	"stipple/internal/raster"
	"stipple/internal/source"
	"stipple/internal/stats"
	"stipple/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
)

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

type Client struct {
	store       storage.Store
	initialized bool

	artifactsDir string
	exportsDir   string
}

// RunRequest describes one evolution run. Zero values fall back to
// evo.DefaultConfig and the bundled sample image.
type RunRequest struct {
	ImagePath      string
	Config         *evo.Config
	MaxGenerations int
	Workers        int
	Seed           int64
	// FPS paces generations with a ticker when Clock is nil; 0 runs flat out.
	FPS   float64
	Clock evo.FrameClock

	Sink        preview.Sink
	Zoom        *preview.Zoom
	PreviewPath string

	Control       <-chan evo.MonitorCommand
	StopRequested func() bool
	Metrics       *stats.Metrics
	Observer      func(evo.GenerationStats)
	// SkipArtifacts leaves the artifacts directory untouched.
	SkipArtifacts bool
}

type RunSummary struct {
	RunID            string
	Source           string
	Width            int
	Height           int
	ArtifactsDir     string
	Generations      int
	Evaluations      int
	Improvements     int
	BestGeneration   int
	BestByGeneration []float64
	FinalBestError   float64
	FinalScore       float64
	StopReason       string
	Best             model.Gene
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Source         string
	Width          int
	Height         int
	Generations    int
	Improvements   int
	FinalBestError float64
	FinalScore     float64
	StopReason     string
	Failure        string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	// Scale multiplies the calculation size; 0 uses the run's preview width.
	Scale   float64
	OutPath string
}

type ExportSummary struct {
	RunID  string
	Path   string
	Width  int
	Height int
	Error  float64
}

// SetLogger routes run lifecycle and per-generation logs to l.
func SetLogger(l *slog.Logger) {
	evo.SetLogger(l)
}

func Logger() *slog.Logger {
	return evo.Logger()
}

func New(opts Options) (*Client, error) {
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(opts.StoreKind, opts.DBPath)
	if err != nil {
		return nil, err
	}
	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// Run loads the target, evolves it until the request's stop conditions and
// archives the outcome. A failed run is still archived and its partial
// summary returned with the error.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	cfg := evo.DefaultConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		return RunSummary{}, err
	}
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	img, sourceName, err := loadSource(req.ImagePath)
	if err != nil {
		return RunSummary{}, err
	}
	target, err := source.Prepare(img, cfg.CalculationWidth)
	if err != nil {
		return RunSummary{}, err
	}
	rasterizer, err := raster.NewCircleRasterizer(target.Width, target.Height)
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	createdAt := time.Now().UTC()
	log := Logger().With("run_id", runID)
	log.Info("run started", "source", sourceName, "width", target.Width, "height", target.Height)

	clock := req.Clock
	if clock == nil && req.FPS > 0 {
		ticker := evo.NewTickerClock(req.FPS)
		defer ticker.Stop()
		clock = ticker
	}

	sinks := preview.Multi{preview.LogSink{Logger: log}}
	if req.Sink != nil {
		sinks = append(sinks, req.Sink)
	}
	if req.PreviewPath != "" {
		sinks = append(sinks, &preview.FileSink{Path: req.PreviewPath, Logger: log})
	}
	var previewScale func() float64
	if req.Zoom != nil {
		previewScale = req.Zoom.Scale
	}

	meanByGeneration := make([]float64, 0, 64)
	observer := func(s evo.GenerationStats) {
		meanByGeneration = append(meanByGeneration, s.MeanError)
		if req.Metrics != nil {
			req.Metrics.Observe(s)
		}
		if req.Observer != nil {
			req.Observer(s)
		}
	}

	monitor, err := evo.NewMonitor(evo.MonitorConfig{
		Config:         cfg,
		Target:         target.Pix,
		Width:          target.Width,
		Height:         target.Height,
		Rasterizer:     rasterizer,
		Sink:           sinks,
		PreviewScale:   previewScale,
		Clock:          clock,
		Control:        req.Control,
		StopRequested:  req.StopRequested,
		MaxGenerations: req.MaxGenerations,
		Workers:        req.Workers,
		Seed:           req.Seed,
		Observer:       observer,
	})
	if err != nil {
		return RunSummary{}, err
	}

	result, runErr := monitor.Run(ctx, nil)
	summary := RunSummary{
		RunID:            runID,
		Source:           sourceName,
		Width:            target.Width,
		Height:           target.Height,
		Generations:      result.Generations,
		Evaluations:      result.Evaluations,
		Improvements:     result.Improvements,
		BestGeneration:   result.BestGeneration,
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestError:   result.Best.Error,
		FinalScore:       fitness.Similarity(result.Best.Error),
		StopReason:       string(result.StopReason),
		Best:             result.Best.Gene.Clone(),
	}

	runCfg := cfg.RunConfig()
	runCfg.MaxGenerations = req.MaxGenerations
	runCfg.Workers = req.Workers
	runCfg.FPS = req.FPS
	runCfg.Seed = req.Seed

	// Archiving uses a fresh context so a cancelled run is still recorded.
	archiveCtx := context.WithoutCancel(ctx)
	record := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		CreatedAtUTC:    createdAt.Format(time.RFC3339Nano),
		Source:          sourceName,
		Width:           target.Width,
		Height:          target.Height,
		Config:          runCfg,
		Generations:     result.Generations,
		Improvements:    result.Improvements,
		FinalBestError:  result.Best.Error,
		StopReason:      string(result.StopReason),
	}
	if runErr != nil {
		record.Failure = runErr.Error()
	}
	if err := c.archive(archiveCtx, record, result); err != nil {
		return summary, errors.Join(runErr, fmt.Errorf("archive run: %w", err))
	}

	if !req.SkipArtifacts && result.Generations > 0 {
		best, err := rasterizer.Render(result.Best.Gene, cfg.PreviewScale())
		if err != nil {
			return summary, errors.Join(runErr, fmt.Errorf("render best: %w", err))
		}
		runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
			RunID:            runID,
			CreatedAt:        createdAt,
			Source:           sourceName,
			Config:           runCfg,
			Generations:      result.Generations,
			FinalBestError:   result.Best.Error,
			StopReason:       string(result.StopReason),
			BestByGeneration: result.BestByGeneration,
			MeanByGeneration: meanByGeneration,
			Best:             best,
		})
		if err != nil {
			return summary, errors.Join(runErr, fmt.Errorf("write artifacts: %w", err))
		}
		summary.ArtifactsDir = filepath.Clean(runDir)
	}

	log.Info("run finished",
		"generations", result.Generations,
		"error", result.Best.Error,
		"score", summary.FinalScore,
		"reason", result.StopReason,
	)
	return summary, runErr
}

func (c *Client) archive(ctx context.Context, record model.RunRecord, result evo.RunResult) error {
	if err := c.store.SaveRun(ctx, record); err != nil {
		return err
	}
	if err := c.store.SaveFitnessHistory(ctx, record.ID, result.BestByGeneration); err != nil {
		return err
	}
	if result.Generations == 0 {
		return nil
	}
	return c.store.SaveBestGene(ctx, model.BestGeneRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           record.ID,
		Generation:      result.BestGeneration,
		Error:           result.Best.Error,
		Width:           record.Width,
		Height:          record.Height,
		Gene:            result.Best.Gene,
	})
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	out := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunItem{
			RunID:          r.ID,
			CreatedAtUTC:   r.CreatedAtUTC,
			Source:         r.Source,
			Width:          r.Width,
			Height:         r.Height,
			Generations:    r.Generations,
			Improvements:   r.Improvements,
			FinalBestError: r.FinalBestError,
			FinalScore:     fitness.Similarity(r.FinalBestError),
			StopReason:     r.StopReason,
			Failure:        r.Failure,
		})
	}
	return out, nil
}

func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: fitness history for %s", ErrRunNotFound, runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

// Export re-renders the archived best gene of a run as a PNG.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.Scale < 0 {
		return ExportSummary{}, errors.New("scale must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	best, ok, err := c.store.GetBestGene(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if !ok {
		return ExportSummary{}, fmt.Errorf("%w: best gene for %s", ErrRunNotFound, runID)
	}
	scale := req.Scale
	if scale == 0 {
		run, ok, err := c.store.GetRun(ctx, runID)
		if err != nil {
			return ExportSummary{}, err
		}
		scale = 1
		if ok && run.Config.CalculationWidth > 0 {
			scale = float64(run.Config.PreviewWidth) / float64(run.Config.CalculationWidth)
		}
	}

	rasterizer, err := raster.NewCircleRasterizer(best.Width, best.Height)
	if err != nil {
		return ExportSummary{}, err
	}
	img, err := rasterizer.Render(best.Gene, scale)
	if err != nil {
		return ExportSummary{}, err
	}

	outPath := req.OutPath
	if outPath == "" {
		outPath = filepath.Join(c.exportsDir, runID+".png")
	}
	if err := preview.WritePNG(outPath, img); err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{
		RunID:  runID,
		Path:   filepath.Clean(outPath),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		Error:  best.Error,
	}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if err := c.Init(ctx); err != nil {
		return "", err
	}
	if latest {
		runs, err := c.store.ListRuns(ctx)
		if err != nil {
			return "", err
		}
		if len(runs) == 0 {
			return "", errors.New("no runs available")
		}
		return runs[0].ID, nil
	}
	if runID == "" {
		return "", errors.New("run id or latest is required")
	}
	return runID, nil
}

func loadSource(path string) (image.Image, string, error) {
	if path == "" {
		img, err := source.Bundled()
		return img, source.BundledName, err
	}
	img, err := source.Load(path)
	if err != nil {
		return nil, "", err
	}
	return img, filepath.Clean(path), nil
}
