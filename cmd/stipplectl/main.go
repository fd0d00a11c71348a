package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stipple/internal/evo"
	"stipple/internal/fitness"
	"stipple/internal/logging"
	"stipple/internal/stats"
	"stipple/internal/storage"
	"stipple/pkg/stipple"
)

const (
	defaultDBPath       = storage.DefaultSQLitePath
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
)

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	defaults := evo.DefaultConfig()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional TOML run config")
	imagePath := fs.String("image", "", "target image (png|jpeg|gif|bmp|tiff|webp); empty uses the bundled sample")
	gens := fs.Int("gens", 500, "generation limit (0 runs until interrupted)")
	workers := fs.Int("workers", 0, "evaluation workers (0 uses GOMAXPROCS)")
	seed := fs.Int64("seed", 1, "rng seed")
	fps := fs.Float64("fps", 0, "generations per second cap (0 disables pacing)")
	previewPath := fs.String("preview", "", "rewrite this PNG on every improvement")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	artifactsDir := fs.String("artifacts-dir", defaultArtifactsDir, "run artifacts directory")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	stdinControl := fs.Bool("stdin-control", false, "read pause|continue|stop commands from stdin")
	calcWidth := fs.Int("calc-width", defaults.CalculationWidth, "calculation width in pixels")
	previewWidth := fs.Int("preview-width", defaults.PreviewWidth, "preview width in pixels")
	maxShapes := fs.Int("max-shapes", defaults.MaxShapes, "shapes per gene")
	minAlpha := fs.Float64("min-alpha", defaults.MinAlpha, "minimum shape alpha")
	generationSize := fs.Int("generation-size", defaults.GenerationSize, "genes per generation")
	survivors := fs.Int("survivors", defaults.Survivors, "genes kept per generation")
	sortKey := fs.String("sort", string(defaults.SortKey), "shape order: size_desc|size_asc|alpha_asc|alpha_desc")
	metric := fs.String("metric", string(defaults.Metric), "error metric: squared|absolute")
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings := runSettings{
		MaxGenerations: *gens,
		Workers:        *workers,
		Seed:           *seed,
		FPS:            *fps,
		Store:          *storeKind,
		DBPath:         *dbPath,
		ArtifactsDir:   *artifactsDir,
		Config:         defaults,
	}
	if *configPath != "" {
		fc, err := loadFileConfig(*configPath)
		if err != nil {
			return err
		}
		fc.apply(&settings)
	}
	// Flags given on the command line win over the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "image":
			settings.Image = *imagePath
		case "gens":
			settings.MaxGenerations = *gens
		case "workers":
			settings.Workers = *workers
		case "seed":
			settings.Seed = *seed
		case "fps":
			settings.FPS = *fps
		case "preview":
			settings.Preview = *previewPath
		case "store":
			settings.Store = *storeKind
		case "db-path":
			settings.DBPath = *dbPath
		case "artifacts-dir":
			settings.ArtifactsDir = *artifactsDir
		case "metrics-addr":
			settings.MetricsAddr = *metricsAddr
		case "calc-width":
			settings.Config.CalculationWidth = *calcWidth
		case "preview-width":
			settings.Config.PreviewWidth = *previewWidth
		case "max-shapes":
			settings.Config.MaxShapes = *maxShapes
		case "min-alpha":
			settings.Config.MinAlpha = *minAlpha
		case "generation-size":
			settings.Config.GenerationSize = *generationSize
		case "survivors":
			settings.Config.Survivors = *survivors
		case "sort":
			settings.Config.SortKey = evo.SortKey(*sortKey)
		case "metric":
			settings.Config.Metric = fitness.Metric(*metric)
		}
	})
	if settings.MaxGenerations < 0 {
		return errors.New("gens must be >= 0")
	}
	if err := settings.Config.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	stipple.SetLogger(logging.New(os.Stderr, level))
	defer stipple.SetLogger(nil)

	reg := prometheus.NewRegistry()
	metrics, err := stats.NewMetrics(reg)
	if err != nil {
		return err
	}
	if settings.MetricsAddr != "" {
		shutdown, err := serveMetrics(settings.MetricsAddr, reg)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	var control chan evo.MonitorCommand
	if *stdinControl {
		control = make(chan evo.MonitorCommand, 4)
		go readControl(ctx, os.Stdin, control)
	}

	client, err := stipple.New(stipple.Options{
		StoreKind:    settings.Store,
		DBPath:       settings.DBPath,
		ArtifactsDir: settings.ArtifactsDir,
		ExportsDir:   defaultExportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	cfg := settings.Config
	summary, err := client.Run(ctx, stipple.RunRequest{
		ImagePath:      settings.Image,
		Config:         &cfg,
		MaxGenerations: settings.MaxGenerations,
		Workers:        settings.Workers,
		Seed:           settings.Seed,
		FPS:            settings.FPS,
		PreviewPath:    settings.Preview,
		Control:        control,
		Metrics:        metrics,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "run completed run_id=%s source=%s size=%dx%d generations=%d evaluations=%s reason=%s\n",
		summary.RunID, summary.Source, summary.Width, summary.Height, summary.Generations,
		humanize.Comma(int64(summary.Evaluations)), summary.StopReason)
	fmt.Fprintf(stdout, "final_best_error=%.6f score=%.6f best_generation=%d improvements=%d\n",
		summary.FinalBestError, summary.FinalScore, summary.BestGeneration, summary.Improvements)
	if summary.ArtifactsDir != "" {
		fmt.Fprintf(stdout, "artifacts_dir=%s\n", summary.ArtifactsDir)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := stipple.New(stipple.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, stipple.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		type runsItem struct {
			RunID          string  `json:"run_id"`
			CreatedAtUTC   string  `json:"created_at_utc"`
			Source         string  `json:"source"`
			Width          int     `json:"width"`
			Height         int     `json:"height"`
			Generations    int     `json:"generations"`
			FinalBestError float64 `json:"final_best_error"`
			FinalScore     float64 `json:"final_score"`
			StopReason     string  `json:"stop_reason"`
			Failure        string  `json:"failure,omitempty"`
		}
		items := make([]runsItem, 0, len(runs))
		for _, r := range runs {
			items = append(items, runsItem{
				RunID:          r.RunID,
				CreatedAtUTC:   r.CreatedAtUTC,
				Source:         r.Source,
				Width:          r.Width,
				Height:         r.Height,
				Generations:    r.Generations,
				FinalBestError: r.FinalBestError,
				FinalScore:     r.FinalScore,
				StopReason:     r.StopReason,
				Failure:        r.Failure,
			})
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}

	for _, r := range runs {
		created := r.CreatedAtUTC
		if t, err := time.Parse(time.RFC3339Nano, r.CreatedAtUTC); err == nil {
			created = humanize.Time(t)
		}
		fmt.Fprintf(stdout, "run_id=%s created=%q source=%s size=%dx%d generations=%s score=%.4f reason=%s\n",
			r.RunID, created, r.Source, r.Width, r.Height, humanize.Comma(int64(r.Generations)), r.FinalScore, r.StopReason)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run")
	csvPath := fs.String("csv", "", "read a fitness.csv artifact instead of the store")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var history []float64
	if *csvPath != "" {
		if *runID != "" || *latest {
			return errors.New("use either --csv or --run-id/--latest")
		}
		series, err := stats.ReadFitnessSeries(*csvPath)
		if err != nil {
			return err
		}
		history = series
		if *limit > 0 && len(history) > *limit {
			history = history[:*limit]
		}
	} else {
		if *runID != "" && *latest {
			return errors.New("use either --run-id or --latest, not both")
		}
		if *runID == "" && !*latest {
			return errors.New("fitness requires --run-id, --latest or --csv")
		}
		client, err := stipple.New(stipple.Options{StoreKind: *storeKind, DBPath: *dbPath})
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()

		requestLimit := *limit
		if requestLimit < 0 {
			requestLimit = 0
		}
		history, err = client.FitnessHistory(ctx, stipple.FitnessHistoryRequest{
			RunID:  *runID,
			Latest: *latest,
			Limit:  requestLimit,
		})
		if err != nil {
			return err
		}
	}

	if len(history) == 0 {
		fmt.Fprintln(stdout, "no fitness history")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}
	for i, best := range history {
		fmt.Fprintf(stdout, "generation=%d best_error=%.6f score=%.6f\n", i+1, best, fitness.Similarity(best))
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	scale := fs.Float64("scale", 0, "render scale over the calculation size (0 uses the run's preview width)")
	out := fs.String("out", "", "output PNG path (default exports/<run-id>.png)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDBPath, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := stipple.New(stipple.Options{
		StoreKind:  *storeKind,
		DBPath:     *dbPath,
		ExportsDir: defaultExportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, stipple.ExportRequest{
		RunID:   *runID,
		Latest:  *latest,
		Scale:   *scale,
		OutPath: *out,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s size=%dx%d score=%.6f\n",
		exported.RunID, exported.Path, exported.Width, exported.Height, fitness.Similarity(exported.Error))
	return nil
}

// serveMetrics exposes reg on addr until the returned shutdown is called.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stipple.Logger().Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// readControl forwards pause, continue and stop lines from r to control.
func readControl(ctx context.Context, r io.Reader, control chan<- evo.MonitorCommand) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		cmd, ok := parseControl(scanner.Text())
		if !ok {
			stipple.Logger().Warn("unknown control command", "line", scanner.Text())
			continue
		}
		select {
		case control <- cmd:
		case <-ctx.Done():
			return
		}
		if cmd == evo.CommandStop {
			return
		}
	}
}

func parseControl(line string) (evo.MonitorCommand, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "pause", "p":
		return evo.CommandPause, true
	case "continue", "c", "resume":
		return evo.CommandContinue, true
	case "stop", "s", "q":
		return evo.CommandStop, true
	default:
		return "", false
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: stipplectl <run|runs|fitness|export> [flags]", msg)
}
