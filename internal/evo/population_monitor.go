package evo

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"

	"stipple/internal/fitness"
	"stipple/internal/model"
	"stipple/internal/preview"
	"stipple/internal/raster"
)

// GenerationStats summarizes one finished generation.
type GenerationStats struct {
	Generation     int
	Evaluated      int
	GenerationBest float64
	MeanError      float64
	BestOfRun      float64
	Improved       bool
	Duration       time.Duration
}

type RunResult struct {
	Generations      int
	Evaluations      int
	Best             model.ScoredGene
	BestGeneration   int
	Improvements     int
	BestByGeneration []float64
	StopReason       StopReason
}

type MonitorConfig struct {
	Config     Config
	Target     []uint8
	Width      int
	Height     int
	Rasterizer raster.Rasterizer

	Sink preview.Sink
	// PreviewScale is read on every improvement; nil uses Config.PreviewScale.
	PreviewScale func() float64

	Clock         FrameClock
	Control       <-chan MonitorCommand
	StopRequested func() bool

	// MaxGenerations stops the run after that many generations; 0 runs until
	// cancelled.
	MaxGenerations int
	Workers        int
	Seed           int64
	Observer       func(GenerationStats)
}

// Monitor drives the generation loop for one run. It owns the run state:
// target buffer, dimensions, best-of-run and the cancellation inputs.
type Monitor struct {
	cfg       MonitorConfig
	evaluator fitness.Evaluator
	mutator   *Mutator
}

func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: zero-size target %dx%d", ErrConfig, cfg.Width, cfg.Height)
	}
	if len(cfg.Target) != cfg.Width*cfg.Height*4 {
		return nil, fmt.Errorf("%w: target buffer has %d samples, want %d", ErrConfig, len(cfg.Target), cfg.Width*cfg.Height*4)
	}
	if cfg.Rasterizer == nil {
		return nil, fmt.Errorf("rasterizer is required")
	}
	if cfg.MaxGenerations < 0 {
		return nil, fmt.Errorf("%w: max generations must be >= 0", ErrConfig)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Clock == nil {
		cfg.Clock = ImmediateClock{}
	}
	if cfg.PreviewScale == nil {
		scale := cfg.Config.PreviewScale()
		cfg.PreviewScale = func() float64 { return scale }
	}

	mutator, err := NewMutator(cfg.Config, cfg.Width, cfg.Height, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:       cfg,
		evaluator: fitness.Evaluator{Metric: cfg.Config.Metric},
		mutator:   mutator,
	}, nil
}

// Run evolves seed until the run is cancelled, stopped or reaches
// MaxGenerations. An empty seed starts from one gene without shapes.
// Cancellation is only observed after a generation has been procreated, at
// the frame yield. On failure the partial result is returned with the error.
func (m *Monitor) Run(ctx context.Context, seed []model.Gene) (RunResult, error) {
	log := Logger()
	population := m.seedPopulation(seed)
	evalCtx := context.WithoutCancel(ctx)

	var tracker BestTracker
	result := RunResult{}
	if m.cfg.MaxGenerations > 0 {
		result.BestByGeneration = make([]float64, 0, m.cfg.MaxGenerations)
	}
	finish := func(reason StopReason) RunResult {
		result.StopReason = reason
		result.Best, _ = tracker.Best()
		result.Improvements = tracker.Improvements()
		return result
	}

	for gen := 1; ; gen++ {
		started := time.Now()
		scored, err := m.evaluatePopulation(evalCtx, population)
		if err != nil {
			log.Error("generation evaluation failed", "generation", gen, "error", err)
			return finish(StopFailed), fmt.Errorf("evaluate generation %d: %w", gen, err)
		}
		result.Evaluations += len(scored)

		genBest, _ := FindBest(scored)
		improved := tracker.Offer(genBest)
		if improved {
			result.BestGeneration = gen
			log.Info("best of run improved", "generation", gen, "error", genBest.Error, "score", fitness.Similarity(genBest.Error))
			m.showPreview(genBest)
		}
		best, _ := tracker.Best()
		result.BestByGeneration = append(result.BestByGeneration, best.Error)

		population, err = Procreate(scored, m.cfg.Config.GenerationSize, m.cfg.Config.Survivors, m.mutator)
		if err != nil {
			return finish(StopFailed), fmt.Errorf("procreate generation %d: %w", gen, err)
		}
		result.Generations = gen

		stats := summarizeGeneration(scored, gen, genBest.Error, best.Error, improved, time.Since(started))
		log.Debug("generation complete", "generation", gen, "best", stats.GenerationBest, "mean", stats.MeanError, "duration", stats.Duration)
		if m.cfg.Observer != nil {
			m.cfg.Observer(stats)
		}

		if m.cfg.MaxGenerations > 0 && gen >= m.cfg.MaxGenerations {
			return finish(StopGenerationLimit), nil
		}
		if reason, stop := m.yield(ctx); stop {
			log.Info("run stopped", "generation", gen, "reason", reason)
			return finish(reason), nil
		}
	}
}

// seedPopulation pads the seed genes with their mutants so the first
// generation already has GenerationSize members.
func (m *Monitor) seedPopulation(seed []model.Gene) []model.Gene {
	if len(seed) == 0 {
		seed = []model.Gene{{}}
	}
	size := m.cfg.Config.GenerationSize
	if len(seed) > size {
		size = len(seed)
	}
	population := make([]model.Gene, 0, size)
	for _, gene := range seed {
		population = append(population, gene.Clone())
	}
	for i := 0; len(population) < size; i++ {
		population = append(population, m.mutator.Mutate(seed[i%len(seed)]))
	}
	return population
}

func (m *Monitor) evaluatePopulation(ctx context.Context, population []model.Gene) ([]model.ScoredGene, error) {
	workers := m.cfg.Workers
	if workers > len(population) {
		workers = len(population)
	}

	scored := make([]model.ScoredGene, len(population))
	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(workers).
		WithCancelOnError().
		WithFirstError()
	for i := range population {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			score, err := m.evaluateGene(population[i])
			if err != nil {
				return fmt.Errorf("gene %d: %w", i, err)
			}
			scored[i] = model.ScoredGene{Gene: population[i], Error: score}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return scored, nil
}

func (m *Monitor) evaluateGene(gene model.Gene) (float64, error) {
	img, err := m.cfg.Rasterizer.Render(gene, 1)
	if err != nil {
		return 0, fmt.Errorf("render: %w", err)
	}
	return m.evaluator.Score(m.cfg.Target, img.Pix)
}

func (m *Monitor) showPreview(best model.ScoredGene) {
	if m.cfg.Sink == nil {
		return
	}
	img, err := m.cfg.Rasterizer.Render(best.Gene, m.cfg.PreviewScale())
	if err != nil {
		Logger().Warn("preview render failed", "error", err)
		return
	}
	m.cfg.Sink.Show(img, best.Error)
}

// yield waits for the next frame and then checks every cancellation input.
func (m *Monitor) yield(ctx context.Context) (StopReason, bool) {
	if err := m.cfg.Clock.WaitFrame(ctx); err != nil {
		return StopCancelled, true
	}
	if ctx.Err() != nil {
		return StopCancelled, true
	}
	if m.cfg.StopRequested != nil && m.cfg.StopRequested() {
		return StopHook, true
	}
	return m.consumeControl(ctx)
}

// consumeControl drains pending commands. A pause blocks here until a
// continue or stop arrives, ctx is done or the channel is closed, which
// stops the run.
func (m *Monitor) consumeControl(ctx context.Context) (StopReason, bool) {
	paused := false
	for {
		var (
			cmd MonitorCommand
			ok  bool
		)
		if paused {
			select {
			case <-ctx.Done():
				return StopCancelled, true
			case cmd, ok = <-m.cfg.Control:
			}
		} else {
			select {
			case cmd, ok = <-m.cfg.Control:
			default:
				return "", false
			}
		}
		if !ok {
			// A closed channel can never deliver continue.
			if paused {
				return StopCommand, true
			}
			return "", false
		}

		switch cmd {
		case CommandStop:
			return StopCommand, true
		case CommandPause:
			if !paused {
				Logger().Info("run paused")
			}
			paused = true
		case CommandContinue:
			if paused {
				Logger().Info("run continued")
			}
			paused = false
		}
	}
}

func summarizeGeneration(scored []model.ScoredGene, generation int, genBest, bestOfRun float64, improved bool, d time.Duration) GenerationStats {
	total := 0.0
	for _, item := range scored {
		total += item.Error
	}
	mean := 0.0
	if len(scored) > 0 {
		mean = total / float64(len(scored))
	}
	return GenerationStats{
		Generation:     generation,
		Evaluated:      len(scored),
		GenerationBest: genBest,
		MeanError:      mean,
		BestOfRun:      bestOfRun,
		Improved:       improved,
		Duration:       d,
	}
}
