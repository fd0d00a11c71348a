package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"stipple/internal/evo"
	"stipple/internal/logging"
	"stipple/internal/preview"
	"stipple/internal/storage"
	"stipple/internal/window"
	"stipple/pkg/stipple"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := evo.DefaultConfig()
	fs := flag.NewFlagSet("stipple", flag.ContinueOnError)
	imagePath := fs.String("image", "", "target image; empty uses the bundled sample")
	pick := fs.Bool("pick", false, "choose the target image with a file dialog")
	fs.IntVar(&cfg.CalculationWidth, "calc-width", cfg.CalculationWidth, "calculation width in pixels")
	fs.IntVar(&cfg.PreviewWidth, "preview-width", cfg.PreviewWidth, "initial preview width in pixels")
	fs.IntVar(&cfg.MaxShapes, "max-shapes", cfg.MaxShapes, "shapes per gene")
	seed := fs.Int64("seed", 1, "rng seed")
	workers := fs.Int("workers", 0, "evaluation workers (0 uses GOMAXPROCS)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", storage.DefaultSQLitePath, "sqlite database path")
	artifactsDir := fs.String("artifacts-dir", "runs", "run artifacts directory")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	stipple.SetLogger(logging.New(os.Stderr, level))

	path := *imagePath
	if *pick {
		if path, err = window.PickFile(); err != nil {
			return err
		}
	}

	client, err := stipple.New(stipple.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: *artifactsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	zoom := preview.NewZoom(cfg.CalculationWidth, cfg.PreviewWidth)
	clock := evo.NewSignalClock()
	win := window.New(window.Options{
		Title: "stipple",
		Zoom:  zoom,
		Clock: clock,
		Close: cancel,
	})

	done := make(chan error, 1)
	go func() {
		summary, err := client.Run(ctx, stipple.RunRequest{
			ImagePath: path,
			Config:    &cfg,
			Workers:   *workers,
			Seed:      *seed,
			Clock:     clock,
			Sink:      win,
			Zoom:      zoom,
			Observer:  win.Observe,
		})
		if err != nil {
			win.SetStatus("failed: " + err.Error())
		} else {
			win.SetStatus(fmt.Sprintf("%s after %d generations", summary.StopReason, summary.Generations))
		}
		done <- err
	}()

	winErr := win.Run()
	cancel()
	runErr := <-done
	if winErr != nil {
		return errors.Join(winErr, runErr)
	}
	return runErr
}
