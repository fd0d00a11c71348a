package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"stipple/internal/evo"
	"stipple/internal/fitness"
)

// fileConfig is the TOML form of a run. Unset keys keep their defaults.
type fileConfig struct {
	Image          string   `toml:"image"`
	MaxGenerations *int     `toml:"max_generations"`
	Workers        *int     `toml:"workers"`
	Seed           *int64   `toml:"seed"`
	FPS            *float64 `toml:"fps"`
	Preview        string   `toml:"preview"`
	Store          string   `toml:"store"`
	DBPath         string   `toml:"db_path"`
	ArtifactsDir   string   `toml:"artifacts_dir"`
	MetricsAddr    string   `toml:"metrics_addr"`

	Evolution evolutionSection `toml:"evolution"`
}

type evolutionSection struct {
	CalculationWidth         *int     `toml:"calculation_width"`
	PreviewWidth             *int     `toml:"preview_width"`
	MaxShapes                *int     `toml:"max_shapes"`
	MinAlpha                 *float64 `toml:"min_alpha"`
	MinSize                  *float64 `toml:"min_size"`
	GenerationSize           *int     `toml:"generation_size"`
	Survivors                *int     `toml:"survivors"`
	SizeExponent             *float64 `toml:"size_exponent"`
	ShrinkProbability        *float64 `toml:"shrink_probability"`
	PointMutationProbability *float64 `toml:"point_mutation_probability"`
	PositionDelta            *float64 `toml:"position_delta"`
	ColorDelta               *float64 `toml:"color_delta"`
	AlphaDelta               *float64 `toml:"alpha_delta"`
	SizeJitter               *float64 `toml:"size_jitter"`
	SortKey                  string   `toml:"sort"`
	Metric                   string   `toml:"metric"`
}

// runSettings is everything the run command resolves from defaults, the
// config file and flags, in that order of precedence.
type runSettings struct {
	Image          string
	MaxGenerations int
	Workers        int
	Seed           int64
	FPS            float64
	Preview        string
	Store          string
	DBPath         string
	ArtifactsDir   string
	MetricsAddr    string
	Config         evo.Config
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}
	return fc, nil
}

func (fc fileConfig) apply(s *runSettings) {
	setString(&s.Image, fc.Image)
	setString(&s.Preview, fc.Preview)
	setString(&s.Store, fc.Store)
	setString(&s.DBPath, fc.DBPath)
	setString(&s.ArtifactsDir, fc.ArtifactsDir)
	setString(&s.MetricsAddr, fc.MetricsAddr)
	setValue(&s.MaxGenerations, fc.MaxGenerations)
	setValue(&s.Workers, fc.Workers)
	setValue(&s.Seed, fc.Seed)
	setValue(&s.FPS, fc.FPS)

	e := fc.Evolution
	c := &s.Config
	setValue(&c.CalculationWidth, e.CalculationWidth)
	setValue(&c.PreviewWidth, e.PreviewWidth)
	setValue(&c.MaxShapes, e.MaxShapes)
	setValue(&c.MinAlpha, e.MinAlpha)
	setValue(&c.MinSize, e.MinSize)
	setValue(&c.GenerationSize, e.GenerationSize)
	setValue(&c.Survivors, e.Survivors)
	setValue(&c.SizeExponent, e.SizeExponent)
	setValue(&c.ShrinkProbability, e.ShrinkProbability)
	setValue(&c.PointMutationProbability, e.PointMutationProbability)
	setValue(&c.PositionDelta, e.PositionDelta)
	setValue(&c.ColorDelta, e.ColorDelta)
	setValue(&c.AlphaDelta, e.AlphaDelta)
	setValue(&c.SizeJitter, e.SizeJitter)
	if e.SortKey != "" {
		c.SortKey = evo.SortKey(e.SortKey)
	}
	if e.Metric != "" {
		c.Metric = fitness.Metric(e.Metric)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setValue[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
