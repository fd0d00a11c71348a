package evo

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config: %v", err)
	}
	if got := cfg.PreviewScale(); got != 2 {
		t.Fatalf("expected preview scale 2, got %f", got)
	}
	rc := cfg.RunConfig()
	if rc.GenerationSize != 20 || rc.Survivors != 4 || rc.SortKey != "size_desc" || rc.Metric != "squared" {
		t.Fatalf("unexpected run config: %+v", rc)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "indivisible generation", mutate: func(c *Config) { c.GenerationSize = 21 }},
		{name: "survivors exceed population", mutate: func(c *Config) { c.Survivors = 40; c.GenerationSize = 20 }},
		{name: "zero survivors", mutate: func(c *Config) { c.Survivors = 0 }},
		{name: "zero calculation width", mutate: func(c *Config) { c.CalculationWidth = 0 }},
		{name: "zero preview width", mutate: func(c *Config) { c.PreviewWidth = 0 }},
		{name: "zero max shapes", mutate: func(c *Config) { c.MaxShapes = 0 }},
		{name: "alpha above one", mutate: func(c *Config) { c.MinAlpha = 1.5 }},
		{name: "zero alpha", mutate: func(c *Config) { c.MinAlpha = 0 }},
		{name: "zero size", mutate: func(c *Config) { c.MinSize = 0 }},
		{name: "flat size exponent", mutate: func(c *Config) { c.SizeExponent = 0.5 }},
		{name: "shrink probability", mutate: func(c *Config) { c.ShrinkProbability = 2 }},
		{name: "negative delta", mutate: func(c *Config) { c.ColorDelta = -1 }},
		{name: "size jitter", mutate: func(c *Config) { c.SizeJitter = 1 }},
		{name: "sort key", mutate: func(c *Config) { c.SortKey = "random" }},
		{name: "metric", mutate: func(c *Config) { c.Metric = "cosine" }},
		{name: "nan alpha", mutate: func(c *Config) { c.MinAlpha = math.NaN() }},
		{name: "nan size", mutate: func(c *Config) { c.MinSize = math.NaN() }},
		{name: "infinite size", mutate: func(c *Config) { c.MinSize = math.Inf(1) }},
		{name: "nan size exponent", mutate: func(c *Config) { c.SizeExponent = math.NaN() }},
		{name: "infinite size exponent", mutate: func(c *Config) { c.SizeExponent = math.Inf(1) }},
		{name: "nan shrink probability", mutate: func(c *Config) { c.ShrinkProbability = math.NaN() }},
		{name: "nan point probability", mutate: func(c *Config) { c.PointMutationProbability = math.NaN() }},
		{name: "infinite position delta", mutate: func(c *Config) { c.PositionDelta = math.Inf(1) }},
		{name: "nan color delta", mutate: func(c *Config) { c.ColorDelta = math.NaN() }},
		{name: "infinite alpha delta", mutate: func(c *Config) { c.AlphaDelta = math.Inf(1) }},
		{name: "nan size jitter", mutate: func(c *Config) { c.SizeJitter = math.NaN() }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

func TestParseSortKey(t *testing.T) {
	got, err := ParseSortKey("")
	if err != nil || got != SortSizeDesc {
		t.Fatalf("empty key: got %q err=%v", got, err)
	}
	got, err = ParseSortKey("alpha_asc")
	if err != nil || got != SortAlphaAsc {
		t.Fatalf("alpha key: got %q err=%v", got, err)
	}
	if _, err := ParseSortKey("depth"); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}
