package evo

import (
	"errors"
	"fmt"
	"math"

	"stipple/internal/fitness"
	"stipple/internal/model"
)

// ErrConfig marks configuration problems detected before a run starts.
var ErrConfig = errors.New("invalid evolution config")

// SortKey selects the shape order a gene is kept in after every mutation.
// The order is also the compositing order: the first shape is drawn first.
type SortKey string

const (
	SortSizeDesc  SortKey = "size_desc"
	SortSizeAsc   SortKey = "size_asc"
	SortAlphaAsc  SortKey = "alpha_asc"
	SortAlphaDesc SortKey = "alpha_desc"
)

func ParseSortKey(name string) (SortKey, error) {
	switch key := SortKey(name); key {
	case "":
		return SortSizeDesc, nil
	case SortSizeDesc, SortSizeAsc, SortAlphaAsc, SortAlphaDesc:
		return key, nil
	default:
		return "", fmt.Errorf("%w: unknown sort key %q", ErrConfig, name)
	}
}

// Config holds the settings that stay constant for one run.
type Config struct {
	CalculationWidth int
	PreviewWidth     int
	MaxShapes        int
	MinAlpha         float64
	MinSize          float64
	GenerationSize   int
	Survivors        int

	// SizeExponent biases new shapes toward small radii:
	// size = random()^SizeExponent * max(width, height).
	SizeExponent             float64
	ShrinkProbability        float64
	PointMutationProbability float64
	PositionDelta            float64
	ColorDelta               float64
	AlphaDelta               float64
	SizeJitter               float64
	SortKey                  SortKey
	Metric                   fitness.Metric
}

func DefaultConfig() Config {
	return Config{
		CalculationWidth:         100,
		PreviewWidth:             200,
		MaxShapes:                32,
		MinAlpha:                 0.2,
		MinSize:                  2,
		GenerationSize:           20,
		Survivors:                4,
		SizeExponent:             2,
		ShrinkProbability:        0.5,
		PointMutationProbability: 1,
		PositionDelta:            1,
		ColorDelta:               16,
		AlphaDelta:               0.01,
		SizeJitter:               0.1,
		SortKey:                  SortSizeDesc,
		Metric:                   fitness.MetricSquared,
	}
}

// PreviewScale is the factor between calculation and preview resolution.
func (c Config) PreviewScale() float64 {
	if c.CalculationWidth <= 0 {
		return 1
	}
	return float64(c.PreviewWidth) / float64(c.CalculationWidth)
}

func (c Config) Validate() error {
	if c.CalculationWidth <= 0 {
		return fmt.Errorf("%w: calculation width must be > 0", ErrConfig)
	}
	if c.PreviewWidth <= 0 {
		return fmt.Errorf("%w: preview width must be > 0", ErrConfig)
	}
	if c.MaxShapes <= 0 {
		return fmt.Errorf("%w: max shapes must be > 0", ErrConfig)
	}
	if err := c.checkFinite(); err != nil {
		return err
	}
	if c.MinAlpha <= 0 || c.MinAlpha > 1 {
		return fmt.Errorf("%w: min alpha must be in (0, 1]", ErrConfig)
	}
	if c.MinSize <= 0 {
		return fmt.Errorf("%w: min size must be > 0", ErrConfig)
	}
	if err := validateRatio(c.GenerationSize, c.Survivors); err != nil {
		return err
	}
	if c.SizeExponent < 1 {
		return fmt.Errorf("%w: size exponent must be >= 1", ErrConfig)
	}
	if !isProbability(c.ShrinkProbability) || !isProbability(c.PointMutationProbability) {
		return fmt.Errorf("%w: mutation probabilities must be in [0, 1]", ErrConfig)
	}
	if c.PositionDelta < 0 || c.ColorDelta < 0 || c.AlphaDelta < 0 {
		return fmt.Errorf("%w: mutation deltas must be >= 0", ErrConfig)
	}
	if c.SizeJitter < 0 || c.SizeJitter >= 1 {
		return fmt.Errorf("%w: size jitter must be in [0, 1)", ErrConfig)
	}
	if _, err := ParseSortKey(string(c.SortKey)); err != nil {
		return err
	}
	if _, err := fitness.ParseMetric(string(c.Metric)); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

// RunConfig copies the settings into the archived run record form.
func (c Config) RunConfig() model.RunConfig {
	return model.RunConfig{
		CalculationWidth:         c.CalculationWidth,
		PreviewWidth:             c.PreviewWidth,
		MaxShapes:                c.MaxShapes,
		MinAlpha:                 c.MinAlpha,
		MinSize:                  c.MinSize,
		GenerationSize:           c.GenerationSize,
		Survivors:                c.Survivors,
		SizeExponent:             c.SizeExponent,
		ShrinkProbability:        c.ShrinkProbability,
		PointMutationProbability: c.PointMutationProbability,
		PositionDelta:            c.PositionDelta,
		ColorDelta:               c.ColorDelta,
		AlphaDelta:               c.AlphaDelta,
		SizeJitter:               c.SizeJitter,
		SortKey:                  string(c.SortKey),
		Metric:                   string(c.Metric),
	}
}

// checkFinite rejects NaN and infinite tuning values, which slip past the
// ordered range checks and would leak into shape fields.
func (c Config) checkFinite() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"min alpha", c.MinAlpha},
		{"min size", c.MinSize},
		{"size exponent", c.SizeExponent},
		{"shrink probability", c.ShrinkProbability},
		{"point mutation probability", c.PointMutationProbability},
		{"position delta", c.PositionDelta},
		{"color delta", c.ColorDelta},
		{"alpha delta", c.AlphaDelta},
		{"size jitter", c.SizeJitter},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrConfig, f.name, f.value)
		}
	}
	return nil
}

func validateRatio(generationSize, survivors int) error {
	if generationSize <= 0 {
		return fmt.Errorf("%w: generation size must be > 0", ErrConfig)
	}
	if survivors <= 0 || survivors > generationSize {
		return fmt.Errorf("%w: survivors must be in [1, generation size], got %d", ErrConfig, survivors)
	}
	if generationSize%survivors != 0 {
		return fmt.Errorf("%w: generation size %d is not divisible by survivors %d", ErrConfig, generationSize, survivors)
	}
	return nil
}

func isProbability(p float64) bool {
	return p >= 0 && p <= 1
}
