package evo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"stipple/internal/model"
)

// Mutator produces perturbed copies of genes. It owns its random source and
// must only be used from one goroutine.
type Mutator struct {
	cfg     Config
	width   float64
	height  float64
	maxSize float64
	rng     *rand.Rand
}

func NewMutator(cfg Config, width, height int, rng *rand.Rand) (*Mutator, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: zero-size target %dx%d", ErrConfig, width, height)
	}
	if err := cfg.checkFinite(); err != nil {
		return nil, err
	}
	maxSize := math.Max(float64(width), float64(height))
	if cfg.MinSize > maxSize {
		return nil, fmt.Errorf("%w: min size %.2f exceeds image extent %.0f", ErrConfig, cfg.MinSize, maxSize)
	}
	return &Mutator{
		cfg:     cfg,
		width:   float64(width),
		height:  float64(height),
		maxSize: maxSize,
		rng:     rng,
	}, nil
}

// Mutate returns a new gene derived from gene. Either one shape is removed
// (only at capacity) or one shape is perturbed, then the gene is topped up to
// MaxShapes with random shapes and re-sorted. The input is never modified.
func (m *Mutator) Mutate(gene model.Gene) model.Gene {
	capacity := m.cfg.MaxShapes
	if len(gene.Shapes) > capacity {
		capacity = len(gene.Shapes)
	}
	shapes := make([]model.Shape, len(gene.Shapes), capacity)
	copy(shapes, gene.Shapes)

	if len(shapes) >= m.cfg.MaxShapes && m.rng.Float64() < m.cfg.ShrinkProbability {
		idx := m.rng.Intn(len(shapes))
		shapes = append(shapes[:idx], shapes[idx+1:]...)
	} else if len(shapes) > 0 && m.rng.Float64() < m.cfg.PointMutationProbability {
		idx := m.rng.Intn(len(shapes))
		shapes[idx] = m.perturb(shapes[idx])
	}
	// Genes built with a larger cap than the current one are trimmed.
	if len(shapes) > m.cfg.MaxShapes {
		shapes = shapes[:m.cfg.MaxShapes]
	}

	for len(shapes) < m.cfg.MaxShapes {
		shapes = append(shapes, m.randomShape())
	}
	sortShapes(shapes, m.cfg.SortKey)
	return model.Gene{Shapes: shapes}
}

func (m *Mutator) perturb(s model.Shape) model.Shape {
	return model.Shape{
		Size: clamp(s.Size*m.vary(m.cfg.SizeJitter, 1), m.cfg.MinSize, m.maxSize),
		X:    clamp(m.vary(m.cfg.PositionDelta, s.X), 0, m.width),
		Y:    clamp(m.vary(m.cfg.PositionDelta, s.Y), 0, m.height),
		R:    clamp(m.vary(m.cfg.ColorDelta, s.R), 0, 255),
		G:    clamp(m.vary(m.cfg.ColorDelta, s.G), 0, 255),
		B:    clamp(m.vary(m.cfg.ColorDelta, s.B), 0, 255),
		A:    clamp(m.vary(m.cfg.AlphaDelta, s.A), m.cfg.MinAlpha, 1),
	}
}

func (m *Mutator) randomShape() model.Shape {
	size := math.Pow(m.rng.Float64(), m.cfg.SizeExponent) * m.maxSize
	return model.Shape{
		X:    m.between(0, m.width),
		Y:    m.between(0, m.height),
		Size: clamp(size, m.cfg.MinSize, m.maxSize),
		R:    m.between(0, 255),
		G:    m.between(0, 255),
		B:    m.between(0, 255),
		A:    m.between(m.cfg.MinAlpha, 1),
	}
}

func (m *Mutator) between(from, to float64) float64 {
	return from + m.rng.Float64()*(to-from)
}

// vary returns original shifted by a uniform delta in [-spread, spread).
func (m *Mutator) vary(spread, original float64) float64 {
	return original + m.between(-spread, spread)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func sortShapes(shapes []model.Shape, key SortKey) {
	var less func(a, b model.Shape) bool
	switch key {
	case SortSizeAsc:
		less = func(a, b model.Shape) bool { return a.Size < b.Size }
	case SortAlphaAsc:
		less = func(a, b model.Shape) bool { return a.A < b.A }
	case SortAlphaDesc:
		less = func(a, b model.Shape) bool { return a.A > b.A }
	default:
		less = func(a, b model.Shape) bool { return a.Size > b.Size }
	}
	sort.SliceStable(shapes, func(i, j int) bool {
		return less(shapes[i], shapes[j])
	})
}
