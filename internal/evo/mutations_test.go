package evo

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"stipple/internal/model"
)

func newTestMutator(t *testing.T, cfg Config, width, height int, seed int64) *Mutator {
	t.Helper()
	m, err := NewMutator(cfg, width, height, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("new mutator: %v", err)
	}
	return m
}

func assertShapeDomains(t *testing.T, cfg Config, width, height int, gene model.Gene) {
	t.Helper()
	for i, s := range gene.Shapes {
		if s.R < 0 || s.R > 255 || s.G < 0 || s.G > 255 || s.B < 0 || s.B > 255 {
			t.Fatalf("shape %d color out of range: %+v", i, s)
		}
		if s.A < cfg.MinAlpha || s.A > 1 {
			t.Fatalf("shape %d alpha out of range: %+v", i, s)
		}
		if s.Size < cfg.MinSize {
			t.Fatalf("shape %d size below minimum: %+v", i, s)
		}
		if s.X < 0 || s.X > float64(width) || s.Y < 0 || s.Y > float64(height) {
			t.Fatalf("shape %d position out of bounds: %+v", i, s)
		}
	}
}

func TestMutateTopsUpEmptyGene(t *testing.T) {
	cfg := DefaultConfig()
	m := newTestMutator(t, cfg, 100, 75, 1)

	child := m.Mutate(model.Gene{})
	if len(child.Shapes) != cfg.MaxShapes {
		t.Fatalf("expected %d shapes, got %d", cfg.MaxShapes, len(child.Shapes))
	}
	assertShapeDomains(t, cfg, 100, 75, child)
}

func TestMutateKeepsInvariantsAcrossLineage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxShapes = 12
	cfg.PositionDelta = 40
	cfg.ColorDelta = 200
	cfg.AlphaDelta = 0.9
	cfg.SizeJitter = 0.9
	m := newTestMutator(t, cfg, 30, 20, 7)

	gene := model.Gene{}
	for i := 0; i < 500; i++ {
		gene = m.Mutate(gene)
		if len(gene.Shapes) != cfg.MaxShapes {
			t.Fatalf("iteration %d: expected %d shapes, got %d", i, cfg.MaxShapes, len(gene.Shapes))
		}
		assertShapeDomains(t, cfg, 30, 20, gene)
	}
}

func TestMutateDoesNotModifyParent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxShapes = 4
	m := newTestMutator(t, cfg, 50, 50, 3)

	parent := m.Mutate(model.Gene{})
	snapshot := parent.Clone()
	for i := 0; i < 50; i++ {
		child := m.Mutate(parent)
		if len(child.Shapes) > 0 && len(parent.Shapes) > 0 && &child.Shapes[0] == &parent.Shapes[0] {
			t.Fatal("expected child to use its own shape storage")
		}
	}
	for i := range snapshot.Shapes {
		if parent.Shapes[i] != snapshot.Shapes[i] {
			t.Fatalf("parent shape %d changed: got %+v want %+v", i, parent.Shapes[i], snapshot.Shapes[i])
		}
	}
}

func TestMutateTrimsOversizedGene(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxShapes = 3
	m := newTestMutator(t, cfg, 10, 10, 5)

	gene := model.Gene{Shapes: make([]model.Shape, 6)}
	for i := range gene.Shapes {
		gene.Shapes[i] = model.Shape{X: 1, Y: 1, Size: 2, A: 0.5}
	}
	if got := len(m.Mutate(gene).Shapes); got != cfg.MaxShapes {
		t.Fatalf("expected %d shapes, got %d", cfg.MaxShapes, got)
	}
}

func TestMutateShrinkReplacesOneShape(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxShapes = 5
	cfg.ShrinkProbability = 1
	m := newTestMutator(t, cfg, 40, 40, 9)

	parent := m.Mutate(model.Gene{})
	child := m.Mutate(parent)

	kept := 0
	for _, s := range child.Shapes {
		for _, p := range parent.Shapes {
			if s == p {
				kept++
				break
			}
		}
	}
	if kept != cfg.MaxShapes-1 {
		t.Fatalf("expected %d shapes carried over after shrink, got %d", cfg.MaxShapes-1, kept)
	}
}

func TestMutateWithoutPointMutationOnlyTopsUp(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxShapes = 5
	cfg.ShrinkProbability = 0
	cfg.PointMutationProbability = 0
	m := newTestMutator(t, cfg, 40, 40, 11)

	parent := m.Mutate(model.Gene{})
	child := m.Mutate(parent)
	for i := range parent.Shapes {
		if child.Shapes[i] != parent.Shapes[i] {
			t.Fatalf("shape %d changed without any enabled mutation: %+v -> %+v", i, parent.Shapes[i], child.Shapes[i])
		}
	}
}

func TestMutateSortsByConfiguredKey(t *testing.T) {
	cases := []struct {
		key  SortKey
		less func(a, b model.Shape) bool
	}{
		{key: SortSizeDesc, less: func(a, b model.Shape) bool { return a.Size >= b.Size }},
		{key: SortSizeAsc, less: func(a, b model.Shape) bool { return a.Size <= b.Size }},
		{key: SortAlphaAsc, less: func(a, b model.Shape) bool { return a.A <= b.A }},
		{key: SortAlphaDesc, less: func(a, b model.Shape) bool { return a.A >= b.A }},
	}
	for _, tc := range cases {
		t.Run(string(tc.key), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SortKey = tc.key
			m := newTestMutator(t, cfg, 64, 48, 13)
			gene := m.Mutate(m.Mutate(model.Gene{}))
			for i := 1; i < len(gene.Shapes); i++ {
				if !tc.less(gene.Shapes[i-1], gene.Shapes[i]) {
					t.Fatalf("shapes %d and %d out of order for %s: %+v %+v", i-1, i, tc.key, gene.Shapes[i-1], gene.Shapes[i])
				}
			}
		})
	}
}

func TestNewMutatorRejectsInvalidInput(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := NewMutator(cfg, 10, 10, nil); err == nil {
		t.Fatal("expected error for nil random source")
	}
	if _, err := NewMutator(cfg, 0, 10, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected error for zero width")
	}
	cfg.MinSize = 20
	if _, err := NewMutator(cfg, 10, 10, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected error for min size larger than the image")
	}
	cfg = DefaultConfig()
	cfg.MinAlpha = math.NaN()
	if _, err := NewMutator(cfg, 10, 10, rand.New(rand.NewSource(1))); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected config error for NaN min alpha, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.PositionDelta = math.Inf(1)
	if _, err := NewMutator(cfg, 10, 10, rand.New(rand.NewSource(1))); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected config error for infinite position delta, got %v", err)
	}
}
