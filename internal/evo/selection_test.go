package evo

import (
	"errors"
	"testing"

	"stipple/internal/model"
)

func markerGene(id float64) model.Gene {
	return model.Gene{Shapes: []model.Shape{{X: id, Y: id, Size: 2, A: 1}}}
}

func markerOf(g model.Gene) float64 {
	if len(g.Shapes) == 0 {
		return -1
	}
	return g.Shapes[0].X
}

// childMutation tags every child so tests can tell survivors from mutants.
var childMutation = MutationFunc(func(g model.Gene) model.Gene {
	child := g.Clone()
	child.Shapes = append(child.Shapes, model.Shape{X: -1, Size: 2, A: 1})
	return child
})

func TestProcreateTwoSurvivorsGenerationFour(t *testing.T) {
	scored := []model.ScoredGene{
		{Gene: markerGene(1), Error: 0.9},
		{Gene: markerGene(2), Error: 0.1},
		{Gene: markerGene(3), Error: 0.5},
		{Gene: markerGene(4), Error: 0.7},
	}

	next, err := Procreate(scored, 4, 2, childMutation)
	if err != nil {
		t.Fatalf("procreate: %v", err)
	}
	if len(next) != 4 {
		t.Fatalf("expected 4 genes, got %d", len(next))
	}

	if markerOf(next[0]) != 2 || len(next[0].Shapes) != 1 {
		t.Fatalf("expected best survivor verbatim first, got %+v", next[0])
	}
	if markerOf(next[2]) != 3 || len(next[2].Shapes) != 1 {
		t.Fatalf("expected second survivor verbatim, got %+v", next[2])
	}
	for _, idx := range []int{1, 3} {
		if len(next[idx].Shapes) != 2 {
			t.Fatalf("expected mutated child at %d, got %+v", idx, next[idx])
		}
	}
	if markerOf(next[1]) != 2 || markerOf(next[3]) != 3 {
		t.Fatalf("children must descend from their survivor: %v %v", markerOf(next[1]), markerOf(next[3]))
	}
}

func TestProcreateReturnsGenerationSize(t *testing.T) {
	cases := []struct {
		scored, generation, survivors int
	}{
		{scored: 20, generation: 20, survivors: 4},
		{scored: 4, generation: 20, survivors: 4},
		{scored: 1, generation: 1, survivors: 1},
		{scored: 9, generation: 6, survivors: 3},
	}
	for _, tc := range cases {
		scored := make([]model.ScoredGene, tc.scored)
		for i := range scored {
			scored[i] = model.ScoredGene{Gene: markerGene(float64(i)), Error: float64(i)}
		}
		next, err := Procreate(scored, tc.generation, tc.survivors, childMutation)
		if err != nil {
			t.Fatalf("%+v: procreate: %v", tc, err)
		}
		if len(next) != tc.generation {
			t.Fatalf("%+v: got %d genes", tc, len(next))
		}
	}
}

func TestProcreateRejectsBadConfiguration(t *testing.T) {
	scored := []model.ScoredGene{{Gene: markerGene(1)}, {Gene: markerGene(2)}}
	cases := []struct {
		name                  string
		generation, survivors int
	}{
		{name: "not divisible", generation: 5, survivors: 2},
		{name: "too many survivors", generation: 2, survivors: 3},
		{name: "zero survivors", generation: 4, survivors: 0},
		{name: "fewer scored than survivors", generation: 8, survivors: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Procreate(scored, tc.generation, tc.survivors, childMutation)
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected config error, got %v", err)
			}
		})
	}
}

func TestProcreateTiesKeepEvaluationOrder(t *testing.T) {
	scored := []model.ScoredGene{
		{Gene: markerGene(1), Error: 0.3},
		{Gene: markerGene(2), Error: 0.3},
		{Gene: markerGene(3), Error: 0.3},
	}
	next, err := Procreate(scored, 2, 2, childMutation)
	if err != nil {
		t.Fatalf("procreate: %v", err)
	}
	if markerOf(next[0]) != 1 || markerOf(next[1]) != 2 {
		t.Fatalf("expected first encountered genes to win ties, got %v %v", markerOf(next[0]), markerOf(next[1]))
	}
}

func TestFindBestFirstEncounteredWinsTies(t *testing.T) {
	if _, ok := FindBest(nil); ok {
		t.Fatal("expected no best for empty input")
	}
	scored := []model.ScoredGene{
		{Gene: markerGene(1), Error: 0.4},
		{Gene: markerGene(2), Error: 0.2},
		{Gene: markerGene(3), Error: 0.2},
	}
	best, ok := FindBest(scored)
	if !ok || markerOf(best.Gene) != 2 {
		t.Fatalf("unexpected best: %+v", best)
	}
}

func TestBestTrackerOnlyStrictImprovements(t *testing.T) {
	var tracker BestTracker
	if _, ok := tracker.Best(); ok {
		t.Fatal("expected empty tracker")
	}
	steps := []struct {
		err  float64
		want bool
	}{
		{err: 0.5, want: true},
		{err: 0.5, want: false},
		{err: 0.7, want: false},
		{err: 0.4, want: true},
	}
	for i, step := range steps {
		got := tracker.Offer(model.ScoredGene{Gene: markerGene(float64(i)), Error: step.err})
		if got != step.want {
			t.Fatalf("step %d: offer(%f) got %t want %t", i, step.err, got, step.want)
		}
	}
	best, _ := tracker.Best()
	if best.Error != 0.4 || markerOf(best.Gene) != 3 {
		t.Fatalf("unexpected best: %+v", best)
	}
	if tracker.Improvements() != 2 {
		t.Fatalf("expected 2 improvements, got %d", tracker.Improvements())
	}
}
