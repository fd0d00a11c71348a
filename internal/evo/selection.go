package evo

import (
	"fmt"
	"sort"

	"stipple/internal/model"
)

// Procreate builds the next population. Scored genes are ranked by ascending
// error (ties keep their evaluation order), the top survivors are carried over
// unchanged and each survivor is followed by generationSize/survivors-1
// mutated children.
func Procreate(scored []model.ScoredGene, generationSize, survivors int, mutation Mutation) ([]model.Gene, error) {
	if err := validateRatio(generationSize, survivors); err != nil {
		return nil, err
	}
	if len(scored) < survivors {
		return nil, fmt.Errorf("%w: %d scored genes for %d survivors", ErrConfig, len(scored), survivors)
	}
	if mutation == nil {
		return nil, fmt.Errorf("mutation is required")
	}

	ranked := RankByError(scored)
	childrenPerSurvivor := generationSize/survivors - 1
	next := make([]model.Gene, 0, generationSize)
	for _, survivor := range ranked[:survivors] {
		next = append(next, survivor.Gene)
		for i := 0; i < childrenPerSurvivor; i++ {
			next = append(next, mutation.Mutate(survivor.Gene))
		}
	}
	return next, nil
}

// RankByError returns a copy of scored sorted by ascending error.
func RankByError(scored []model.ScoredGene) []model.ScoredGene {
	ranked := make([]model.ScoredGene, len(scored))
	copy(ranked, scored)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Error < ranked[j].Error
	})
	return ranked
}

// FindBest returns the lowest-error entry; the first one wins ties.
func FindBest(scored []model.ScoredGene) (model.ScoredGene, bool) {
	if len(scored) == 0 {
		return model.ScoredGene{}, false
	}
	best := scored[0]
	for _, candidate := range scored[1:] {
		if candidate.Error < best.Error {
			best = candidate
		}
	}
	return best, true
}

// BestTracker keeps the best-of-run. It is replaced only by a strictly lower
// error, never by a tie.
type BestTracker struct {
	best         model.ScoredGene
	ok           bool
	improvements int
}

// Offer records candidate if it strictly improves on the current best and
// reports whether it did.
func (t *BestTracker) Offer(candidate model.ScoredGene) bool {
	if t.ok && candidate.Error >= t.best.Error {
		return false
	}
	t.best = candidate
	t.ok = true
	t.improvements++
	return true
}

func (t *BestTracker) Best() (model.ScoredGene, bool) {
	return t.best, t.ok
}

func (t *BestTracker) Improvements() int {
	return t.improvements
}
