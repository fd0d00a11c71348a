package storage

import (
	"context"

	"stipple/internal/model"
)

// Store archives finished runs for later inspection and export.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveBestGene(ctx context.Context, record model.BestGeneRecord) error
	GetBestGene(ctx context.Context, runID string) (model.BestGeneRecord, bool, error)
}
