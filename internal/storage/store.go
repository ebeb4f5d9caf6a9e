package storage

import (
	"context"

	"helixsim/internal/model"
)

// RecordKind names one family of persisted records.
type RecordKind string

const (
	KindMutationRun      RecordKind = "mutation_run"
	KindGrowthRun        RecordKind = "growth_run"
	KindResistanceReport RecordKind = "resistance_report"
)

// Store persists finished runs and reports. Get methods report a missing
// record with ok=false rather than an error.
type Store interface {
	Init(ctx context.Context) error
	SaveMutationRun(ctx context.Context, run model.MutationRun) error
	GetMutationRun(ctx context.Context, id string) (model.MutationRun, bool, error)
	SaveGrowthRun(ctx context.Context, run model.GrowthRun) error
	GetGrowthRun(ctx context.Context, id string) (model.GrowthRun, bool, error)
	SaveResistanceReport(ctx context.Context, report model.ResistanceReport) error
	GetResistanceReport(ctx context.Context, id string) (model.ResistanceReport, bool, error)
	// ListIDs returns the IDs of one record kind, newest first.
	ListIDs(ctx context.Context, kind RecordKind) ([]string, error)
}
