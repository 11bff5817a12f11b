package store

import (
	"context"
	"time"

	"github.com/raceatlas/racedir-cli/internal/dedupe"
	"github.com/raceatlas/racedir-cli/internal/model"
)

// Store defines the persistence interface for the ingestion pipeline.
// ExistingForMatching must return candidates ordered by id ascending:
// the matcher is first-match-wins, and a stable order keeps dedup
// outcomes deterministic across reruns.
type Store interface {
	// Races
	ExistingForMatching(ctx context.Context, locationKey string) ([]dedupe.Candidate, error)
	GetRace(ctx context.Context, id string) (*model.Race, error)
	UpsertRace(ctx context.Context, race *model.Race) error
	TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error
	MarkInactiveBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Import run log
	RecordImportRun(ctx context.Context, run model.ImportRun) error
	LastImportRun(ctx context.Context) (*model.ImportRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
