package importer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/raceatlas/racedir-cli/internal/model"
)

// FetchFunc produces one batch of raw records from a source. A partial
// result alongside an error is honored: whatever came back is still
// imported.
type FetchFunc func(ctx context.Context) ([]model.RawRace, error)

// Refresh runs a full source cycle: fetch, import, staleness sweep,
// then record the run. Fetch errors over a partial batch degrade to
// stats errors rather than aborting the cycle; a fetch that yields
// nothing at all is fatal so an upstream outage cannot mass-expire the
// directory.
func (imp *Importer) Refresh(ctx context.Context, source string, fetch FetchFunc, inactiveHorizon time.Duration) (*model.ImportRun, error) {
	log := zap.L().With(zap.String("component", "importer"), zap.String("source", source))
	started := imp.now().UTC()

	records, fetchErr := fetch(ctx)
	if fetchErr != nil && len(records) == 0 {
		return nil, eris.Wrapf(fetchErr, "importer: fetch %s", source)
	}
	log.Info("fetch complete", zap.Int("records", len(records)), zap.Error(fetchErr))

	stats := imp.ProcessImport(ctx, records)
	if fetchErr != nil {
		stats.Errors = append(stats.Errors, "Error fetching "+source+": "+fetchErr.Error())
	}

	inactive, err := imp.MarkInactive(ctx, inactiveHorizon)
	if err != nil {
		return nil, err
	}

	run := &model.ImportRun{
		ID:         uuid.New().String(),
		Source:     source,
		Stats:      stats,
		Inactive:   inactive,
		StartedAt:  started,
		FinishedAt: imp.now().UTC(),
	}
	if err := imp.store.RecordImportRun(ctx, *run); err != nil {
		return nil, eris.Wrap(err, "importer: record run")
	}

	log.Info("refresh complete",
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", len(stats.Errors)),
		zap.Int("inactive", inactive),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)
	return run, nil
}
