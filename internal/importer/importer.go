// Package importer turns batches of raw source records into persisted
// canonical races: normalize, match against what is on file, then
// create, update, or skip. One bad record never aborts a batch.
package importer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/raceatlas/racedir-cli/internal/dedupe"
	"github.com/raceatlas/racedir-cli/internal/model"
	"github.com/raceatlas/racedir-cli/internal/normalize"
	"github.com/raceatlas/racedir-cli/internal/store"
)

// Importer binds the normalizer, matcher, and storage collaborator
// into the import pipeline.
type Importer struct {
	store          store.Store
	scorer         normalize.Scorer
	fuzzyThreshold float64
	now            func() time.Time
}

// Option configures an Importer.
type Option func(*Importer)

// WithScorer overrides the quality scoring strategy.
func WithScorer(s normalize.Scorer) Option {
	return func(i *Importer) { i.scorer = s }
}

// WithFuzzyThreshold overrides the trigram similarity cutoff.
func WithFuzzyThreshold(t float64) Option {
	return func(i *Importer) { i.fuzzyThreshold = t }
}

// withClock pins time for tests.
func withClock(now func() time.Time) Option {
	return func(i *Importer) { i.now = now }
}

// New creates an Importer with the standard scorer and default fuzzy
// threshold.
func New(s store.Store, opts ...Option) *Importer {
	imp := &Importer{
		store:          s,
		scorer:         normalize.StandardScorer{},
		fuzzyThreshold: dedupe.DefaultFuzzyThreshold,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// ProcessImport runs one batch in input order. It never returns an
// error: per-record failures are collected into the stats and the loop
// continues.
func (imp *Importer) ProcessImport(ctx context.Context, records []model.RawRace) model.ImportStats {
	log := zap.L().With(zap.String("component", "importer"))
	stats := model.ImportStats{Errors: []string{}}

	for _, rec := range records {
		if err := imp.processOne(ctx, &stats, rec); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("Error processing %s: %v", rec.Name, err))
			log.Warn("record failed",
				zap.String("name", rec.Name),
				zap.String("source", rec.Source),
				zap.Error(err),
			)
		}
	}

	log.Info("import batch complete",
		zap.Int("records", len(records)),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", len(stats.Errors)),
	)
	return stats
}

// processOne classifies and persists a single record, bumping exactly
// one stats counter on success.
func (imp *Importer) processOne(ctx context.Context, stats *model.ImportStats, rec model.RawRace) error {
	if strings.TrimSpace(rec.Name) == "" {
		return eris.New("missing name")
	}
	if _, err := time.Parse("2006-01-02", rec.Date); err != nil {
		return eris.Errorf("invalid date %q", rec.Date)
	}

	normName := normalize.Name(rec.Name)
	locKey := normalize.LocationKey(rec.City, rec.State, rec.Latitude, rec.Longitude)
	normURL := normalize.URL(rec.Website)
	hashKey := normalize.HashKey(normName, locKey, rec.Date)
	score := imp.scorer.Score(rec)

	existing, err := imp.store.ExistingForMatching(ctx, locKey)
	if err != nil {
		return eris.Wrap(err, "load match candidates")
	}

	match := dedupe.FindURLMatch(normURL, existing)
	if match == nil {
		match = dedupe.FindExactMatch(normName, locKey, rec.Date, existing)
	}
	if match == nil {
		match = dedupe.FindFuzzyMatch(normName, locKey, rec.Date, existing, imp.fuzzyThreshold)
	}

	now := imp.now().UTC()

	if match == nil {
		race := imp.buildRace(rec, normName, locKey, normURL, hashKey, score, now)
		if err := imp.store.UpsertRace(ctx, race); err != nil {
			return eris.Wrap(err, "create race")
		}
		stats.Created++
		return nil
	}

	current, err := imp.store.GetRace(ctx, match.RaceID)
	if err != nil {
		return eris.Wrap(err, "load matched race")
	}
	if current == nil {
		return eris.Errorf("matched race %s not found", match.RaceID)
	}

	// A lower-quality duplicate still proves the event is listed
	// upstream, so the staleness timestamp is refreshed either way.
	if score < current.QualityScore {
		if err := imp.store.TouchLastSeen(ctx, current.ID, now); err != nil {
			return eris.Wrap(err, "touch last seen")
		}
		stats.Skipped++
		return nil
	}

	applyUpdate(current, rec, normName, locKey, normURL, hashKey, score, now)
	if err := imp.store.UpsertRace(ctx, current); err != nil {
		return eris.Wrap(err, "update race")
	}
	zap.L().Debug("race updated",
		zap.String("id", current.ID),
		zap.String("match_type", string(match.Type)),
		zap.Float64("confidence", match.Confidence),
	)
	stats.Updated++
	return nil
}

// buildRace assembles a new canonical record from a raw one.
func (imp *Importer) buildRace(rec model.RawRace, normName, locKey, normURL, hashKey string, score int, now time.Time) *model.Race {
	return &model.Race{
		ID:              uuid.New().String(),
		Slug:            slugify(rec),
		Source:          rec.Source,
		ExternalID:      rec.ExternalID,
		Name:            rec.Name,
		Date:            rec.Date,
		City:            rec.City,
		State:           rec.State,
		Distance:        rec.Distance,
		DistanceLabel:   rec.DistanceLabel,
		Surface:         rec.Surface,
		ElevationGain:   rec.ElevationGain,
		Description:     rec.Description,
		Website:         rec.Website,
		RegistrationURL: rec.RegistrationURL,
		StartTime:       rec.StartTime,
		Latitude:        rec.Latitude,
		Longitude:       rec.Longitude,
		NormalizedName:  normName,
		LocationKey:     locKey,
		NormalizedURL:   normURL,
		HashKey:         hashKey,
		QualityScore:    score,
		Status:          model.RaceStatusActive,
		LastSeenAt:      now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// applyUpdate overwrites the mutable fields of an existing race with
// the candidate's, preserving id, slug, and created_at. A matched
// record is live again even if a staleness sweep had flagged it.
func applyUpdate(race *model.Race, rec model.RawRace, normName, locKey, normURL, hashKey string, score int, now time.Time) {
	race.Name = rec.Name
	race.Date = rec.Date
	race.Distance = rec.Distance
	race.DistanceLabel = rec.DistanceLabel
	race.Surface = rec.Surface
	race.ElevationGain = rec.ElevationGain
	race.Description = rec.Description
	race.Website = rec.Website
	race.RegistrationURL = rec.RegistrationURL
	race.StartTime = rec.StartTime
	race.Latitude = rec.Latitude
	race.Longitude = rec.Longitude
	race.NormalizedName = normName
	race.LocationKey = locKey
	race.NormalizedURL = normURL
	race.HashKey = hashKey
	race.QualityScore = score
	race.Status = model.RaceStatusActive
	race.LastSeenAt = now
	race.UpdatedAt = now
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// slugify builds a stable, unique slug: hyphenated name/city/state with
// the external id (or a short random suffix) to disambiguate same-named
// events.
func slugify(rec model.RawRace) string {
	base := strings.ToLower(fmt.Sprintf("%s %s %s", rec.Name, rec.City, rec.State))
	base = slugStrip.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	suffix := rec.ExternalID
	if suffix == "" {
		suffix = uuid.New().String()[:8]
	}
	return base + "-" + suffix
}

// MarkInactive flags active races whose last_seen_at predates the
// horizon as inactive and returns the count flagged. Nothing is
// deleted.
func (imp *Importer) MarkInactive(ctx context.Context, horizon time.Duration) (int, error) {
	cutoff := imp.now().UTC().Add(-horizon)
	n, err := imp.store.MarkInactiveBefore(ctx, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "importer: mark inactive")
	}
	zap.L().Info("stale races marked inactive",
		zap.Int("count", n),
		zap.Time("cutoff", cutoff),
	)
	return n, nil
}
