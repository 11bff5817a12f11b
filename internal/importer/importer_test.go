package importer

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceatlas/racedir-cli/internal/model"
)

func rawRace(name string) model.RawRace {
	return model.RawRace{
		Source:     "runsignup",
		ExternalID: "100",
		Name:       name,
		Date:       "2026-04-20",
		City:       "Boston",
		State:      "MA",
		Distance:   "10K",
	}
}

func TestProcessImport_CreatesNewRaces(t *testing.T) {
	ms := newMockStore()
	imp := New(ms)

	stats := imp.ProcessImport(context.Background(), []model.RawRace{
		rawRace("Boston 10K"),
		{Source: "runsignup", ExternalID: "101", Name: "Cambridge 5K", Date: "2026-05-01", City: "Cambridge", State: "MA"},
	})

	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 0, stats.Skipped)
	assert.Empty(t, stats.Errors)
	assert.Len(t, ms.races, 2)
}

func TestProcessImport_CreatedRaceFields(t *testing.T) {
	ms := newMockStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	imp := New(ms, withClock(func() time.Time { return now }))

	stats := imp.ProcessImport(context.Background(), []model.RawRace{rawRace("The Boston Annual 10K!!")})
	require.Equal(t, 1, stats.Created)

	race := ms.single()
	require.NotNil(t, race)
	assert.NotEmpty(t, race.ID)
	assert.Equal(t, "the-boston-annual-10k-boston-ma-100", race.Slug)
	assert.Equal(t, "boston 10k", race.NormalizedName)
	assert.Equal(t, "boston|ma", race.LocationKey)
	assert.Equal(t, "boston 10k|boston|ma|2026-04-20", race.HashKey)
	assert.Equal(t, model.RaceStatusActive, race.Status)
	assert.Equal(t, now, race.LastSeenAt)
	assert.Equal(t, now, race.CreatedAt)
	assert.Equal(t, 20, race.QualityScore)
}

func TestProcessImport_RerunUpdatesInPlace(t *testing.T) {
	ms := newMockStore()
	imp := New(ms)
	records := []model.RawRace{
		rawRace("Boston 10K"),
		{Source: "runsignup", ExternalID: "101", Name: "Cambridge 5K", Date: "2026-05-01", City: "Cambridge", State: "MA"},
	}

	first := imp.ProcessImport(context.Background(), records)
	assert.Equal(t, 2, first.Created)

	second := imp.ProcessImport(context.Background(), records)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)
	assert.Len(t, ms.races, 2, "rerun adds no rows")
}

func TestProcessImport_LowerQualityDuplicateSkipsAndTouches(t *testing.T) {
	ms := newMockStore()
	imp := New(ms)

	rich := rawRace("Boston 10K")
	rich.Website = "https://boston10k.com"
	rich.StartTime = "08:00"
	require.Equal(t, 1, imp.ProcessImport(context.Background(), []model.RawRace{rich}).Created)
	existing := ms.single()

	poor := rawRace("Boston 10K")
	poor.Distance = ""
	stats := imp.ProcessImport(context.Background(), []model.RawRace{poor})

	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, []string{existing.ID}, ms.touched)
	assert.Equal(t, existing.Website, ms.races[existing.ID].Website, "skip leaves fields untouched")
}

func TestProcessImport_HigherQualityDuplicateUpdates(t *testing.T) {
	ms := newMockStore()
	imp := New(ms)

	require.Equal(t, 1, imp.ProcessImport(context.Background(), []model.RawRace{rawRace("Boston 10K")}).Created)
	existing := ms.single()
	id, slug, created := existing.ID, existing.Slug, existing.CreatedAt

	rich := rawRace("Boston 10K")
	rich.Website = "https://boston10k.com"
	rich.Description = "A flat and fast spring classic through the back bay neighborhoods."
	stats := imp.ProcessImport(context.Background(), []model.RawRace{rich})

	require.Equal(t, 1, stats.Updated)
	got := ms.races[id]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, slug, got.Slug)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, "https://boston10k.com", got.Website)
	assert.Equal(t, "boston10k.com", got.NormalizedURL)
}

func TestProcessImport_URLMatchBeatsNameDrift(t *testing.T) {
	ms := newMockStore()
	imp := New(ms)

	orig := rawRace("Boston 10K")
	orig.Website = "https://boston10k.com"
	require.Equal(t, 1, imp.ProcessImport(context.Background(), []model.RawRace{orig}).Created)

	renamed := rawRace("Beantown Spring Classic")
	renamed.Website = "https://www.boston10k.com/"
	renamed.StartTime = "08:00"
	stats := imp.ProcessImport(context.Background(), []model.RawRace{renamed})

	assert.Equal(t, 1, stats.Updated)
	assert.Len(t, ms.races, 1)
	assert.Equal(t, "Beantown Spring Classic", ms.single().Name)
}

func TestProcessImport_MalformedRecordIsIsolated(t *testing.T) {
	ms := newMockStore()
	imp := New(ms)

	records := []model.RawRace{
		rawRace("Boston 10K"),
		{Source: "runsignup", Name: "Bad Date Run", Date: "April 20th", City: "Boston", State: "MA"},
		{Source: "runsignup", Name: "", Date: "2026-04-20", City: "Boston", State: "MA"},
		{Source: "runsignup", ExternalID: "102", Name: "Cambridge 5K", Date: "2026-05-01", City: "Cambridge", State: "MA"},
	}

	stats := imp.ProcessImport(context.Background(), records)

	assert.Equal(t, 2, stats.Created)
	require.Len(t, stats.Errors, 2)
	assert.Contains(t, stats.Errors[0], "Error processing Bad Date Run:")
	assert.Contains(t, stats.Errors[1], "Error processing :")
	assert.Equal(t, 2, stats.Total())
}

func TestProcessImport_StoreFailureBecomesRecordError(t *testing.T) {
	ms := newMockStore()
	ms.upsertErr = eris.New("connection reset")
	imp := New(ms)

	stats := imp.ProcessImport(context.Background(), []model.RawRace{rawRace("Boston 10K")})

	assert.Equal(t, 0, stats.Created)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "Error processing Boston 10K:")
}

func TestMarkInactive(t *testing.T) {
	ms := newMockStore()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	imp := New(ms, withClock(func() time.Time { return now }))

	stale := &model.Race{ID: "old", Status: model.RaceStatusActive, LastSeenAt: now.Add(-40 * 24 * time.Hour)}
	fresh := &model.Race{ID: "new", Status: model.RaceStatusActive, LastSeenAt: now.Add(-2 * 24 * time.Hour)}
	ms.races["old"] = stale
	ms.races["new"] = fresh

	n, err := imp.MarkInactive(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.RaceStatusInactive, ms.races["old"].Status)
	assert.Equal(t, model.RaceStatusActive, ms.races["new"].Status)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		rec      model.RawRace
		expected string
	}{
		{"with external id", model.RawRace{Name: "Boston 10K", City: "Boston", State: "MA", ExternalID: "42"}, "boston-10k-boston-ma-42"},
		{"punctuation collapsed", model.RawRace{Name: "Rock 'n' Roll!", City: "San Jose", State: "CA", ExternalID: "7"}, "rock-n-roll-san-jose-ca-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, slugify(tt.rec))
		})
	}
}

func TestSlugify_NoExternalIDGetsRandomSuffix(t *testing.T) {
	rec := model.RawRace{Name: "Boston 10K", City: "Boston", State: "MA"}
	a := slugify(rec)
	b := slugify(rec)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^boston-10k-boston-ma-[0-9a-f]{8}$`, a)
}
