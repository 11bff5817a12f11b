package importer

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/raceatlas/racedir-cli/internal/dedupe"
	"github.com/raceatlas/racedir-cli/internal/model"
)

// mockStore implements store.Store in memory for pipeline tests.
type mockStore struct {
	races map[string]*model.Race
	runs  []model.ImportRun

	upsertErr    error
	candidateErr error

	touched []string
}

func newMockStore() *mockStore {
	return &mockStore{races: make(map[string]*model.Race)}
}

func (m *mockStore) ExistingForMatching(_ context.Context, locationKey string) ([]dedupe.Candidate, error) {
	if m.candidateErr != nil {
		return nil, m.candidateErr
	}
	var out []dedupe.Candidate
	for _, r := range m.races {
		if r.LocationKey != locationKey {
			continue
		}
		out = append(out, dedupe.Candidate{
			ID:             r.ID,
			NormalizedName: r.NormalizedName,
			LocationKey:    r.LocationKey,
			Date:           r.Date,
			NormalizedURL:  r.NormalizedURL,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) GetRace(_ context.Context, id string) (*model.Race, error) {
	r, ok := m.races[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (m *mockStore) UpsertRace(_ context.Context, race *model.Race) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *race
	m.races[race.ID] = &cp
	return nil
}

func (m *mockStore) TouchLastSeen(_ context.Context, id string, seenAt time.Time) error {
	r, ok := m.races[id]
	if !ok {
		return eris.Errorf("race %s not found", id)
	}
	r.LastSeenAt = seenAt
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockStore) MarkInactiveBefore(_ context.Context, cutoff time.Time) (int, error) {
	n := 0
	for _, r := range m.races {
		if r.Status == model.RaceStatusActive && r.LastSeenAt.Before(cutoff) {
			r.Status = model.RaceStatusInactive
			n++
		}
	}
	return n, nil
}

func (m *mockStore) RecordImportRun(_ context.Context, run model.ImportRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *mockStore) LastImportRun(_ context.Context) (*model.ImportRun, error) {
	if len(m.runs) == 0 {
		return nil, nil
	}
	run := m.runs[len(m.runs)-1]
	return &run, nil
}

func (m *mockStore) Migrate(context.Context) error { return nil }
func (m *mockStore) Close() error                  { return nil }

// single returns the only race in the store.
func (m *mockStore) single() *model.Race {
	for _, r := range m.races {
		return r
	}
	return nil
}
