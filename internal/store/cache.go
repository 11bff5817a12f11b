package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/raceatlas/racedir-cli/internal/dedupe"
	"github.com/raceatlas/racedir-cli/internal/model"
)

// CachedStore decorates a Store with a bounded LRU+TTL cache over
// ExistingForMatching. Within a batch most records in the same
// geographic partition share a handful of location keys, so the read
// amplification against the database is large without it. The cache is
// an explicit collaborator sized and expired by the caller, never
// ambient package state. Upserts invalidate their location key so
// later records in the same batch see prior creates.
type CachedStore struct {
	Store
	candidates *expirable.LRU[string, []dedupe.Candidate]
}

// NewCached wraps a Store with a candidate cache of the given size and TTL.
func NewCached(s Store, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store:      s,
		candidates: expirable.NewLRU[string, []dedupe.Candidate](size, nil, ttl),
	}
}

func (c *CachedStore) ExistingForMatching(ctx context.Context, locationKey string) ([]dedupe.Candidate, error) {
	if cached, ok := c.candidates.Get(locationKey); ok {
		return cached, nil
	}
	out, err := c.Store.ExistingForMatching(ctx, locationKey)
	if err != nil {
		return nil, err
	}
	c.candidates.Add(locationKey, out)
	return out, nil
}

func (c *CachedStore) UpsertRace(ctx context.Context, race *model.Race) error {
	if err := c.Store.UpsertRace(ctx, race); err != nil {
		return err
	}
	c.candidates.Remove(race.LocationKey)
	return nil
}
