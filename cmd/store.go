package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/raceatlas/racedir-cli/internal/fetcher"
	"github.com/raceatlas/racedir-cli/internal/importer"
	"github.com/raceatlas/racedir-cli/internal/store"
	"github.com/raceatlas/racedir-cli/pkg/runsignup"
)

// initStore opens the configured backend, runs migrations, and wraps
// it in the candidate cache.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "racedir.db"
		}
		s, err = store.NewSQLite(dsn)
	case "postgres":
		s, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return store.NewCached(s, cfg.Store.CacheSize, cfg.Store.CacheTTL), nil
}

// initImporter builds the pipeline over an opened store.
func initImporter(s store.Store) *importer.Importer {
	return importer.New(s, importer.WithFuzzyThreshold(cfg.Import.FuzzyThreshold))
}

// initRunSignup builds the RunSignup client from config.
func initRunSignup() (*runsignup.Client, error) {
	limiters := fetcher.DefaultRateLimiters()
	if cfg.Fetch.RatePerSec > 0 {
		for host := range limiters {
			limiters[host] = rate.NewLimiter(rate.Limit(cfg.Fetch.RatePerSec), 2)
		}
	}
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RateLimiters: limiters,
	})
	return runsignup.New(cfg.RunSignup, f)
}
