// Package runsignup is the source adapter for the RunSignup race
// registry. It fetches paginated listings per US state, filters out
// drafts, private, and virtual events, and maps the provider shape
// into the pipeline's raw record.
package runsignup

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raceatlas/racedir-cli/internal/fetcher"
	"github.com/raceatlas/racedir-cli/internal/model"
)

// SourceName identifies this adapter in RawRace.Source and run logs.
const SourceName = "runsignup"

// Config configures the RunSignup client.
type Config struct {
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	APISecret  string        `yaml:"api_secret" mapstructure:"api_secret"`
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	PageSize   int           `yaml:"page_size" mapstructure:"page_size"`
	MaxPages   int           `yaml:"max_pages" mapstructure:"max_pages"`
	PageDelay  time.Duration `yaml:"page_delay" mapstructure:"page_delay"`
	StateDelay time.Duration `yaml:"state_delay" mapstructure:"state_delay"`

	// Concurrency bounds how many state partitions fetch at once.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// Client fetches race listings from the RunSignup REST API.
type Client struct {
	cfg     Config
	fetcher *fetcher.HTTPFetcher
}

// New creates a RunSignup client. API credentials are required; their
// absence is a startup error for ingestion, not something retried.
func New(cfg Config, f *fetcher.HTTPFetcher) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, eris.New("runsignup: api_key and api_secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://runsignup.com/rest"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = 500 * time.Millisecond
	}
	if cfg.StateDelay <= 0 {
		cfg.StateDelay = 2 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}
	return &Client{cfg: cfg, fetcher: f}, nil
}

// FetchState pulls all qualifying listings for one state partition,
// page by page. It stops at a short page or at cfg.MaxPages. A failed
// page stops the partition but records already collected are returned
// alongside the error.
func (c *Client) FetchState(ctx context.Context, state string, modifiedSince time.Time) ([]model.RawRace, error) {
	log := zap.L().With(
		zap.String("component", "runsignup"),
		zap.String("state", state),
	)

	var out []model.RawRace
	for page := 1; page <= c.cfg.MaxPages; page++ {
		resp, err := fetcher.GetJSON[racesResponse](ctx, c.fetcher, c.pageURL(state, page, modifiedSince))
		if err != nil {
			log.Warn("page fetch failed, keeping partial results",
				zap.Int("page", page),
				zap.Int("collected", len(out)),
				zap.Error(err),
			)
			return out, eris.Wrapf(err, "runsignup: fetch %s page %d", state, page)
		}

		kept := 0
		for _, w := range resp.Races {
			if !qualifies(w.Race) {
				continue
			}
			out = append(out, toRawRace(w.Race))
			kept++
		}
		log.Debug("page fetched",
			zap.Int("page", page),
			zap.Int("results", len(resp.Races)),
			zap.Int("kept", kept),
		)

		// A short page is the last page.
		if len(resp.Races) < c.cfg.PageSize {
			break
		}
		if page < c.cfg.MaxPages {
			if err := sleep(ctx, c.cfg.PageDelay); err != nil {
				return out, err
			}
		}
	}

	log.Info("state fetch complete", zap.Int("records", len(out)))
	return out, nil
}

// FetchStates pulls the given state partitions with bounded
// parallelism. Partitions are independent; each one's page loop stays
// sequential. A failed partition keeps its partial results and does
// not stop the others. Launches are staggered by StateDelay to avoid a
// burst against the provider.
func (c *Client) FetchStates(ctx context.Context, states []string, modifiedSince time.Time) ([]model.RawRace, []error) {
	var mu sync.Mutex
	var out []model.RawRace
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for i, state := range states {
		if i > 0 {
			if err := sleep(ctx, c.cfg.StateDelay); err != nil {
				break
			}
		}
		g.Go(func() error {
			records, err := c.FetchState(gctx, state, modifiedSince)
			mu.Lock()
			defer mu.Unlock()
			out = append(out, records...)
			if err != nil {
				errs = append(errs, err)
			}
			return nil // partition failures never abort the group
		})
	}

	_ = g.Wait()
	return out, errs
}

// pageURL builds the paginated search URL for one state partition.
func (c *Client) pageURL(state string, page int, modifiedSince time.Time) string {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("api_key", c.cfg.APIKey)
	q.Set("api_secret", c.cfg.APISecret)
	q.Set("state", state)
	q.Set("page", strconv.Itoa(page))
	q.Set("results_per_page", strconv.Itoa(c.cfg.PageSize))
	q.Set("start_date", "today")
	q.Set("events", "T")
	if !modifiedSince.IsZero() {
		q.Set("modified_after_timestamp", strconv.FormatInt(modifiedSince.Unix(), 10))
	}
	return fmt.Sprintf("%s/races?%s", c.cfg.BaseURL, q.Encode())
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "runsignup: cancelled")
	case <-t.C:
		return nil
	}
}
