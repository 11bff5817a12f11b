package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/raceatlas/racedir-cli/internal/dedupe"
	"github.com/raceatlas/racedir-cli/internal/model"
)

// Pool is the minimal pgx pool surface the store uses. Satisfied by
// *pgxpool.Pool and by pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists the hot-path queries prepared on each new
// connection.
var preparedStatements = map[string]string{
	"existing_for_matching": `SELECT id, normalized_name, location_key, date, normalized_url FROM races WHERE location_key = $1 ORDER BY id ASC`,
	"touch_last_seen":       `UPDATE races SET last_seen_at = $1, updated_at = $1 WHERE id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS races (
	id               TEXT PRIMARY KEY,
	slug             TEXT NOT NULL UNIQUE,
	source           TEXT NOT NULL,
	external_id      TEXT NOT NULL,
	name             TEXT NOT NULL,
	date             TEXT NOT NULL,
	city             TEXT NOT NULL,
	state            TEXT NOT NULL,
	distance         TEXT,
	distance_label   TEXT,
	surface          TEXT,
	elevation_gain   INTEGER,
	description      TEXT,
	website          TEXT,
	registration_url TEXT,
	start_time       TEXT,
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	normalized_name  TEXT NOT NULL,
	location_key     TEXT NOT NULL,
	normalized_url   TEXT,
	hash_key         TEXT NOT NULL,
	quality_score    INTEGER NOT NULL DEFAULT 10,
	status           TEXT NOT NULL DEFAULT 'active',
	last_seen_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_races_location_key ON races(location_key);
CREATE INDEX IF NOT EXISTS idx_races_hash_key ON races(hash_key);
CREATE INDEX IF NOT EXISTS idx_races_status ON races(status);
CREATE INDEX IF NOT EXISTS idx_races_last_seen_at ON races(last_seen_at);

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	stats       JSONB NOT NULL,
	inactive    INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_import_runs_finished_at ON import_runs(finished_at);
`

// Migrate applies the schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ExistingForMatching returns match candidates for one location key,
// ordered by id ascending.
func (s *PostgresStore) ExistingForMatching(ctx context.Context, locationKey string) ([]dedupe.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, normalized_name, location_key, date, normalized_url FROM races WHERE location_key = $1 ORDER BY id ASC`,
		locationKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: existing for matching")
	}
	defer rows.Close()

	var out []dedupe.Candidate
	for rows.Next() {
		var c dedupe.Candidate
		var normURL *string
		if err := rows.Scan(&c.ID, &c.NormalizedName, &c.LocationKey, &c.Date, &normURL); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		if normURL != nil {
			c.NormalizedURL = *normURL
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate candidates")
}

// GetRace fetches one canonical race by id. Returns nil if not found.
func (s *PostgresStore) GetRace(ctx context.Context, id string) (*model.Race, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, slug, source, external_id, name, date, city, state,
		       distance, distance_label, surface, elevation_gain, description, website,
		       registration_url, start_time, latitude, longitude,
		       normalized_name, location_key, normalized_url, hash_key,
		       quality_score, status, last_seen_at, created_at, updated_at
		FROM races WHERE id = $1`, id)

	var r model.Race
	var distance, distanceLabel, surface, description, website, regURL, startTime, normURL *string
	var status string
	err := row.Scan(&r.ID, &r.Slug, &r.Source, &r.ExternalID, &r.Name, &r.Date, &r.City, &r.State,
		&distance, &distanceLabel, &surface, &r.ElevationGain, &description, &website,
		&regURL, &startTime, &r.Latitude, &r.Longitude,
		&r.NormalizedName, &r.LocationKey, &normURL, &r.HashKey,
		&r.QualityScore, &status, &r.LastSeenAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get race")
	}

	r.Distance = deref(distance)
	r.DistanceLabel = deref(distanceLabel)
	r.Surface = deref(surface)
	r.Description = deref(description)
	r.Website = deref(website)
	r.RegistrationURL = deref(regURL)
	r.StartTime = deref(startTime)
	r.NormalizedURL = deref(normURL)
	r.Status = model.RaceStatus(status)
	return &r, nil
}

// UpsertRace inserts a race or updates its mutable fields in place,
// preserving slug and created_at on conflict.
func (s *PostgresStore) UpsertRace(ctx context.Context, race *model.Race) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO races (
			id, slug, source, external_id, name, date, city, state,
			distance, distance_label, surface, elevation_gain, description, website,
			registration_url, start_time, latitude, longitude,
			normalized_name, location_key, normalized_url, hash_key,
			quality_score, status, last_seen_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22,
			$23, $24, $25, $26, $27
		)
		ON CONFLICT (id) DO UPDATE SET
			name             = EXCLUDED.name,
			date             = EXCLUDED.date,
			distance         = EXCLUDED.distance,
			distance_label   = EXCLUDED.distance_label,
			surface          = EXCLUDED.surface,
			elevation_gain   = EXCLUDED.elevation_gain,
			description      = EXCLUDED.description,
			website          = EXCLUDED.website,
			registration_url = EXCLUDED.registration_url,
			start_time       = EXCLUDED.start_time,
			latitude         = EXCLUDED.latitude,
			longitude        = EXCLUDED.longitude,
			normalized_name  = EXCLUDED.normalized_name,
			location_key     = EXCLUDED.location_key,
			normalized_url   = EXCLUDED.normalized_url,
			hash_key         = EXCLUDED.hash_key,
			quality_score    = EXCLUDED.quality_score,
			status           = EXCLUDED.status,
			last_seen_at     = EXCLUDED.last_seen_at,
			updated_at       = EXCLUDED.updated_at`,
		race.ID, race.Slug, race.Source, race.ExternalID, race.Name, race.Date, race.City, race.State,
		nilIfEmpty(race.Distance), nilIfEmpty(race.DistanceLabel), nilIfEmpty(race.Surface), race.ElevationGain,
		nilIfEmpty(race.Description), nilIfEmpty(race.Website),
		nilIfEmpty(race.RegistrationURL), nilIfEmpty(race.StartTime),
		race.Latitude, race.Longitude,
		race.NormalizedName, race.LocationKey, nilIfEmpty(race.NormalizedURL), race.HashKey,
		race.QualityScore, string(race.Status), race.LastSeenAt, race.CreatedAt, race.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert race")
}

// TouchLastSeen refreshes the staleness timestamp for one race.
func (s *PostgresStore) TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE races SET last_seen_at = $1, updated_at = $1 WHERE id = $2`,
		seenAt, id,
	)
	return eris.Wrap(err, "postgres: touch last seen")
}

// MarkInactiveBefore flags active races not seen since the cutoff as
// inactive and returns the count flagged.
func (s *PostgresStore) MarkInactiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE races SET status = 'inactive', updated_at = now() WHERE status = 'active' AND last_seen_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: mark inactive")
	}
	return int(tag.RowsAffected()), nil
}

// RecordImportRun persists the outcome of one import execution.
func (s *PostgresStore) RecordImportRun(ctx context.Context, run model.ImportRun) error {
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal import stats")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO import_runs (id, source, stats, inactive, started_at, finished_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Source, statsJSON, run.Inactive, run.StartedAt, run.FinishedAt,
	)
	return eris.Wrap(err, "postgres: record import run")
}

// LastImportRun returns the most recently finished run, or nil if none.
func (s *PostgresStore) LastImportRun(ctx context.Context) (*model.ImportRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, stats, inactive, started_at, finished_at FROM import_runs ORDER BY finished_at DESC LIMIT 1`,
	)

	var run model.ImportRun
	var statsJSON []byte
	err := row.Scan(&run.ID, &run.Source, &statsJSON, &run.Inactive, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last import run")
	}
	if err := json.Unmarshal(statsJSON, &run.Stats); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal import stats")
	}
	return &run, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nilIfEmpty returns nil for empty strings, allowing NULL storage.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
