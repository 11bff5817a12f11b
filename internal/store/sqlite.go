package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/raceatlas/racedir-cli/internal/dedupe"
	"github.com/raceatlas/racedir-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and single-host deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	latitude         REAL,
	longitude        REAL,
	normalized_name  TEXT NOT NULL,
	location_key     TEXT NOT NULL,
	normalized_url   TEXT,
	hash_key         TEXT NOT NULL,
	quality_score    INTEGER NOT NULL DEFAULT 10,
	status           TEXT NOT NULL DEFAULT 'active',
	last_seen_at     TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_races_location_key ON races(location_key);
CREATE INDEX IF NOT EXISTS idx_races_hash_key ON races(hash_key);
CREATE INDEX IF NOT EXISTS idx_races_status ON races(status);
CREATE INDEX IF NOT EXISTS idx_races_last_seen_at ON races(last_seen_at);

CREATE TABLE IF NOT EXISTS import_runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	stats       TEXT NOT NULL,
	inactive    INTEGER NOT NULL DEFAULT 0,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_import_runs_finished_at ON import_runs(finished_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ExistingForMatching(ctx context.Context, locationKey string) ([]dedupe.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, normalized_name, location_key, date, COALESCE(normalized_url, '') FROM races WHERE location_key = ? ORDER BY id ASC`,
		locationKey,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: existing for matching")
	}
	defer rows.Close()

	var out []dedupe.Candidate
	for rows.Next() {
		var c dedupe.Candidate
		if err := rows.Scan(&c.ID, &c.NormalizedName, &c.LocationKey, &c.Date, &c.NormalizedURL); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate candidates")
}

func (s *SQLiteStore) GetRace(ctx context.Context, id string) (*model.Race, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, source, external_id, name, date, city, state,
		       COALESCE(distance, ''), COALESCE(distance_label, ''), COALESCE(surface, ''), elevation_gain,
		       COALESCE(description, ''), COALESCE(website, ''),
		       COALESCE(registration_url, ''), COALESCE(start_time, ''),
		       latitude, longitude,
		       normalized_name, location_key, COALESCE(normalized_url, ''), hash_key,
		       quality_score, status, last_seen_at, created_at, updated_at
		FROM races WHERE id = ?`, id)

	var r model.Race
	var status, lastSeen, created, updated string
	err := row.Scan(&r.ID, &r.Slug, &r.Source, &r.ExternalID, &r.Name, &r.Date, &r.City, &r.State,
		&r.Distance, &r.DistanceLabel, &r.Surface, &r.ElevationGain,
		&r.Description, &r.Website,
		&r.RegistrationURL, &r.StartTime,
		&r.Latitude, &r.Longitude,
		&r.NormalizedName, &r.LocationKey, &r.NormalizedURL, &r.HashKey,
		&r.QualityScore, &status, &lastSeen, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get race")
	}

	r.Status = model.RaceStatus(status)
	if r.LastSeenAt, err = parseSQLiteTime(lastSeen); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseSQLiteTime(created); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseSQLiteTime(updated); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) UpsertRace(ctx context.Context, race *model.Race) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO races (
			id, slug, source, external_id, name, date, city, state,
			distance, distance_label, surface, elevation_gain, description, website,
			registration_url, start_time, latitude, longitude,
			normalized_name, location_key, normalized_url, hash_key,
			quality_score, status, last_seen_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name             = excluded.name,
			date             = excluded.date,
			distance         = excluded.distance,
			distance_label   = excluded.distance_label,
			surface          = excluded.surface,
			elevation_gain   = excluded.elevation_gain,
			description      = excluded.description,
			website          = excluded.website,
			registration_url = excluded.registration_url,
			start_time       = excluded.start_time,
			latitude         = excluded.latitude,
			longitude        = excluded.longitude,
			normalized_name  = excluded.normalized_name,
			location_key     = excluded.location_key,
			normalized_url   = excluded.normalized_url,
			hash_key         = excluded.hash_key,
			quality_score    = excluded.quality_score,
			status           = excluded.status,
			last_seen_at     = excluded.last_seen_at,
			updated_at       = excluded.updated_at`,
		race.ID, race.Slug, race.Source, race.ExternalID, race.Name, race.Date, race.City, race.State,
		nilIfEmpty(race.Distance), nilIfEmpty(race.DistanceLabel), nilIfEmpty(race.Surface), race.ElevationGain,
		nilIfEmpty(race.Description), nilIfEmpty(race.Website),
		nilIfEmpty(race.RegistrationURL), nilIfEmpty(race.StartTime),
		race.Latitude, race.Longitude,
		race.NormalizedName, race.LocationKey, nilIfEmpty(race.NormalizedURL), race.HashKey,
		race.QualityScore, string(race.Status),
		formatSQLiteTime(race.LastSeenAt), formatSQLiteTime(race.CreatedAt), formatSQLiteTime(race.UpdatedAt),
	)
	return eris.Wrap(err, "sqlite: upsert race")
}

func (s *SQLiteStore) TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	t := formatSQLiteTime(seenAt)
	_, err := s.db.ExecContext(ctx,
		`UPDATE races SET last_seen_at = ?, updated_at = ? WHERE id = ?`,
		t, t, id,
	)
	return eris.Wrap(err, "sqlite: touch last seen")
}

func (s *SQLiteStore) MarkInactiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE races SET status = 'inactive', updated_at = ? WHERE status = 'active' AND last_seen_at < ?`,
		formatSQLiteTime(time.Now().UTC()), formatSQLiteTime(cutoff),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: mark inactive")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: mark inactive rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) RecordImportRun(ctx context.Context, run model.ImportRun) error {
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal import stats")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO import_runs (id, source, stats, inactive, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, string(statsJSON), run.Inactive,
		formatSQLiteTime(run.StartedAt), formatSQLiteTime(run.FinishedAt),
	)
	return eris.Wrap(err, "sqlite: record import run")
}

func (s *SQLiteStore) LastImportRun(ctx context.Context) (*model.ImportRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, stats, inactive, started_at, finished_at FROM import_runs ORDER BY finished_at DESC LIMIT 1`,
	)

	var run model.ImportRun
	var statsJSON, started, finished string
	err := row.Scan(&run.ID, &run.Source, &statsJSON, &run.Inactive, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last import run")
	}
	if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal import stats")
	}
	if run.StartedAt, err = parseSQLiteTime(started); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseSQLiteTime(finished); err != nil {
		return nil, err
	}
	return &run, nil
}

// Timestamps are stored as second-precision UTC RFC 3339 strings so
// lexical ordering matches chronological ordering in WHERE/ORDER BY
// clauses.
func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse time %q", s)
	}
	return t, nil
}
