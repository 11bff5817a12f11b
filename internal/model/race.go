package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// RaceStatus tracks whether a canonical race is still listed upstream.
// Races are never deleted by the pipeline; staleness flips them inactive.
type RaceStatus string

const (
	RaceStatusActive   RaceStatus = "active"
	RaceStatusInactive RaceStatus = "inactive"
	RaceStatusArchived RaceStatus = "archived"
)

// ParseRaceStatus converts a string into a RaceStatus.
func ParseRaceStatus(s string) (RaceStatus, error) {
	switch RaceStatus(s) {
	case RaceStatusActive, RaceStatusInactive, RaceStatusArchived:
		return RaceStatus(s), nil
	default:
		return "", eris.Errorf("unknown race status: %q (valid: active, inactive, archived)", s)
	}
}

// RawRace is the provider-agnostic shape of one external listing as
// produced by a source adapter. It is transient: consumed once by the
// importer and never persisted as-is.
type RawRace struct {
	Source          string   `json:"source" yaml:"source"`
	ExternalID      string   `json:"external_id" yaml:"external_id"`
	ExternalURL     string   `json:"external_url,omitempty" yaml:"external_url,omitempty"`
	Name            string   `json:"name" yaml:"name"`
	Date            string   `json:"date" yaml:"date"` // ISO YYYY-MM-DD
	City            string   `json:"city" yaml:"city"`
	State           string   `json:"state" yaml:"state"`
	Distance        string   `json:"distance,omitempty" yaml:"distance,omitempty"`
	DistanceLabel   string   `json:"distance_label,omitempty" yaml:"distance_label,omitempty"`
	Surface         string   `json:"surface,omitempty" yaml:"surface,omitempty"`
	ElevationGain   *int     `json:"elevation_gain,omitempty" yaml:"elevation_gain,omitempty"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Website         string   `json:"website,omitempty" yaml:"website,omitempty"`
	RegistrationURL string   `json:"registration_url,omitempty" yaml:"registration_url,omitempty"`
	StartTime       string   `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty"`
}

// Race is the durable canonical record for one real-world event.
type Race struct {
	ID              string     `json:"id"`
	Slug            string     `json:"slug"`
	Source          string     `json:"source"`
	ExternalID      string     `json:"external_id"`
	Name            string     `json:"name"`
	Date            string     `json:"date"`
	City            string     `json:"city"`
	State           string     `json:"state"`
	Distance        string     `json:"distance,omitempty"`
	DistanceLabel   string     `json:"distance_label,omitempty"`
	Surface         string     `json:"surface,omitempty"`
	ElevationGain   *int       `json:"elevation_gain,omitempty"`
	Description     string     `json:"description,omitempty"`
	Website         string     `json:"website,omitempty"`
	RegistrationURL string     `json:"registration_url,omitempty"`
	StartTime       string     `json:"start_time,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	NormalizedName  string     `json:"normalized_name"`
	LocationKey     string     `json:"location_key"`
	NormalizedURL   string     `json:"normalized_url,omitempty"`
	HashKey         string     `json:"hash_key"`
	QualityScore    int        `json:"quality_score"`
	Status          RaceStatus `json:"status"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ImportStats aggregates the outcome of one import batch.
type ImportStats struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// Total returns the number of records that were fully processed.
func (s ImportStats) Total() int {
	return s.Created + s.Updated + s.Skipped
}

// ImportRun is one persisted import execution, kept so operators can
// inspect the last outcome via the status endpoint.
type ImportRun struct {
	ID         string      `json:"id"`
	Source     string      `json:"source"`
	Stats      ImportStats `json:"stats"`
	Inactive   int         `json:"inactive_marked"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}
