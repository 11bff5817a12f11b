// Package dedupe decides whether a candidate listing is the same
// real-world event as a race already on file, using progressively
// looser criteria: URL identity, exact key match, then trigram fuzzy
// matching. All functions are total over well-typed input and never
// return an error; no match simply means "new canonical record".
package dedupe

import (
	"math"
	"time"
)

// MatchType classifies how a duplicate was identified.
type MatchType string

const (
	MatchExactURL MatchType = "exact_url"
	MatchExact    MatchType = "exact_match"
	MatchFuzzy    MatchType = "fuzzy_match"
)

// DateTolerance is the maximum calendar-date difference still treated
// as the same event. Source data entry varies by a day for the same
// occurrence; kept as one constant so the policy is easy to revisit.
const DateTolerance = 24 * time.Hour

// DefaultFuzzyThreshold is the minimum trigram similarity for a fuzzy
// match. Mirrors the pg_trgm-style 0.6 cutoff.
const DefaultFuzzyThreshold = 0.6

// Candidate is the minimal projection of an existing canonical race
// needed for matching. The store returns candidates ordered by id
// ascending so first-match-wins stays deterministic across reruns.
type Candidate struct {
	ID             string
	NormalizedName string
	LocationKey    string
	Date           string // ISO YYYY-MM-DD
	NormalizedURL  string
}

// Match is the transient dedup decision consumed by the importer.
type Match struct {
	Type       MatchType
	RaceID     string
	Confidence float64
}

// FindURLMatch scans for an existing race with the same non-empty
// normalized URL. Two listings pointing at the same event page are the
// same event regardless of name or date drift.
func FindURLMatch(normalizedURL string, existing []Candidate) *Match {
	if normalizedURL == "" {
		return nil
	}
	for _, c := range existing {
		if c.NormalizedURL != "" && c.NormalizedURL == normalizedURL {
			return &Match{Type: MatchExactURL, RaceID: c.ID, Confidence: 1.0}
		}
	}
	return nil
}

// FindExactMatch scans for an existing race with equal normalized name
// and location key. Identical dates match with confidence 1.0; dates
// within DateTolerance match with confidence 0.95. Two passes so an
// identical-date hit always wins over a nearby-date one.
func FindExactMatch(normalizedName, locationKey, date string, existing []Candidate) *Match {
	for _, c := range existing {
		if c.NormalizedName == normalizedName && c.LocationKey == locationKey && c.Date == date {
			return &Match{Type: MatchExact, RaceID: c.ID, Confidence: 1.0}
		}
	}
	for _, c := range existing {
		if c.NormalizedName == normalizedName && c.LocationKey == locationKey && withinTolerance(date, c.Date) {
			return &Match{Type: MatchExact, RaceID: c.ID, Confidence: 0.95}
		}
	}
	return nil
}

// FindFuzzyMatch scans for an existing race in the same location with a
// date within DateTolerance whose normalized name is at least threshold
// similar. First match wins; the caller's candidate ordering decides
// ties. A threshold <= 0 falls back to DefaultFuzzyThreshold.
func FindFuzzyMatch(normalizedName, locationKey, date string, existing []Candidate, threshold float64) *Match {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	for _, c := range existing {
		if c.LocationKey != locationKey {
			continue
		}
		if c.Date != date && !withinTolerance(date, c.Date) {
			continue
		}
		if sim := TrigramSimilarity(normalizedName, c.NormalizedName); sim >= threshold {
			return &Match{Type: MatchFuzzy, RaceID: c.ID, Confidence: sim}
		}
	}
	return nil
}

// TrigramSimilarity returns the Jaccard ratio of the trigram sets of a
// and b. Identical strings score 1.0; strings shorter than 3 characters
// are not comparable and score 0.
func TrigramSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) < 3 || len(b) < 3 {
		return 0
	}

	ta := trigrams(a)
	tb := trigrams(b)

	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// trigrams returns the deduplicated set of contiguous 3-byte substrings.
func trigrams(s string) map[string]bool {
	set := make(map[string]bool, len(s))
	for i := 0; i+3 <= len(s); i++ {
		set[s[i:i+3]] = true
	}
	return set
}

// withinTolerance reports whether two ISO dates are at most
// DateTolerance apart. Unparsable dates are never within tolerance.
func withinTolerance(a, b string) bool {
	ta, errA := time.Parse("2006-01-02", a)
	tb, errB := time.Parse("2006-01-02", b)
	if errA != nil || errB != nil {
		return false
	}
	return math.Abs(ta.Sub(tb).Hours()) <= DateTolerance.Hours()
}
