package normalize

import (
	"unicode/utf8"

	"github.com/raceatlas/racedir-cli/internal/model"
)

// Score bounds for the quality heuristic.
const (
	MinScore = 10
	MaxScore = 100
)

// Scorer rates the completeness/richness of a raw listing. The score
// decides whether a newer duplicate overwrites an older canonical
// record, so implementations must be monotonic: adding information to a
// record never lowers its score.
type Scorer interface {
	Score(r model.RawRace) int
}

// StandardScorer is the additive field-presence scorer. Base 10, capped
// at 100.
type StandardScorer struct{}

// Score computes the quality score for one raw listing.
func (StandardScorer) Score(r model.RawRace) int {
	score := MinScore

	// Thresholds are in characters, not bytes, so multibyte text does
	// not cross them early.
	descLen := utf8.RuneCountInString(r.Description)
	if descLen > 50 {
		score += 20
	}
	if descLen > 200 {
		score += 10
	}
	if r.Website != "" {
		score += 15
	}
	if r.RegistrationURL != "" {
		score += 10
	}
	if r.StartTime != "" {
		score += 10
	}
	if r.Distance != "" && r.Distance != "Other" {
		score += 10
	}
	if r.Surface != "" && r.Surface != "unknown" {
		score += 5
	}
	if r.ElevationGain != nil {
		score += 5
	}

	if score > MaxScore {
		score = MaxScore
	}
	return score
}
