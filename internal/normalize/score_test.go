package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raceatlas/racedir-cli/internal/model"
)

func TestStandardScorer_MinimalRecord(t *testing.T) {
	r := model.RawRace{Name: "Boston 10K", Date: "2026-04-20", City: "Boston", State: "MA"}
	assert.Equal(t, MinScore, StandardScorer{}.Score(r))
}

func TestStandardScorer_RichRecord(t *testing.T) {
	elev := 120
	r := model.RawRace{
		Name:            "Boston 10K",
		Date:            "2026-04-20",
		City:            "Boston",
		State:           "MA",
		Description:     strings.Repeat("a scenic course through the city ", 10),
		Website:         "https://boston10k.com",
		RegistrationURL: "https://runsignup.com/Race/12345",
		StartTime:       "08:00",
		Distance:        "10K",
		Surface:         "Road",
		ElevationGain:   &elev,
	}
	assert.Equal(t, 95, StandardScorer{}.Score(r))
}

func TestStandardScorer_DescriptionTiers(t *testing.T) {
	short := model.RawRace{Description: strings.Repeat("x", 51)}
	long := model.RawRace{Description: strings.Repeat("x", 201)}
	assert.Equal(t, MinScore+20, StandardScorer{}.Score(short))
	assert.Equal(t, MinScore+30, StandardScorer{}.Score(long))
}

func TestStandardScorer_DescriptionCountsRunesNotBytes(t *testing.T) {
	// 50 two-byte runes is 100 bytes but only 50 characters, under the
	// first tier.
	r := model.RawRace{Description: strings.Repeat("é", 50)}
	assert.Equal(t, MinScore, StandardScorer{}.Score(r))

	r.Description = strings.Repeat("é", 51)
	assert.Equal(t, MinScore+20, StandardScorer{}.Score(r))
}

func TestStandardScorer_SentinelValuesScoreNothing(t *testing.T) {
	r := model.RawRace{Distance: "Other", Surface: "unknown"}
	assert.Equal(t, MinScore, StandardScorer{}.Score(r))
}

func TestStandardScorer_Monotonic(t *testing.T) {
	base := model.RawRace{Name: "Boston 10K"}
	withSite := base
	withSite.Website = "https://boston10k.com"
	withMore := withSite
	withMore.StartTime = "08:00"

	s := StandardScorer{}
	assert.Less(t, s.Score(base), s.Score(withSite))
	assert.Less(t, s.Score(withSite), s.Score(withMore))
}
