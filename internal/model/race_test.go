package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRaceStatus(t *testing.T) {
	for _, valid := range []string{"active", "inactive", "archived"} {
		status, err := ParseRaceStatus(valid)
		require.NoError(t, err)
		assert.Equal(t, RaceStatus(valid), status)
	}

	_, err := ParseRaceStatus("retired")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown race status")
}

func TestImportStatsTotal(t *testing.T) {
	stats := ImportStats{Created: 3, Updated: 2, Skipped: 1, Errors: []string{"one"}}
	assert.Equal(t, 6, stats.Total(), "errors are not processed records")
}
