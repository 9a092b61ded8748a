package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/studio-asistencia-api/internal/models"
)

func TestNormalizeTruncatesToMidnight(t *testing.T) {
	loc := time.UTC
	stamp := time.Date(2026, 3, 14, 18, 45, 12, 999, loc)

	got := Normalize(stamp, loc)

	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, loc), got)
}

func TestWindowInclusiveBounds(t *testing.T) {
	loc := time.UTC
	cutoff := time.Date(2026, 3, 14, 10, 0, 0, 0, loc)

	start, end := Window(cutoff, 6, loc)

	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, loc), end)
}

func TestWindowNegativeLookback(t *testing.T) {
	loc := time.UTC
	cutoff := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)

	start, end := Window(cutoff, -3, loc)

	assert.Equal(t, end, start)
}

func TestProjectMatchesPattern(t *testing.T) {
	loc := time.UTC
	// 2026-03-08 is a Sunday, 2026-03-14 a Saturday.
	start := time.Date(2026, 3, 8, 0, 0, 0, 0, loc)
	end := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)
	pattern := models.Weekdays{1, 3, 5} // Mon, Wed, Fri

	dates := Project(pattern, start, end)

	require.Len(t, dates, 3)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, loc), dates[0])
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, loc), dates[1])
	assert.Equal(t, time.Date(2026, 3, 13, 0, 0, 0, 0, loc), dates[2])
}

func TestProjectAscendingAcrossWeeks(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, loc)
	end := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)

	dates := Project(models.Weekdays{1, 4}, start, end)

	require.NotEmpty(t, dates)
	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i-1].Before(dates[i]), "dates must ascend")
	}
	for _, d := range dates {
		assert.Contains(t, []time.Weekday{time.Monday, time.Thursday}, d.Weekday())
	}
}

func TestProjectEmptyPattern(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 3, 8, 0, 0, 0, 0, loc)
	end := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)

	assert.Nil(t, Project(models.Weekdays{}, start, end))
}

func TestProjectInvertedWindow(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)
	end := time.Date(2026, 3, 8, 0, 0, 0, 0, loc)

	assert.Empty(t, Project(models.Weekdays{1}, start, end))
}
