package shipping

import (
	"testing"
	"time"

	"storefront-service/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEstimator(t *testing.T, holidays ...string) *Estimator {
	t.Helper()
	holidaySet := make(map[string]bool, len(holidays))
	for _, h := range holidays {
		holidaySet[h] = true
	}
	est, err := NewEstimator(EstimatorConfig{
		CutoffHour:        14,
		MinProcessingDays: 1,
		WorkingDays:       DefaultWorkingDays(),
		Holidays:          holidaySet,
	})
	require.NoError(t, err)
	return est
}

func TestNewEstimator_RejectsEmptyWorkingDays(t *testing.T) {
	_, err := NewEstimator(EstimatorConfig{
		CutoffHour:        14,
		MinProcessingDays: 1,
		WorkingDays:       map[time.Weekday]bool{time.Monday: false},
	})
	assert.True(t, apperr.Is(err, apperr.CodeConfiguration))
}

func TestEstimate_SkipsWeekends(t *testing.T) {
	est := testEstimator(t)
	zone := Zone{MinDays: 2, MaxDays: 4}

	// Monday 2026-01-05, 09:00 (before cutoff): 1 processing day.
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	window := est.Estimate(zone, now)

	// 3 business days: Tue, Wed, Thu. 5 business days: Tue..Fri + Mon.
	assert.Equal(t, "2026-01-08", window.MinDate)
	assert.Equal(t, "2026-01-12", window.MaxDate)
}

func TestEstimate_CutoffAddsProcessingDay(t *testing.T) {
	est := testEstimator(t)
	zone := Zone{MinDays: 2, MaxDays: 2}

	before := time.Date(2026, 1, 5, 13, 59, 0, 0, time.UTC)
	after := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-01-08", est.Estimate(zone, before).MinDate)
	assert.Equal(t, "2026-01-09", est.Estimate(zone, after).MinDate)
}

func TestEstimate_SkipsHolidays(t *testing.T) {
	withHoliday := testEstimator(t, "2026-01-06")
	without := testEstimator(t)
	zone := Zone{MinDays: 2, MaxDays: 2}

	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-01-08", without.Estimate(zone, now).MinDate)
	// Tuesday the 6th is a holiday, so every date shifts by one business day.
	assert.Equal(t, "2026-01-09", withHoliday.Estimate(zone, now).MinDate)
}

func TestEstimate_StartsFromWeekend(t *testing.T) {
	est := testEstimator(t)
	zone := Zone{MinDays: 1, MaxDays: 1}

	// Saturday order before cutoff: 2 business days land Mon, Tue.
	now := time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC)
	window := est.Estimate(zone, now)

	assert.Equal(t, "2026-01-06", window.MinDate)
	assert.Equal(t, window.MinDate, window.MaxDate)
}
