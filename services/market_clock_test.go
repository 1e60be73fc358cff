package services

import (
	"testing"
	"time"

	"github.com/Ssaent/StockPulse-sub000/config"
	"github.com/Ssaent/StockPulse-sub000/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClock(t *testing.T) *MarketClock {
	t.Helper()
	return NewMarketClock(config.DefaultMarketScheduleConfig())
}

func istTime(t *testing.T, year int, month time.Month, day, hour, min, sec int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return time.Date(year, month, day, hour, min, sec, 0, loc)
}

func TestMarketClockSessionBoundaries(t *testing.T) {
	clock := newTestClock(t)

	// 2024-01-09 is a Tuesday.
	cases := []struct {
		name     string
		now      time.Time
		expected models.MarketStatus
	}{
		{"one second before open", istTime(t, 2024, time.January, 9, 9, 14, 59), models.MarketClosed},
		{"exactly at open", istTime(t, 2024, time.January, 9, 9, 15, 0), models.MarketOpen},
		{"mid session", istTime(t, 2024, time.January, 9, 11, 0, 0), models.MarketOpen},
		{"exactly at close", istTime(t, 2024, time.January, 9, 15, 30, 0), models.MarketOpen},
		{"one second after close", istTime(t, 2024, time.January, 9, 15, 30, 1), models.MarketClosed},
		{"evening", istTime(t, 2024, time.January, 9, 20, 0, 0), models.MarketClosed},
		{"early morning", istTime(t, 2024, time.January, 9, 7, 0, 0), models.MarketClosed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, clock.Status(tc.now))
		})
	}
}

func TestMarketClockOpenBoundaryIsInclusive(t *testing.T) {
	clock := newTestClock(t)

	// Both window bounds count as Open; one second either side does not.
	assert.Equal(t, models.MarketOpen, clock.Status(istTime(t, 2024, time.January, 9, 9, 15, 0)))
	assert.Equal(t, models.MarketClosed, clock.Status(istTime(t, 2024, time.January, 9, 9, 14, 59)))
	assert.Equal(t, models.MarketOpen, clock.Status(istTime(t, 2024, time.January, 9, 15, 30, 0)))
	assert.Equal(t, models.MarketClosed, clock.Status(istTime(t, 2024, time.January, 9, 15, 30, 1)))
}

func TestMarketClockStatusReasons(t *testing.T) {
	clock := newTestClock(t)

	status, reason := clock.StatusWithReason(istTime(t, 2024, time.January, 6, 11, 0, 0)) // Saturday
	assert.Equal(t, models.MarketClosed, status)
	assert.Equal(t, ReasonWeekend, reason)

	status, reason = clock.StatusWithReason(istTime(t, 2024, time.January, 9, 8, 0, 0))
	assert.Equal(t, models.MarketClosed, status)
	assert.Equal(t, ReasonBeforeHours, reason)

	status, reason = clock.StatusWithReason(istTime(t, 2024, time.January, 9, 17, 0, 0))
	assert.Equal(t, models.MarketClosed, status)
	assert.Equal(t, ReasonAfterHours, reason)

	status, reason = clock.StatusWithReason(istTime(t, 2024, time.January, 9, 12, 0, 0))
	assert.Equal(t, models.MarketOpen, status)
	assert.Equal(t, ReasonTrading, reason)
}

func TestMarketClockConvertsToVenueTimezone(t *testing.T) {
	clock := newTestClock(t)

	// 05:45 UTC is 11:15 IST on the same Tuesday: inside the session even
	// though the UTC clock reads before open.
	utc := time.Date(2024, time.January, 9, 5, 45, 0, 0, time.UTC)
	assert.Equal(t, models.MarketOpen, clock.Status(utc))

	// 11:00 UTC is 16:30 IST: after close.
	utc = time.Date(2024, time.January, 9, 11, 0, 0, 0, time.UTC)
	assert.Equal(t, models.MarketClosed, clock.Status(utc))
}

func TestMarketClockUnknownTimezoneFallsBackToUTC(t *testing.T) {
	clock := NewMarketClock(&config.MarketScheduleConfig{
		Timezone:    "Not/AZone",
		OpenMinute:  9*60 + 15,
		CloseMinute: 15*60 + 30,
	})
	assert.Equal(t, time.UTC, clock.Location())
}

func TestMarketClockSessionWindow(t *testing.T) {
	clock := newTestClock(t)
	openAt, closeAt := clock.SessionWindow()
	assert.Equal(t, "09:15", openAt)
	assert.Equal(t, "15:30", closeAt)
}

// TestMarketClockWeekendProperty checks that any instant falling on a
// Saturday or Sunday in venue time reports Closed, regardless of the hour.
func TestMarketClockWeekendProperty(t *testing.T) {
	clock := newTestClock(t)
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 2024-01-06 00:00 IST is a Saturday; the weekend spans the next 2880 minutes.
	weekendStart := time.Date(2024, time.January, 6, 0, 0, 0, 0, loc)

	properties := gopter.NewProperties(nil)
	properties.Property("weekend instants are always Closed", prop.ForAll(
		func(weekOffset, minuteOffset int) bool {
			now := weekendStart.
				AddDate(0, 0, 7*weekOffset).
				Add(time.Duration(minuteOffset) * time.Minute)
			return clock.Status(now) == models.MarketClosed
		},
		gen.IntRange(0, 51),
		gen.IntRange(0, 2879),
	))
	properties.TestingRun(t)
}

// TestMarketClockWeekdayWindowProperty checks the inclusive session window on
// weekdays: minutes inside [09:15, 15:30] are Open, everything else Closed.
func TestMarketClockWeekdayWindowProperty(t *testing.T) {
	clock := newTestClock(t)
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 2024-01-08 is a Monday; weekdayIndex 0-4 covers Monday through Friday.
	mondayStart := time.Date(2024, time.January, 8, 0, 0, 0, 0, loc)
	openMinute := 9*60 + 15
	closeMinute := 15*60 + 30

	properties := gopter.NewProperties(nil)
	properties.Property("weekday status matches the session window", prop.ForAll(
		func(weekdayIndex, minuteOfDay int) bool {
			now := mondayStart.
				AddDate(0, 0, weekdayIndex).
				Add(time.Duration(minuteOfDay) * time.Minute)
			inWindow := minuteOfDay >= openMinute && minuteOfDay <= closeMinute
			if inWindow {
				return clock.Status(now) == models.MarketOpen
			}
			return clock.Status(now) == models.MarketClosed
		},
		gen.IntRange(0, 4),
		gen.IntRange(0, 1439),
	))
	properties.TestingRun(t)
}
