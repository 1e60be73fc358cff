package services

import (
	"time"

	"github.com/Ssaent/StockPulse-sub000/config"
	"github.com/Ssaent/StockPulse-sub000/models"
	"github.com/sirupsen/logrus"
)

// Market status reasons surfaced alongside the open/closed flag.
const (
	ReasonWeekend     = "Weekend"
	ReasonBeforeHours = "Before market hours"
	ReasonAfterHours  = "After market hours"
	ReasonTrading     = "Trading hours"
)

// MarketClock derives the venue's open/closed status from wall-clock time and
// the configured session window. It is the single source of trading-hours
// arithmetic; nothing else in the engine recomputes it.
//
// Known gap, kept on purpose: no public-holiday calendar is consulted, so a
// weekday trading holiday reports Open.
type MarketClock struct {
	location    *time.Location
	openMinute  int
	closeMinute int
}

// NewMarketClock creates a clock for the configured venue schedule. An
// unknown timezone falls back to UTC rather than failing startup; the
// dashboard would rather poll on a skewed schedule than not at all.
func NewMarketClock(schedule *config.MarketScheduleConfig) *MarketClock {
	location, err := time.LoadLocation(schedule.Timezone)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "MarketClock",
			"timezone":  schedule.Timezone,
		}).WithError(err).Warn("Unknown venue timezone, falling back to UTC")
		location = time.UTC
	}

	return &MarketClock{
		location:    location,
		openMinute:  schedule.OpenMinute,
		closeMinute: schedule.CloseMinute,
	}
}

// Status returns Open iff now falls on a weekday inside the inclusive session
// window [open, close] in venue-local time. Pure and side-effect free.
func (mc *MarketClock) Status(now time.Time) models.MarketStatus {
	status, _ := mc.StatusWithReason(now)
	return status
}

// StatusWithReason returns the status plus a human-readable reason for the
// dashboard's status card.
func (mc *MarketClock) StatusWithReason(now time.Time) (models.MarketStatus, string) {
	local := now.In(mc.location)

	weekday := local.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return models.MarketClosed, ReasonWeekend
	}

	// Second precision so 09:14:59 is still closed and 15:30:01 already is;
	// the window bounds themselves are inclusive.
	secondOfDay := local.Hour()*3600 + local.Minute()*60 + local.Second()
	switch {
	case secondOfDay < mc.openMinute*60:
		return models.MarketClosed, ReasonBeforeHours
	case secondOfDay > mc.closeMinute*60:
		return models.MarketClosed, ReasonAfterHours
	default:
		return models.MarketOpen, ReasonTrading
	}
}

// SessionWindow returns the configured open and close times formatted for
// display, e.g. "09:15" and "15:30".
func (mc *MarketClock) SessionWindow() (string, string) {
	return formatMinute(mc.openMinute), formatMinute(mc.closeMinute)
}

// Location returns the venue's timezone.
func (mc *MarketClock) Location() *time.Location {
	return mc.location
}

func formatMinute(minuteOfDay int) string {
	t := time.Date(0, 1, 1, minuteOfDay/60, minuteOfDay%60, 0, 0, time.UTC)
	return t.Format("15:04")
}
