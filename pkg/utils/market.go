// Package utils provides shared helpers for market sessions and retries.
package utils

import (
	"time"
)

var easternLocation *time.Location

func init() {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// Running without tzdata; EST-only fallback ignores DST.
		loc = time.FixedZone("EST", -5*3600)
	}
	easternLocation = loc
}

// Eastern converts t to the US equity market's time zone.
func Eastern(t time.Time) time.Time {
	return t.In(easternLocation)
}

// MarketHours describes one regular trading session.
type MarketHours struct {
	OpenHour   int
	OpenMinute int
	CloseHour  int
}

// IsMarketOpen reports whether the regular session is in progress at t.
// Weekends are closed; exchange holidays are not modeled, those days simply
// produce no fills.
func (h MarketHours) IsMarketOpen(t time.Time) bool {
	et := Eastern(t)
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	open := time.Date(et.Year(), et.Month(), et.Day(), h.OpenHour, h.OpenMinute, 0, 0, easternLocation)
	close := time.Date(et.Year(), et.Month(), et.Day(), h.CloseHour, 0, 0, 0, easternLocation)
	return !et.Before(open) && et.Before(close)
}

// NextOpen returns the next session open at or after t.
func (h MarketHours) NextOpen(t time.Time) time.Time {
	et := Eastern(t)
	open := time.Date(et.Year(), et.Month(), et.Day(), h.OpenHour, h.OpenMinute, 0, 0, easternLocation)
	if !et.Before(open) {
		open = open.AddDate(0, 0, 1)
	}
	for open.Weekday() == time.Saturday || open.Weekday() == time.Sunday {
		open = open.AddDate(0, 0, 1)
	}
	return open
}

// SameEasternDay reports whether a and b fall on the same calendar day in the
// market's time zone. Used to detect the midnight session boundary.
func SameEasternDay(a, b time.Time) bool {
	ea, eb := Eastern(a), Eastern(b)
	return ea.Year() == eb.Year() && ea.YearDay() == eb.YearDay()
}
