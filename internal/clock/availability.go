package clock

import (
	"fmt"
	"strings"
	"time"
)

// TestAvailability tells whether a booked test can be taken right now.
type TestAvailability string

const (
	NotYet    TestAvailability = "not_yet"
	Available TestAvailability = "available"
	Passed    TestAvailability = "passed"
)

// Booking dates are written without a year ("Friday, 03 October").
var scheduleLayouts = []string{
	"Monday, 02 January",
	"Monday, 2 January",
	"2006-01-02",
}

// ParseScheduledDate resolves a booking date in the location of now. Dates
// without a year take the year of now.
func ParseScheduledDate(scheduled string, now time.Time) (time.Time, error) {
	raw := strings.TrimSpace(scheduled)
	for _, layout := range scheduleLayouts {
		t, err := time.ParseInLocation(layout, raw, now.Location())
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised test date %q", scheduled)
}

// Availability derives the availability of a test scheduled on scheduled.
// A test opens at startHour on its day and stays open until midnight.
// override forces Available (test mode).
func Availability(scheduled string, now time.Time, override bool, startHour int) (TestAvailability, error) {
	if override {
		return Available, nil
	}

	day, err := ParseScheduledDate(scheduled, now)
	if err != nil {
		return NotYet, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case day.Before(today):
		return Passed, nil
	case day.After(today):
		return NotYet, nil
	case now.Hour() >= startHour:
		return Available, nil
	default:
		return NotYet, nil
	}
}
