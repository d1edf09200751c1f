// Package schedule generates pickup time slots from category operating hours.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"batard/internal/models"
)

const (
	// DefaultSlotSizeMinutes is used when a category leaves the slot size unset.
	DefaultSlotSizeMinutes = 15
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
)

// Slots returns the bookable "HH:mm" slots of a category on date, ascending.
// now supplies the wall clock for same-day lead-time truncation; future dates
// ignore lead time entirely. The end boundary is inclusive: a slot landing
// exactly on the window end is valid. The adjusted start is NOT snapped to
// the slot grid; the walk begins at the raw start.
func Slots(cat *models.Category, date time.Time, now time.Time) []string {
	window := cat.WeekdayTime
	if isWeekend(date) {
		window = cat.WeekendsTime
	}
	if window.IsZero() {
		return nil
	}

	start, err := parseMinutes(window.From)
	if err != nil {
		return nil
	}
	end, err := parseMinutes(window.To)
	if err != nil {
		return nil
	}

	slotSize := cat.SlotSizeMinutes
	if slotSize <= 0 {
		slotSize = DefaultSlotSizeMinutes
	}
	lead := cat.LeadTimeMinutes
	if lead < 0 {
		lead = 0
	}

	if sameDay(date, now) {
		nowMinutes := now.Hour()*60 + now.Minute() + lead
		if nowMinutes > start {
			start = nowMinutes
		}
	}

	if start > end {
		return nil
	}

	var slots []string
	for m := start; m <= end; m += slotSize {
		slots = append(slots, formatMinutes(m))
	}
	return slots
}

// SlotsOn is a convenience wrapper taking the date in wire format.
func SlotsOn(cat *models.Category, date string, now time.Time) ([]string, error) {
	d, err := time.ParseInLocation(DateLayout, date, now.Location())
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	return Slots(cat, d, now), nil
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// parseMinutes converts "HH:mm" to minutes since midnight.
func parseMinutes(t string) (int, error) {
	parts := strings.Split(t, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time format: %s", t)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}
	return hour*60 + minute, nil
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
