package timeentry

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Bookable hour slots of the weekly grid.
const (
	FirstSlot = 6
	LastSlot  = 22
)

// Week is a Monday to Sunday range of calendar dates.
type Week struct {
	Start time.Time
	End   time.Time
}

// WeekOf returns the week containing day.
func WeekOf(day time.Time) Week {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	start := d.AddDate(0, 0, -offset)
	return Week{Start: start, End: start.AddDate(0, 0, 6)}
}

// Days returns the seven dates of the week as YYYY-MM-DD.
func (w Week) Days() []string {
	days := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		days = append(days, w.Start.AddDate(0, 0, i).Format(dateLayout))
	}
	return days
}

func (w Week) From() string { return w.Start.Format(dateLayout) }
func (w Week) To() string   { return w.End.Format(dateLayout) }

// Next and Prev step one week forward or back.
func (w Week) Next() Week { return WeekOf(w.Start.AddDate(0, 0, 7)) }
func (w Week) Prev() Week { return WeekOf(w.Start.AddDate(0, 0, -7)) }

// Slots lists the bookable start hours.
func Slots() []int {
	slots := make([]int, 0, LastSlot-FirstSlot+1)
	for h := FirstSlot; h <= LastSlot; h++ {
		slots = append(slots, h)
	}
	return slots
}

// SlotTime formats an hour as a slot start time.
func SlotTime(hour int) (string, error) {
	if hour < FirstSlot || hour > LastSlot {
		return "", fmt.Errorf("%w: %d", ErrInvalidSlot, hour)
	}
	return fmt.Sprintf("%02d:00:00", hour), nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}
