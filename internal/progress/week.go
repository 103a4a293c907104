// Package progress is the pure calculation layer: week windows, completion
// counting from state traces, and pacing status. It performs no I/O and
// takes "now" as an explicit input.
package progress

import (
	"fmt"
	"strings"
	"time"
)

// WeekStart selects which day begins the tracking week.
type WeekStart int

const (
	StartSunday WeekStart = iota
	StartMonday
)

// ParseWeekStart maps a config string to a WeekStart.
func ParseWeekStart(s string) (WeekStart, error) {
	switch strings.ToLower(s) {
	case "sunday":
		return StartSunday, nil
	case "monday":
		return StartMonday, nil
	}
	return StartSunday, fmt.Errorf("unknown week start %q", s)
}

// Window is the current tracking week: [Start, End) in local time, with
// DayOfWeek 0..6 counted from the configured first day.
type Window struct {
	Start     time.Time
	End       time.Time
	DayOfWeek int
	DaysLeft  int
}

// Week computes the window containing now. Start is midnight of the
// week's first day in now's location; End is the following week's first
// midnight, exclusive.
func Week(now time.Time, start WeekStart) Window {
	day := int(now.Weekday())
	if start == StartMonday {
		day = (day + 6) % 7
	}

	y, m, d := now.Date()
	weekStart := time.Date(y, m, d-day, 0, 0, 0, 0, now.Location())
	weekEnd := time.Date(y, m, d-day+7, 0, 0, 0, 0, now.Location())

	return Window{
		Start:     weekStart,
		End:       weekEnd,
		DayOfWeek: day,
		DaysLeft:  6 - day,
	}
}
