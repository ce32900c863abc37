package models

import (
	"fmt"
	"time"
)

// TimetableStatus represents the lifecycle state of a class timetable.
type TimetableStatus string

const (
	TimetableStatusActive   TimetableStatus = "active"
	TimetableStatusInactive TimetableStatus = "inactive"
)

// Weekdays lists the five school days in grid order. Monday defines the
// canonical slot structure every other day must mirror.
var Weekdays = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY"}

// IsWeekday reports whether day is one of the five school days.
func IsWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// PeriodType distinguishes teachable slots from breaks.
type PeriodType string

const (
	PeriodTypeClass PeriodType = "class"
	PeriodTypeBreak PeriodType = "break"
)

// Timetable is the weekly schedule aggregate for one class. At most one
// active timetable may exist per (school, class) pair.
type Timetable struct {
	ID        string          `db:"id" json:"id"`
	SchoolID  string          `db:"school_id" json:"school_id"`
	ClassID   string          `db:"class_id" json:"class_id"`
	ClassName string          `db:"class_name" json:"class_name"`
	TermID    *string         `db:"term_id" json:"term_id,omitempty"`
	Status    TimetableStatus `db:"status" json:"status"`
	CreatedBy string          `db:"created_by" json:"created_by"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableFilter describes query params for listing timetables.
type TimetableFilter struct {
	SchoolID  string
	Status    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Period is one named time slot on a specific day within a timetable.
type Period struct {
	ID              string     `db:"id" json:"id"`
	TimetableID     string     `db:"timetable_id" json:"timetable_id"`
	DayOfWeek       string     `db:"day_of_week" json:"day_of_week"`
	Name            string     `db:"name" json:"name"`
	StartTime       string     `db:"start_time" json:"start_time"`
	EndTime         string     `db:"end_time" json:"end_time"`
	Type            PeriodType `db:"type" json:"type"`
	DurationMinutes int        `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// GridPeriod pairs a period with its assignment for the grid read-model.
type GridPeriod struct {
	Period     Period      `json:"period"`
	Assignment *Assignment `json:"assignment,omitempty"`
}

// DayGrid groups a day's periods in time order.
type DayGrid struct {
	DayOfWeek string       `json:"day_of_week"`
	Periods   []GridPeriod `json:"periods"`
}

// TimetableGrid is the full weekly view the admin client renders.
type TimetableGrid struct {
	Timetable Timetable `json:"timetable"`
	Days      []DayGrid `json:"days"`
}

// ParseClock converts a wall-clock "HH:MM" string to minutes since
// midnight. The format is strict: exactly two digits, a colon, two
// digits. Times are minute-granular; seconds are not modeled.
func ParseClock(value string) (int, error) {
	if len(value) != 5 || value[2] != ':' {
		return 0, fmt.Errorf("parse clock %q: want HH:MM", value)
	}
	for _, i := range [...]int{0, 1, 3, 4} {
		if value[i] < '0' || value[i] > '9' {
			return 0, fmt.Errorf("parse clock %q: want HH:MM", value)
		}
	}
	h := int(value[0]-'0')*10 + int(value[1]-'0')
	m := int(value[3]-'0')*10 + int(value[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("parse clock %q: out of range", value)
	}
	return h*60 + m, nil
}

// ClockRangeMinutes validates a [start,end) range and returns its bounds
// in minutes since midnight. An empty range (start == end) is invalid.
func ClockRangeMinutes(start, end string) (int, int, error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, 0, err
	}
	if s >= e {
		return 0, 0, fmt.Errorf("clock range %s-%s: start must precede end", start, end)
	}
	return s, e, nil
}

// RangesOverlap implements half-open interval overlap: back-to-back
// ranges (aEnd == bStart) do not overlap.
func RangesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}
