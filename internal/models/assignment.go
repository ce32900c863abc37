package models

import "time"

// Assignment binds a teacher and subject to one period. Day and times
// are duplicated from the period so the conflict scan needs no join;
// names are display-only snapshots taken from the rosters at assignment
// time and never updated retroactively.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	PeriodID    string    `db:"period_id" json:"period_id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	ClassName   string    `db:"class_name" json:"class_name"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	TeacherName string    `db:"teacher_name" json:"teacher_name"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	DayOfWeek   string    `db:"day_of_week" json:"day_of_week"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentFilter describes query params for listing assignments.
type AssignmentFilter struct {
	SchoolID  string
	ClassID   string
	TeacherID string
	SubjectID string
	DayOfWeek string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TeacherConflict describes the existing assignment that blocks a
// candidate, with enough context to render a message without a
// follow-up query.
type TeacherConflict struct {
	AssignmentID string `json:"assignment_id"`
	TeacherID    string `json:"teacher_id"`
	TeacherName  string `json:"teacher_name"`
	ClassName    string `json:"class_name"`
	DayOfWeek    string `json:"day_of_week"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

// TeacherConflictError is returned when an assignment would double-book
// a teacher on overlapping day/time ranges within the same school.
type TeacherConflictError struct {
	Message  string          `json:"message"`
	Conflict TeacherConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *TeacherConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// SkippedSlot itemizes one slot a bulk operation could not replicate.
type SkippedSlot struct {
	PeriodID   string `json:"period_id"`
	DayOfWeek  string `json:"day_of_week"`
	PeriodName string `json:"period_name"`
	Reason     string `json:"reason"`
}

// CloneResult summarises a best-effort bulk replication. Committed slots
// are never rolled back because other slots were skipped.
type CloneResult struct {
	TimetableID  string        `json:"timetable_id"`
	ClonedCount  int           `json:"cloned_count"`
	Skipped      []SkippedSlot `json:"skipped"`
	AbortedEarly bool          `json:"aborted_early,omitempty"`
}
