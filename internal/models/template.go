package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Template is a saved snapshot of a timetable's slot structure and
// subject requirements, read-only once created. By default teacher
// bindings are stripped; a template saved with KeepTeachers carries
// them, and conflicts are evaluated only when the template is applied.
type Template struct {
	ID           string         `db:"id" json:"id"`
	SchoolID     string         `db:"school_id" json:"school_id"`
	Name         string         `db:"name" json:"name"`
	SourceClass  string         `db:"source_class" json:"source_class"`
	KeepTeachers bool           `db:"keep_teachers" json:"keep_teachers"`
	Slots        types.JSONText `db:"slots" json:"slots"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// TemplateSlot is one entry of a template's serialized slot list.
type TemplateSlot struct {
	DayOfWeek   string     `json:"day_of_week"`
	Name        string     `json:"name"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`
	Type        PeriodType `json:"type"`
	SubjectID   string     `json:"subject_id,omitempty"`
	SubjectName string     `json:"subject_name,omitempty"`
	TeacherID   string     `json:"teacher_id,omitempty"`
	TeacherName string     `json:"teacher_name,omitempty"`
}
