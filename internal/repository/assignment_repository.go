package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
)

// AssignmentRepository provides persistence for teacher-subject assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, timetable_id, period_id, school_id, class_id, class_name, teacher_id, teacher_name, subject_id, subject_name, day_of_week, start_time, end_time, created_at, updated_at`

// List returns assignments with optional filtering and pagination.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	base := "FROM assignments WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}

	if filter.ClassID != "" {
		base += fmt.Sprintf(" AND class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.TeacherID != "" {
		base += fmt.Sprintf(" AND teacher_id = $%d", len(args)+1)
		args = append(args, filter.TeacherID)
	}
	if filter.SubjectID != "" {
		base += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if filter.DayOfWeek != "" {
		base += fmt.Sprintf(" AND day_of_week = $%d", len(args)+1)
		args = append(args, filter.DayOfWeek)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"day_of_week":  true,
		"start_time":   true,
		"class_name":   true,
		"teacher_name": true,
		"created_at":   true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "day_of_week"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, start_time ASC LIMIT %d OFFSET %d", assignmentColumns, base, sortBy, order, size, offset)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	return assignments, total, nil
}

// FindByPeriod loads the assignment bound to a period, if any.
func (r *AssignmentRepository) FindByPeriod(ctx context.Context, periodID string) (*models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE period_id = $1", assignmentColumns)
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, periodID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByTimetable returns a timetable's assignments keyed for grid rendering.
func (r *AssignmentRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE timetable_id = $1 ORDER BY day_of_week ASC, start_time ASC", assignmentColumns)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable assignments: %w", err)
	}
	return assignments, nil
}

// ListByTeacherDay returns a teacher's assignments across the whole school
// for one day. This is the conflict-scan working set.
func (r *AssignmentRepository) ListByTeacherDay(ctx context.Context, schoolID, teacherID, dayOfWeek string) ([]models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE school_id = $1 AND teacher_id = $2 AND day_of_week = $3", assignmentColumns)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, schoolID, teacherID, dayOfWeek); err != nil {
		return nil, fmt.Errorf("scan teacher day assignments: %w", err)
	}
	return assignments, nil
}

// Create stores a new assignment record.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `
INSERT INTO assignments (id, timetable_id, period_id, school_id, class_id, class_name, teacher_id, teacher_name, subject_id, subject_name, day_of_week, start_time, end_time, created_at, updated_at)
VALUES (:id, :timetable_id, :period_id, :school_id, :class_id, :class_name, :teacher_id, :teacher_name, :subject_id, :subject_name, :day_of_week, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		// The unique index on period_id is the backstop when several
		// instances race past the in-process conflict lock.
		if isUniqueViolation(err, "uq_assignments_period") {
			return appErrors.Wrap(err, appErrors.ErrSlotOccupied.Code, appErrors.ErrSlotOccupied.Status, appErrors.ErrSlotOccupied.Message)
		}
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update rewrites the teacher/subject binding of an existing assignment
// in place, keeping its period reference.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE assignments SET teacher_id = :teacher_id, teacher_name = :teacher_name, subject_id = :subject_id, subject_name = :subject_name,
	start_time = :start_time, end_time = :end_time, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// UpdateTimesByPeriod rewrites the denormalized times after a period edit.
func (r *AssignmentRepository) UpdateTimesByPeriod(ctx context.Context, periodID, startTime, endTime string) error {
	const query = `UPDATE assignments SET start_time = $1, end_time = $2, updated_at = $3 WHERE period_id = $4`
	if _, err := r.db.ExecContext(ctx, query, startTime, endTime, time.Now().UTC(), periodID); err != nil {
		return fmt.Errorf("update assignment times: %w", err)
	}
	return nil
}

// DeleteByPeriod removes the assignment bound to a period. Deleting an
// unassigned period is not an error; the affected count is returned so
// callers can distinguish.
func (r *AssignmentRepository) DeleteByPeriod(ctx context.Context, periodID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE period_id = $1`, periodID)
	if err != nil {
		return false, fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check deleted assignment rows: %w", err)
	}
	return affected > 0, nil
}
