package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
)

// TimetableRepository provides persistence for class timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new timetable repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

const timetableColumns = `id, school_id, class_id, class_name, term_id, status, created_by, created_at, updated_at`

// List returns timetables for a school with optional filtering and pagination.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	base := "FROM timetables WHERE school_id = $1"
	args := []interface{}{filter.SchoolID}

	if filter.Status != "" {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"class_name": true,
		"status":     true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "class_name"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", timetableColumns, base, sortBy, order, size, offset)
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}

	return timetables, total, nil
}

// FindByID loads a timetable by id.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE id = $1", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// FindActiveByClass loads the active timetable for a class, if any.
func (r *TimetableRepository) FindActiveByClass(ctx context.Context, schoolID, classID string) (*models.Timetable, error) {
	query := fmt.Sprintf("SELECT %s FROM timetables WHERE school_id = $1 AND class_id = $2 AND status = $3", timetableColumns)
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, schoolID, classID, models.TimetableStatusActive); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// CreateWithPeriods inserts the timetable and its full period grid in one
// transaction so a half-provisioned grid is never visible.
func (r *TimetableRepository) CreateWithPeriods(ctx context.Context, timetable *models.Timetable, periods []models.Period) error {
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusActive
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `
INSERT INTO timetables (id, school_id, class_id, class_name, term_id, status, created_by, created_at, updated_at)
VALUES (:id, :school_id, :class_id, :class_name, :term_id, :status, :created_by, :created_at, :updated_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, insertQuery, timetable); err != nil {
		// The partial unique index on (school_id, class_id) for active
		// timetables backstops races between concurrent create calls.
		if isUniqueViolation(err, "uq_timetables_active_class") {
			return appErrors.Wrap(err, appErrors.ErrDuplicateTimetable.Code, appErrors.ErrDuplicateTimetable.Status, appErrors.ErrDuplicateTimetable.Message)
		}
		return fmt.Errorf("insert timetable: %w", err)
	}

	for i := range periods {
		periods[i].TimetableID = timetable.ID
	}
	if err = bulkInsertPeriods(ctx, tx, periods); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create timetable: %w", err)
	}
	return nil
}

// Delete removes a timetable, cascading to its periods and assignments.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM assignments WHERE timetable_id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable assignments: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM periods WHERE timetable_id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable periods: %w", err)
	}

	var result sql.Result
	if result, err = tx.ExecContext(ctx, `DELETE FROM timetables WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	var affected int64
	if affected, err = result.RowsAffected(); err != nil {
		return fmt.Errorf("check deleted timetable rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete timetable: %w", err)
	}
	return nil
}
