package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schoolyard-io/timetable-api/internal/models"
)

// PeriodRepository provides persistence for timetable periods.
type PeriodRepository struct {
	db *sqlx.DB
}

// NewPeriodRepository creates a new period repository.
func NewPeriodRepository(db *sqlx.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

const periodColumns = `id, timetable_id, day_of_week, name, start_time, end_time, type, duration_minutes, created_at, updated_at`

// FindByID loads a period by id.
func (r *PeriodRepository) FindByID(ctx context.Context, id string) (*models.Period, error) {
	query := fmt.Sprintf("SELECT %s FROM periods WHERE id = $1", periodColumns)
	var period models.Period
	if err := r.db.GetContext(ctx, &period, query, id); err != nil {
		return nil, err
	}
	return &period, nil
}

// ListByTimetable returns all periods of a timetable in day/time order.
func (r *PeriodRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.Period, error) {
	query := fmt.Sprintf(`SELECT %s FROM periods WHERE timetable_id = $1
ORDER BY array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY'], day_of_week), start_time ASC`, periodColumns)
	var periods []models.Period
	if err := r.db.SelectContext(ctx, &periods, query, timetableID); err != nil {
		return nil, fmt.Errorf("list periods: %w", err)
	}
	return periods, nil
}

// UpdateTimes changes one period's time range.
func (r *PeriodRepository) UpdateTimes(ctx context.Context, id, startTime, endTime string, durationMinutes int) error {
	const query = `UPDATE periods SET start_time = $1, end_time = $2, duration_minutes = $3, updated_at = $4 WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, startTime, endTime, durationMinutes, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update period times: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated period rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a single day's period row together with its assignment.
// Rows for the same slot name on other days are untouched.
func (r *PeriodRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete period: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM assignments WHERE period_id = $1`, id); err != nil {
		return fmt.Errorf("delete period assignment: %w", err)
	}

	var result sql.Result
	if result, err = tx.ExecContext(ctx, `DELETE FROM periods WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete period: %w", err)
	}
	var affected int64
	if affected, err = result.RowsAffected(); err != nil {
		return fmt.Errorf("check deleted period rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete period: %w", err)
	}
	return nil
}

func bulkInsertPeriods(ctx context.Context, exec sqlx.ExtContext, periods []models.Period) error {
	now := time.Now().UTC()
	for i := range periods {
		payload := periods[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		payload.UpdatedAt = now

		const query = `
INSERT INTO periods (id, timetable_id, day_of_week, name, start_time, end_time, type, duration_minutes, created_at, updated_at)
VALUES (:id, :timetable_id, :day_of_week, :name, :start_time, :end_time, :type, :duration_minutes, :created_at, :updated_at)`
		if _, err := sqlx.NamedExecContext(ctx, exec, query, &payload); err != nil {
			return fmt.Errorf("bulk insert period: %w", err)
		}
		periods[i] = payload
	}
	return nil
}
