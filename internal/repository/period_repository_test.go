package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPeriodMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPeriodRepositoryListByTimetableOrdersByDay(t *testing.T) {
	db, mock, cleanup := newPeriodMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	rows := sqlmock.NewRows([]string{"id", "timetable_id", "day_of_week", "name", "start_time", "end_time", "type", "duration_minutes", "created_at", "updated_at"}).
		AddRow("p-1", "tt-1", "MONDAY", "P1", "08:00", "08:45", "class", 45, time.Now(), time.Now()).
		AddRow("p-2", "tt-1", "MONDAY", "Recess", "08:45", "09:00", "break", 15, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("array_position(ARRAY['MONDAY','TUESDAY','WEDNESDAY','THURSDAY','FRIDAY'], day_of_week), start_time ASC")).
		WithArgs("tt-1").
		WillReturnRows(rows)

	periods, err := repo.ListByTimetable(context.Background(), "tt-1")
	require.NoError(t, err)
	assert.Len(t, periods, 2)
	assert.Equal(t, "P1", periods[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryUpdateTimes(t *testing.T) {
	db, mock, cleanup := newPeriodMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE periods SET start_time = $1, end_time = $2, duration_minutes = $3, updated_at = $4 WHERE id = $5")).
		WithArgs("09:00", "09:45", 45, sqlmock.AnyArg(), "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateTimes(context.Background(), "p-1", "09:00", "09:45", 45))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryUpdateTimesMissing(t *testing.T) {
	db, mock, cleanup := newPeriodMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectExec("UPDATE periods SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateTimes(context.Background(), "missing", "09:00", "09:45", 45)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPeriodRepositoryDeleteRemovesAssignmentFirst(t *testing.T) {
	db, mock, cleanup := newPeriodMock(t)
	defer cleanup()
	repo := NewPeriodRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE period_id = $1")).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM periods WHERE id = $1")).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "p-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
