package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
)

func newAssignmentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func assignmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "timetable_id", "period_id", "school_id", "class_id", "class_name", "teacher_id", "teacher_name", "subject_id", "subject_name", "day_of_week", "start_time", "end_time", "created_at", "updated_at"}).
		AddRow("as-1", "tt-1", "p-1", "school-1", "class-1", "7A", "teacher-1", "R. Putri", "subject-1", "Mathematics", "MONDAY", "08:00", "08:45", time.Now(), time.Now())
}

func TestAssignmentRepositoryListByTeacherDay(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE school_id = $1 AND teacher_id = $2 AND day_of_week = $3")).
		WithArgs("school-1", "teacher-1", "MONDAY").
		WillReturnRows(assignmentRows())

	assignments, err := repo.ListByTeacherDay(context.Background(), "school-1", "teacher-1", "MONDAY")
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
	assert.Equal(t, "p-1", assignments[0].PeriodID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE school_id = $1 AND class_id = $2 AND day_of_week = $3 ORDER BY day_of_week ASC, start_time ASC LIMIT 20 OFFSET 0")).
		WithArgs("school-1", "class-1", "MONDAY").
		WillReturnRows(assignmentRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assignments WHERE school_id = $1 AND class_id = $2 AND day_of_week = $3")).
		WithArgs("school-1", "class-1", "MONDAY").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	assignments, total, err := repo.List(context.Background(), models.AssignmentFilter{
		SchoolID:  "school-1",
		ClassID:   "class-1",
		DayOfWeek: "MONDAY",
	})
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := &models.Assignment{
		TimetableID: "tt-1",
		PeriodID:    "p-1",
		SchoolID:    "school-1",
		ClassID:     "class-1",
		ClassName:   "7A",
		TeacherID:   "teacher-1",
		TeacherName: "R. Putri",
		SubjectID:   "subject-1",
		SubjectName: "Mathematics",
		DayOfWeek:   "MONDAY",
		StartTime:   "08:00",
		EndTime:     "08:45",
	}
	require.NoError(t, repo.Create(context.Background(), assignment))
	assert.NotEmpty(t, assignment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreateMapsPeriodUniqueViolation(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_assignments_period"})

	err := repo.Create(context.Background(), &models.Assignment{
		TimetableID: "tt-1",
		PeriodID:    "p-1",
		SchoolID:    "school-1",
		TeacherID:   "teacher-1",
		DayOfWeek:   "MONDAY",
		StartTime:   "08:00",
		EndTime:     "08:45",
	})
	require.Error(t, err)
	assert.Equal(t, "SLOT_OCCUPIED", appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryUpdateTimesByPeriod(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET start_time = $1, end_time = $2, updated_at = $3 WHERE period_id = $4")).
		WithArgs("09:00", "09:45", sqlmock.AnyArg(), "p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateTimesByPeriod(context.Background(), "p-1", "09:00", "09:45"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryDeleteByPeriod(t *testing.T) {
	db, mock, cleanup := newAssignmentMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE period_id = $1")).
		WithArgs("p-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteByPeriod(context.Background(), "p-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE period_id = $1")).
		WithArgs("p-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err = repo.DeleteByPeriod(context.Background(), "p-2")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
