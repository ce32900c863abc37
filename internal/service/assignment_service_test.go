package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
)

type mockAssignmentRepo struct {
	mu          sync.Mutex
	byPeriod    map[string]*models.Assignment
	teacherDay  []models.Assignment
	listErr     error
	createErr   error
	created     []*models.Assignment
	updated     []*models.Assignment
	deleted     []string
	deleteFound bool
}

func (m *mockAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.teacherDay, len(m.teacherDay), nil
}

func (m *mockAssignmentRepo) FindByPeriod(ctx context.Context, periodID string) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if assignment, ok := m.byPeriod[periodID]; ok {
		return assignment, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentRepo) ListByTeacherDay(ctx context.Context, schoolID, teacherID, dayOfWeek string) ([]models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.Assignment
	for _, item := range m.teacherDay {
		if item.SchoolID == schoolID && item.TeacherID == teacherID && item.DayOfWeek == dayOfWeek {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

func (m *mockAssignmentRepo) Create(ctx context.Context, assignment *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, assignment)
	m.teacherDay = append(m.teacherDay, *assignment)
	return nil
}

func (m *mockAssignmentRepo) Update(ctx context.Context, assignment *models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = append(m.updated, assignment)
	return nil
}

func (m *mockAssignmentRepo) DeleteByPeriod(ctx context.Context, periodID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, periodID)
	return m.deleteFound, nil
}

type stubPeriodReader struct {
	periods map[string]*models.Period
}

func (s *stubPeriodReader) FindByID(ctx context.Context, id string) (*models.Period, error) {
	if period, ok := s.periods[id]; ok {
		return period, nil
	}
	return nil, sql.ErrNoRows
}

type stubTimetableReader struct {
	timetables map[string]*models.Timetable
}

func (s *stubTimetableReader) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	if timetable, ok := s.timetables[id]; ok {
		return timetable, nil
	}
	return nil, sql.ErrNoRows
}

type stubRosterReader struct {
	teachers map[string]*models.Teacher
	subjects map[string]*models.Subject
	classes  map[string]*models.Class
}

func (s *stubRosterReader) FindTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := s.teachers[id]; ok {
		return teacher, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubRosterReader) FindSubject(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := s.subjects[id]; ok {
		return subject, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubRosterReader) FindClass(ctx context.Context, id string) (*models.Class, error) {
	if class, ok := s.classes[id]; ok {
		return class, nil
	}
	return nil, sql.ErrNoRows
}

type stubGridInvalidator struct {
	patterns []string
}

func (s *stubGridInvalidator) DeleteByPattern(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return nil
}

func assignmentFixtures() (*mockAssignmentRepo, *stubPeriodReader, *stubTimetableReader, *stubRosterReader, *stubGridInvalidator) {
	repo := &mockAssignmentRepo{byPeriod: map[string]*models.Assignment{}}
	periods := &stubPeriodReader{periods: map[string]*models.Period{
		"p-1": {ID: "p-1", TimetableID: "tt-1", DayOfWeek: "MONDAY", Name: "P1", StartTime: "08:00", EndTime: "08:45", Type: models.PeriodTypeClass},
		"p-2": {ID: "p-2", TimetableID: "tt-1", DayOfWeek: "MONDAY", Name: "Recess", StartTime: "08:45", EndTime: "09:00", Type: models.PeriodTypeBreak},
	}}
	timetables := &stubTimetableReader{timetables: map[string]*models.Timetable{
		"tt-1": {ID: "tt-1", SchoolID: "school-1", ClassID: "class-1", ClassName: "7A", Status: models.TimetableStatusActive},
	}}
	rosters := &stubRosterReader{
		teachers: map[string]*models.Teacher{
			"teacher-1": {ID: "teacher-1", SchoolID: "school-1", FullName: "R. Putri", Active: true},
			"teacher-2": {ID: "teacher-2", SchoolID: "school-1", FullName: "B. Santoso", Active: true},
			"inactive":  {ID: "inactive", SchoolID: "school-1", FullName: "Retired", Active: false},
		},
		subjects: map[string]*models.Subject{
			"subject-1": {ID: "subject-1", SchoolID: "school-1", Name: "Mathematics", Active: true},
		},
	}
	cache := &stubGridInvalidator{}
	return repo, periods, timetables, rosters, cache
}

func newAssignmentServiceForTest(repo *mockAssignmentRepo, periods *stubPeriodReader, timetables *stubTimetableReader, rosters *stubRosterReader, cache *stubGridInvalidator) *AssignmentService {
	return NewAssignmentService(repo, periods, timetables, rosters, cache, nil, nil, nil)
}

func TestAssignBindsTeacherToFreePeriod(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	assignment, err := svc.Assign(context.Background(), "school-1", "p-1", AssignRequest{TeacherID: "teacher-1", SubjectID: "subject-1"})
	require.NoError(t, err)
	assert.Equal(t, "tt-1", assignment.TimetableID)
	assert.Equal(t, "7A", assignment.ClassName)
	assert.Equal(t, "R. Putri", assignment.TeacherName)
	assert.Equal(t, "Mathematics", assignment.SubjectName)
	assert.Equal(t, "08:00", assignment.StartTime)
	require.Len(t, repo.created, 1)
	assert.Equal(t, []string{"timetable:grid:tt-1"}, cache.patterns)
}

func TestAssignRejectsOccupiedSlot(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	repo.byPeriod["p-1"] = &models.Assignment{ID: "as-1", PeriodID: "p-1"}
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	_, err := svc.Assign(context.Background(), "school-1", "p-1", AssignRequest{TeacherID: "teacher-1", SubjectID: "subject-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotOccupied.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestAssignRejectsBreakPeriod(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	_, err := svc.Assign(context.Background(), "school-1", "p-2", AssignRequest{TeacherID: "teacher-1", SubjectID: "subject-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCannotAssignBreak.Code, appErrors.FromError(err).Code)
}

func TestAssignDetectsOverlapAcrossClasses(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	repo.teacherDay = []models.Assignment{{
		ID:        "as-other",
		PeriodID:  "p-other",
		SchoolID:  "school-1",
		ClassName: "8B",
		TeacherID: "teacher-1", TeacherName: "R. Putri",
		DayOfWeek: "MONDAY", StartTime: "08:30", EndTime: "09:15",
	}}
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	_, err := svc.Assign(context.Background(), "school-1", "p-1", AssignRequest{TeacherID: "teacher-1", SubjectID: "subject-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTeacherConflict.Code, appErrors.FromError(err).Code)

	var conflictErr *models.TeacherConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, "8B", conflictErr.Conflict.ClassName)
	assert.Empty(t, repo.created)
}

func TestAssignAllowsBackToBackPeriods(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	repo.teacherDay = []models.Assignment{{
		ID:       "as-other",
		PeriodID: "p-other",
		SchoolID: "school-1", TeacherID: "teacher-1",
		DayOfWeek: "MONDAY", StartTime: "07:15", EndTime: "08:00",
	}}
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	_, err := svc.Assign(context.Background(), "school-1", "p-1", AssignRequest{TeacherID: "teacher-1", SubjectID: "subject-1"})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
}

func TestAssignRejectsInactiveTeacher(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	_, err := svc.Assign(context.Background(), "school-1", "p-1", AssignRequest{TeacherID: "inactive", SubjectID: "subject-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestAssignHidesForeignSchoolPeriods(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	_, err := svc.Assign(context.Background(), "school-2", "p-1", AssignRequest{TeacherID: "teacher-1", SubjectID: "subject-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReassignSwapsBindingInPlace(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	existing := &models.Assignment{
		ID: "as-1", PeriodID: "p-1", TimetableID: "tt-1",
		SchoolID: "school-1", TeacherID: "teacher-1", TeacherName: "R. Putri",
		DayOfWeek: "MONDAY", StartTime: "08:00", EndTime: "08:45",
	}
	repo.byPeriod["p-1"] = existing
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	updated, err := svc.Reassign(context.Background(), "school-1", "p-1", AssignRequest{TeacherID: "teacher-2", SubjectID: "subject-1"})
	require.NoError(t, err)
	assert.Equal(t, "as-1", updated.ID)
	assert.Equal(t, "teacher-2", updated.TeacherID)
	assert.Equal(t, "B. Santoso", updated.TeacherName)
	require.Len(t, repo.updated, 1)
	assert.Empty(t, repo.created)
	assert.Equal(t, []string{"timetable:grid:tt-1"}, cache.patterns)
}

func TestReassignConflictLeavesOriginalIntact(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	repo.byPeriod["p-1"] = &models.Assignment{
		ID: "as-1", PeriodID: "p-1", TimetableID: "tt-1",
		SchoolID: "school-1", TeacherID: "teacher-1",
		DayOfWeek: "MONDAY", StartTime: "08:00", EndTime: "08:45",
	}
	repo.teacherDay = []models.Assignment{{
		ID: "as-2", PeriodID: "p-9",
		SchoolID: "school-1", TeacherID: "teacher-2", TeacherName: "B. Santoso", ClassName: "9C",
		DayOfWeek: "MONDAY", StartTime: "08:00", EndTime: "09:00",
	}}
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	_, err := svc.Reassign(context.Background(), "school-1", "p-1", AssignRequest{TeacherID: "teacher-2", SubjectID: "subject-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTeacherConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
	assert.Empty(t, cache.patterns)
}

func TestUnassignIsIdempotent(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	repo.deleteFound = false
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	require.NoError(t, svc.Unassign(context.Background(), "school-1", "p-1"))
	assert.Empty(t, cache.patterns)

	repo.deleteFound = true
	require.NoError(t, svc.Unassign(context.Background(), "school-1", "p-1"))
	assert.Equal(t, []string{"timetable:grid:tt-1"}, cache.patterns)
}

func TestCreateCheckedIgnoresOwnPeriodRow(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	repo.teacherDay = []models.Assignment{{
		ID: "as-1", PeriodID: "p-1",
		SchoolID: "school-1", TeacherID: "teacher-1",
		DayOfWeek: "MONDAY", StartTime: "08:00", EndTime: "08:45",
	}}
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	err := svc.CreateChecked(context.Background(), &models.Assignment{
		TimetableID: "tt-2", PeriodID: "p-1",
		SchoolID: "school-1", TeacherID: "teacher-1",
		DayOfWeek: "MONDAY", StartTime: "08:00", EndTime: "08:45",
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
}

func TestConcurrentAssignsSerializePerTeacherDay(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	// Eight classes race to book the same teacher into the same
	// Monday 08:00-08:45 window. The per-teacher-day lock must let
	// exactly one through and reject the rest as conflicts.
	const racers = 8
	results := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.CreateChecked(context.Background(), &models.Assignment{
				TimetableID: fmt.Sprintf("tt-%d", i),
				PeriodID:    fmt.Sprintf("p-class-%d", i),
				SchoolID:    "school-1",
				ClassID:     fmt.Sprintf("class-%d", i),
				TeacherID:   "teacher-1",
				DayOfWeek:   "MONDAY",
				StartTime:   "08:00",
				EndTime:     "08:45",
			})
		}(i)
	}
	wg.Wait()

	var committed, conflicted int
	for _, err := range results {
		if err == nil {
			committed++
			continue
		}
		require.Equal(t, appErrors.ErrTeacherConflict.Code, appErrors.FromError(err).Code)
		conflicted++
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, racers-1, conflicted)
	assert.Len(t, repo.created, 1)
}

func TestAssignSurfacesSlotOccupiedFromStorage(t *testing.T) {
	repo, periods, timetables, rosters, cache := assignmentFixtures()
	repo.createErr = appErrors.Clone(appErrors.ErrSlotOccupied, "")
	svc := newAssignmentServiceForTest(repo, periods, timetables, rosters, cache)

	_, err := svc.Assign(context.Background(), "school-1", "p-1", AssignRequest{TeacherID: "teacher-1", SubjectID: "subject-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotOccupied.Code, appErrors.FromError(err).Code)
	assert.Empty(t, cache.patterns)
}
