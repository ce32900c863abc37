package service

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
	"github.com/schoolyard-io/timetable-api/pkg/jobs"
	"github.com/schoolyard-io/timetable-api/pkg/storage"
)

type stubJobStore struct {
	values map[string][]byte
}

func (s *stubJobStore) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := s.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubJobStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.values == nil {
		s.values = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.values[key] = payload
	return nil
}

type stubGridProvider struct {
	grid *models.TimetableGrid
}

func (s *stubGridProvider) Grid(ctx context.Context, schoolID, timetableID string) (*models.TimetableGrid, error) {
	return s.grid, nil
}

func exportFixtureGrid() *models.TimetableGrid {
	return &models.TimetableGrid{
		Timetable: models.Timetable{ID: "tt-1", SchoolID: "school-1", ClassID: "class-1", ClassName: "7A"},
		Days: []models.DayGrid{
			{
				DayOfWeek: "MONDAY",
				Periods: []models.GridPeriod{
					{
						Period:     models.Period{ID: "p-mon", Name: "P1", StartTime: "08:00", EndTime: "08:45", Type: models.PeriodTypeClass},
						Assignment: &models.Assignment{TeacherName: "R. Putri", SubjectName: "Mathematics"},
					},
					{
						Period: models.Period{ID: "p-rec", Name: "Recess", StartTime: "08:45", EndTime: "09:00", Type: models.PeriodTypeBreak},
					},
				},
			},
		},
	}
}

func newExportServiceForTest(t *testing.T) (*ExportService, *stubJobStore, *fakeTimetableRepo) {
	t.Helper()
	timetables, _, _, _, _ := timetableFixtures()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	store := &stubJobStore{}
	svc := NewExportService(&stubGridProvider{grid: exportFixtureGrid()}, timetables, store, files, signer, 1, time.Hour, nil, nil)
	return svc, store, timetables
}

func TestExportRequestQueuesPendingJob(t *testing.T) {
	svc, store, _ := newExportServiceForTest(t)
	svc.Start(context.Background())
	defer svc.Stop()

	job, err := svc.Request(context.Background(), "school-1", "user-1", "tt-1")
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ExportStatusPending, job.Status)
	assert.Contains(t, store.values, "timetable:export:"+job.ID)
}

func TestExportRequestHidesForeignTimetables(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)
	svc.Start(context.Background())
	defer svc.Stop()

	_, err := svc.Request(context.Background(), "school-2", "user-1", "tt-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportProcessRendersGridAndSignsDownload(t *testing.T) {
	svc, store, _ := newExportServiceForTest(t)

	job := models.ExportJob{
		ID: "job-1", SchoolID: "school-1", TimetableID: "tt-1",
		Status: models.ExportStatusPending, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Set(context.Background(), "timetable:export:job-1", job, time.Hour))
	require.NoError(t, svc.process(context.Background(), jobs.Job{ID: job.ID, Type: "grid_csv", Payload: job}))

	done, err := svc.Status(context.Background(), "school-1", "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusDone, done.Status)
	assert.NotEmpty(t, done.Token)
	require.NotNil(t, done.ExpiresAt)

	file, err := svc.Open(done.Token)
	require.NoError(t, err)
	defer file.Close()
	payload, err := io.ReadAll(file)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Day,Period,Start,End,Type,Subject,Teacher", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "MONDAY,P1,08:00,08:45,class,Mathematics,R. Putri")
	assert.Contains(t, lines[2], "Recess")
}

func TestExportStatusScopedToSchool(t *testing.T) {
	svc, store, _ := newExportServiceForTest(t)
	job := models.ExportJob{ID: "job-1", SchoolID: "school-1", TimetableID: "tt-1", Status: models.ExportStatusPending}
	require.NoError(t, store.Set(context.Background(), "timetable:export:job-1", job, time.Hour))

	_, err := svc.Status(context.Background(), "school-2", "job-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Status(context.Background(), "school-1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportOpenRejectsForgedToken(t *testing.T) {
	svc, _, _ := newExportServiceForTest(t)

	_, err := svc.Open("job-1.1767225600.Z3JpZHMvdHQtMS5jc3Y.deadbeef")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
