package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
	"github.com/schoolyard-io/timetable-api/pkg/export"
	"github.com/schoolyard-io/timetable-api/pkg/jobs"
	"github.com/schoolyard-io/timetable-api/pkg/storage"
)

type gridProvider interface {
	Grid(ctx context.Context, schoolID, timetableID string) (*models.TimetableGrid, error)
}

type jobStateStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ExportService renders timetable grids to CSV files in the background
// and hands out signed download tokens. Job state lives in Redis so a
// client can poll from any instance.
type ExportService struct {
	grids      gridProvider
	timetables timetableReader
	store      jobStateStore
	exporter   *export.CSVExporter
	files      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	queue      *jobs.Queue
	ttl        time.Duration
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewExportService instantiates ExportService and its worker queue.
// Call Start before accepting requests and Stop on shutdown.
func NewExportService(
	grids gridProvider,
	timetables timetableReader,
	store jobStateStore,
	files *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	workers int,
	ttl time.Duration,
	metrics *MetricsService,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &ExportService{
		grids:      grids,
		timetables: timetables,
		store:      store,
		exporter:   export.NewCSVExporter(),
		files:      files,
		signer:     signer,
		ttl:        ttl,
		metrics:    metrics,
		logger:     logger,
	}
	onResult := func(string) {}
	if metrics != nil {
		onResult = metrics.RecordExportJob
	}
	s.queue = jobs.NewQueue("grid-export", s.process, jobs.QueueConfig{
		Workers:  workers,
		Logger:   logger,
		OnResult: onResult,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request queues a CSV export of the timetable's grid and returns the
// pending job record for polling.
func (s *ExportService) Request(ctx context.Context, schoolID, requestedBy, timetableID string) (*models.ExportJob, error) {
	timetable, err := s.timetables.FindByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if timetable.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		SchoolID:    schoolID,
		TimetableID: timetable.ID,
		Status:      models.ExportStatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Set(ctx, exportJobKey(job.ID), job, s.ttl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "grid_csv", Payload: *job}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export job")
	}
	return job, nil
}

// Status returns the current state of an export job.
func (s *ExportService) Status(ctx context.Context, schoolID, jobID string) (*models.ExportJob, error) {
	var job models.ExportJob
	if err := s.store.Get(ctx, exportJobKey(jobID), &job); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if job.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return &job, nil
}

// Open validates a download token and returns the exported file handle.
func (s *ExportService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, nil
}

func (s *ExportService) process(ctx context.Context, j jobs.Job) error {
	job, ok := j.Payload.(models.ExportJob)
	if !ok {
		s.logger.Error("unexpected export payload", zap.String("job_id", j.ID))
		return nil
	}

	grid, err := s.grids.Grid(ctx, job.SchoolID, job.TimetableID)
	if err != nil {
		s.fail(ctx, &job, err)
		return err
	}

	dataset := export.Dataset{
		Headers: []string{"Day", "Period", "Start", "End", "Type", "Subject", "Teacher"},
	}
	for _, day := range grid.Days {
		for _, slot := range day.Periods {
			subject, teacher := "", ""
			if slot.Assignment != nil {
				subject = slot.Assignment.SubjectName
				teacher = slot.Assignment.TeacherName
			}
			dataset.Rows = append(dataset.Rows, []string{
				day.DayOfWeek,
				slot.Period.Name,
				slot.Period.StartTime,
				slot.Period.EndTime,
				string(slot.Period.Type),
				subject,
				teacher,
			})
		}
	}

	payload, err := s.exporter.Render(dataset)
	if err != nil {
		s.fail(ctx, &job, err)
		return err
	}

	filename := "grids/" + job.TimetableID + "-" + job.ID + ".csv"
	if _, err := s.files.Save(filename, payload); err != nil {
		s.fail(ctx, &job, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, filename)
	if err != nil {
		s.fail(ctx, &job, err)
		return err
	}

	job.Status = models.ExportStatusDone
	job.File = filename
	job.Token = token
	job.ExpiresAt = &expiresAt
	job.Error = ""
	if err := s.store.Set(ctx, exportJobKey(job.ID), job, s.ttl); err != nil {
		s.logger.Warn("failed to persist export result", zap.String("job_id", job.ID), zap.Error(err))
	}
	return nil
}

func (s *ExportService) fail(ctx context.Context, job *models.ExportJob, cause error) {
	job.Status = models.ExportStatusFailed
	job.Error = appErrors.FromError(cause).Message
	if err := s.store.Set(ctx, exportJobKey(job.ID), job, s.ttl); err != nil {
		s.logger.Warn("failed to persist export failure", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func exportJobKey(id string) string {
	return "timetable:export:" + id
}
