package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
)

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
	FindByPeriod(ctx context.Context, periodID string) (*models.Assignment, error)
	ListByTeacherDay(ctx context.Context, schoolID, teacherID, dayOfWeek string) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	DeleteByPeriod(ctx context.Context, periodID string) (bool, error)
}

type periodReader interface {
	FindByID(ctx context.Context, id string) (*models.Period, error)
}

type timetableReader interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
}

type rosterReader interface {
	FindTeacher(ctx context.Context, id string) (*models.Teacher, error)
	FindSubject(ctx context.Context, id string) (*models.Subject, error)
	FindClass(ctx context.Context, id string) (*models.Class, error)
}

type gridCache interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AssignRequest binds a teacher and subject to a period.
type AssignRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
}

// AssignmentService owns the assignment table and the conflict protocol.
type AssignmentService struct {
	assignments assignmentRepository
	periods     periodReader
	timetables  timetableReader
	rosters     rosterReader
	detector    *ConflictDetector
	cache       gridCache
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	locks       keyedMutex
}

// NewAssignmentService instantiates AssignmentService.
func NewAssignmentService(
	assignments assignmentRepository,
	periods periodReader,
	timetables timetableReader,
	rosters rosterReader,
	cache gridCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		periods:     periods,
		timetables:  timetables,
		rosters:     rosters,
		detector:    NewConflictDetector(assignments),
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Detector exposes the conflict detector for collaborating services.
func (s *AssignmentService) Detector() *ConflictDetector {
	return s.detector
}

// List returns assignments with pagination metadata. Used by the
// reporting and export collaborators; read-only.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error) {
	assignments, total, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return assignments, pagination, nil
}

// Assign binds a teacher-subject pair to an empty class period after the
// conflict scan passes.
func (s *AssignmentService) Assign(ctx context.Context, schoolID, periodID string, req AssignRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	period, timetable, err := s.loadPeriodScope(ctx, schoolID, periodID)
	if err != nil {
		return nil, err
	}
	if period.Type != models.PeriodTypeClass {
		return nil, appErrors.Clone(appErrors.ErrCannotAssignBreak, "")
	}
	startMin, endMin, err := models.ClockRangeMinutes(period.StartTime, period.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTimeRange.Code, appErrors.ErrInvalidTimeRange.Status, "period carries an invalid time range")
	}

	if _, err := s.assignments.FindByPeriod(ctx, periodID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrSlotOccupied, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot occupancy")
	}

	teacher, subject, err := s.loadRosterPair(ctx, schoolID, req.TeacherID, req.SubjectID)
	if err != nil {
		return nil, err
	}

	candidate := &models.Assignment{
		TimetableID: timetable.ID,
		PeriodID:    period.ID,
		SchoolID:    timetable.SchoolID,
		ClassID:     timetable.ClassID,
		ClassName:   timetable.ClassName,
		TeacherID:   teacher.ID,
		TeacherName: teacher.FullName,
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		DayOfWeek:   period.DayOfWeek,
		StartTime:   period.StartTime,
		EndTime:     period.EndTime,
	}

	if err := s.commitChecked(ctx, candidate, startMin, endMin); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordAssignment("assign")
	}
	return candidate, nil
}

// Reassign swaps the teacher/subject binding of a period in one atomic
// step. A conflict rejection leaves the original assignment intact.
func (s *AssignmentService) Reassign(ctx context.Context, schoolID, periodID string, req AssignRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	period, timetable, err := s.loadPeriodScope(ctx, schoolID, periodID)
	if err != nil {
		return nil, err
	}
	if period.Type != models.PeriodTypeClass {
		return nil, appErrors.Clone(appErrors.ErrCannotAssignBreak, "")
	}
	startMin, endMin, err := models.ClockRangeMinutes(period.StartTime, period.EndTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTimeRange.Code, appErrors.ErrInvalidTimeRange.Status, "period carries an invalid time range")
	}

	existing, err := s.assignments.FindByPeriod(ctx, periodID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current assignment")
	}

	teacher, subject, err := s.loadRosterPair(ctx, schoolID, req.TeacherID, req.SubjectID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(conflictKey(schoolID, teacher.ID, period.DayOfWeek))
	defer unlock()

	conflict, err := s.detector.Check(ctx, schoolID, teacher.ID, period.DayOfWeek, startMin, endMin, period.ID)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		if s.metrics != nil {
			s.metrics.RecordConflict()
		}
		return nil, wrapTeacherConflict(*conflict)
	}

	if existing == nil {
		candidate := &models.Assignment{
			TimetableID: timetable.ID,
			PeriodID:    period.ID,
			SchoolID:    timetable.SchoolID,
			ClassID:     timetable.ClassID,
			ClassName:   timetable.ClassName,
			TeacherID:   teacher.ID,
			TeacherName: teacher.FullName,
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			DayOfWeek:   period.DayOfWeek,
			StartTime:   period.StartTime,
			EndTime:     period.EndTime,
		}
		if err := s.assignments.Create(ctx, candidate); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
		}
		existing = candidate
	} else {
		existing.TeacherID = teacher.ID
		existing.TeacherName = teacher.FullName
		existing.SubjectID = subject.ID
		existing.SubjectName = subject.Name
		existing.StartTime = period.StartTime
		existing.EndTime = period.EndTime
		if err := s.assignments.Update(ctx, existing); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
		}
	}

	s.invalidateGrid(ctx, timetable.ID)
	if s.metrics != nil {
		s.metrics.RecordAssignment("reassign")
	}
	return existing, nil
}

// Unassign clears a period's assignment. Idempotent; unassigning an
// already-empty period succeeds silently.
func (s *AssignmentService) Unassign(ctx context.Context, schoolID, periodID string) error {
	_, timetable, err := s.loadPeriodScope(ctx, schoolID, periodID)
	if err != nil {
		return err
	}

	deleted, err := s.assignments.DeleteByPeriod(ctx, periodID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	if deleted {
		s.invalidateGrid(ctx, timetable.ID)
		if s.metrics != nil {
			s.metrics.RecordAssignment("unassign")
		}
	}
	return nil
}

// CreateChecked runs the full conflict protocol for a pre-built
// candidate. Clone and template-apply feed their per-slot replays
// through here so every copied binding passes the same scan.
func (s *AssignmentService) CreateChecked(ctx context.Context, candidate *models.Assignment) error {
	startMin, endMin, err := models.ClockRangeMinutes(candidate.StartTime, candidate.EndTime)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInvalidTimeRange.Code, appErrors.ErrInvalidTimeRange.Status, "candidate carries an invalid time range")
	}
	return s.commitChecked(ctx, candidate, startMin, endMin)
}

func (s *AssignmentService) commitChecked(ctx context.Context, candidate *models.Assignment, startMin, endMin int) error {
	unlock := s.locks.Lock(conflictKey(candidate.SchoolID, candidate.TeacherID, candidate.DayOfWeek))
	defer unlock()

	conflict, err := s.detector.Check(ctx, candidate.SchoolID, candidate.TeacherID, candidate.DayOfWeek, startMin, endMin, candidate.PeriodID)
	if err != nil {
		return err
	}
	if conflict != nil {
		if s.metrics != nil {
			s.metrics.RecordConflict()
		}
		return wrapTeacherConflict(*conflict)
	}

	if err := s.assignments.Create(ctx, candidate); err != nil {
		// The repository surfaces unique-index violations as typed
		// errors; keep them instead of masking as internal.
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return appErr
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.invalidateGrid(ctx, candidate.TimetableID)
	return nil
}

func (s *AssignmentService) loadPeriodScope(ctx context.Context, schoolID, periodID string) (*models.Period, *models.Timetable, error) {
	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	timetable, err := s.timetables.FindByID(ctx, period.TimetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if timetable.SchoolID != schoolID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
	}
	return period, timetable, nil
}

func (s *AssignmentService) loadRosterPair(ctx context.Context, schoolID, teacherID, subjectID string) (*models.Teacher, *models.Subject, error) {
	teacher, err := s.rosters.FindTeacher(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.SchoolID != schoolID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	if !teacher.Active {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "teacher inactive")
	}

	subject, err := s.rosters.FindSubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject.SchoolID != schoolID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	return teacher, subject, nil
}

func (s *AssignmentService) invalidateGrid(ctx context.Context, timetableID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, gridCacheKey(timetableID)); err != nil {
		s.logger.Warn("grid cache invalidation failed", zap.String("timetable_id", timetableID), zap.Error(err))
	}
}
