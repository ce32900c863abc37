package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
)

type timetableRepository interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	FindActiveByClass(ctx context.Context, schoolID, classID string) (*models.Timetable, error)
	CreateWithPeriods(ctx context.Context, timetable *models.Timetable, periods []models.Period) error
	Delete(ctx context.Context, id string) error
}

type periodRepository interface {
	FindByID(ctx context.Context, id string) (*models.Period, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]models.Period, error)
	UpdateTimes(ctx context.Context, id, startTime, endTime string, durationMinutes int) error
	Delete(ctx context.Context, id string) error
}

type assignmentAccessor interface {
	FindByPeriod(ctx context.Context, periodID string) (*models.Assignment, error)
	ListByTimetable(ctx context.Context, timetableID string) ([]models.Assignment, error)
	ListByTeacherDay(ctx context.Context, schoolID, teacherID, dayOfWeek string) ([]models.Assignment, error)
	UpdateTimesByPeriod(ctx context.Context, periodID, startTime, endTime string) error
}

type gridCacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SlotSeed describes one named slot of the weekly grid template supplied
// at timetable creation.
type SlotSeed struct {
	Name      string            `json:"name" validate:"required"`
	StartTime string            `json:"start_time" validate:"required"`
	EndTime   string            `json:"end_time" validate:"required"`
	Type      models.PeriodType `json:"type" validate:"required,oneof=class break"`
}

// CreateTimetableRequest provisions a class's weekly grid.
type CreateTimetableRequest struct {
	ClassID string     `json:"class_id" validate:"required"`
	TermID  *string    `json:"term_id"`
	Days    []string   `json:"days"`
	Slots   []SlotSeed `json:"slots" validate:"required,min=1,dive"`
}

// UpdatePeriodTimeRequest changes one day's time range for a slot.
type UpdatePeriodTimeRequest struct {
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

// TimetableService owns the timetable aggregate and its period grid.
type TimetableService struct {
	timetables  timetableRepository
	periods     periodRepository
	assignments assignmentAccessor
	rosters     rosterReader
	detector    *ConflictDetector
	cache       gridCacheStore
	metrics     *MetricsService
	gridTTL     time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTimetableService instantiates TimetableService.
func NewTimetableService(
	timetables timetableRepository,
	periods periodRepository,
	assignments assignmentAccessor,
	rosters rosterReader,
	cache gridCacheStore,
	metrics *MetricsService,
	gridTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if gridTTL <= 0 {
		gridTTL = 5 * time.Minute
	}
	return &TimetableService{
		timetables:  timetables,
		periods:     periods,
		assignments: assignments,
		rosters:     rosters,
		detector:    NewConflictDetector(assignments),
		cache:       cache,
		metrics:     metrics,
		gridTTL:     gridTTL,
		validator:   validate,
		logger:      logger,
	}
}

func gridCacheKey(timetableID string) string {
	return "timetable:grid:" + timetableID
}

// List returns a school's timetables with pagination metadata.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error) {
	timetables, total, err := s.timetables.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetables")
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
	return timetables, pagination, nil
}

// Create provisions one timetable plus one period per (day, slot). The
// whole grid becomes visible atomically or not at all.
func (s *TimetableService) Create(ctx context.Context, schoolID, createdBy string, req CreateTimetableRequest) (*models.Timetable, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}

	days := req.Days
	if len(days) == 0 {
		days = models.Weekdays
	}
	if err := validateSlotTemplate(days, req.Slots); err != nil {
		return nil, err
	}

	class, err := s.rosters.FindClass(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !class.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class inactive")
	}

	if _, err := s.timetables.FindActiveByClass(ctx, schoolID, req.ClassID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateTimetable, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing timetable")
	}

	timetable := &models.Timetable{
		SchoolID:  schoolID,
		ClassID:   class.ID,
		ClassName: class.Name,
		TermID:    req.TermID,
		Status:    models.TimetableStatusActive,
		CreatedBy: createdBy,
	}

	periods := make([]models.Period, 0, len(days)*len(req.Slots))
	for _, day := range days {
		for _, slot := range req.Slots {
			start, end, _ := models.ClockRangeMinutes(slot.StartTime, slot.EndTime)
			periods = append(periods, models.Period{
				DayOfWeek:       day,
				Name:            slot.Name,
				StartTime:       slot.StartTime,
				EndTime:         slot.EndTime,
				Type:            slot.Type,
				DurationMinutes: end - start,
			})
		}
	}

	if err := s.timetables.CreateWithPeriods(ctx, timetable, periods); err != nil {
		// Unique-index violations arrive typed from the repository.
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
	}
	return timetable, nil
}

// Delete hard-removes a timetable and cascades to periods and assignments.
func (s *TimetableService) Delete(ctx context.Context, schoolID, timetableID string) error {
	timetable, err := s.loadScoped(ctx, schoolID, timetableID)
	if err != nil {
		return err
	}
	if err := s.timetables.Delete(ctx, timetable.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable")
	}
	s.invalidateGrid(ctx, timetable.ID)
	return nil
}

// Grid assembles the weekly read-model for one timetable, serving from
// cache when fresh.
func (s *TimetableService) Grid(ctx context.Context, schoolID, timetableID string) (*models.TimetableGrid, error) {
	timetable, err := s.loadScoped(ctx, schoolID, timetableID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached models.TimetableGrid
		if err := s.cache.Get(ctx, gridCacheKey(timetable.ID), &cached); err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheHit(true)
			}
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("grid cache read failed", zap.String("timetable_id", timetable.ID), zap.Error(err))
		}
		if s.metrics != nil {
			s.metrics.RecordCacheHit(false)
		}
	}

	grid, err := s.buildGrid(ctx, timetable)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, gridCacheKey(timetable.ID), grid, s.gridTTL); err != nil {
			s.logger.Warn("grid cache write failed", zap.String("timetable_id", timetable.ID), zap.Error(err))
		}
	}
	return grid, nil
}

// GridByClass resolves the class's active timetable and returns its grid.
func (s *TimetableService) GridByClass(ctx context.Context, schoolID, classID string) (*models.TimetableGrid, error) {
	timetable, err := s.timetables.FindActiveByClass(ctx, schoolID, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no active timetable for class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return s.Grid(ctx, schoolID, timetable.ID)
}

// UpdatePeriodTime changes a single day's time range for one slot. When
// the slot is assigned, the new range is re-run through the conflict
// detector first; rejection leaves both the period and its assignment
// untouched.
func (s *TimetableService) UpdatePeriodTime(ctx context.Context, schoolID, periodID string, req UpdatePeriodTimeRequest) (*models.Period, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid period payload")
	}

	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	timetable, err := s.loadScoped(ctx, schoolID, period.TimetableID)
	if err != nil {
		return nil, err
	}

	startMin, endMin, err := models.ClockRangeMinutes(req.StartTime, req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidTimeRange, "")
	}

	assignment, err := s.assignments.FindByPeriod(ctx, periodID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	if assignment != nil {
		conflict, err := s.detector.Check(ctx, schoolID, assignment.TeacherID, period.DayOfWeek, startMin, endMin, period.ID)
		if err != nil {
			return nil, err
		}
		if conflict != nil {
			domainErr := &models.TeacherConflictError{
				Message:  "new time range would double-book the assigned teacher",
				Conflict: *conflict,
			}
			return nil, appErrors.Wrap(domainErr, appErrors.ErrConflictOnTimeChange.Code, appErrors.ErrConflictOnTimeChange.Status, domainErr.Message)
		}
	}

	if err := s.periods.UpdateTimes(ctx, period.ID, req.StartTime, req.EndTime, endMin-startMin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update period")
	}
	if assignment != nil {
		if err := s.assignments.UpdateTimesByPeriod(ctx, period.ID, req.StartTime, req.EndTime); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to propagate period times")
		}
	}

	period.StartTime = req.StartTime
	period.EndTime = req.EndTime
	period.DurationMinutes = endMin - startMin
	s.invalidateGrid(ctx, timetable.ID)
	return period, nil
}

// DeletePeriod removes one day's row of a slot; the same slot on other
// days persists.
func (s *TimetableService) DeletePeriod(ctx context.Context, schoolID, periodID string) error {
	period, err := s.periods.FindByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load period")
	}
	timetable, err := s.loadScoped(ctx, schoolID, period.TimetableID)
	if err != nil {
		return err
	}

	if err := s.periods.Delete(ctx, period.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "period not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete period")
	}
	s.invalidateGrid(ctx, timetable.ID)
	return nil
}

func (s *TimetableService) buildGrid(ctx context.Context, timetable *models.Timetable) (*models.TimetableGrid, error) {
	periods, err := s.periods.ListByTimetable(ctx, timetable.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}
	assignments, err := s.assignments.ListByTimetable(ctx, timetable.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	byPeriod := make(map[string]*models.Assignment, len(assignments))
	for i := range assignments {
		byPeriod[assignments[i].PeriodID] = &assignments[i]
	}

	grid := &models.TimetableGrid{Timetable: *timetable}
	for _, day := range models.Weekdays {
		dayGrid := models.DayGrid{DayOfWeek: day}
		for _, period := range periods {
			if period.DayOfWeek != day {
				continue
			}
			dayGrid.Periods = append(dayGrid.Periods, models.GridPeriod{
				Period:     period,
				Assignment: byPeriod[period.ID],
			})
		}
		if len(dayGrid.Periods) > 0 {
			grid.Days = append(grid.Days, dayGrid)
		}
	}
	return grid, nil
}

func (s *TimetableService) loadScoped(ctx context.Context, schoolID, timetableID string) (*models.Timetable, error) {
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
	return timetable, nil
}

func (s *TimetableService) invalidateGrid(ctx context.Context, timetableID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, gridCacheKey(timetableID)); err != nil {
		s.logger.Warn("grid cache invalidation failed", zap.String("timetable_id", timetableID), zap.Error(err))
	}
}

// validateSlotTemplate enforces the structural rules of a grid seed:
// recognised, unique weekdays including Monday, unique slot names, and
// valid minute-granular time ranges.
func validateSlotTemplate(days []string, slots []SlotSeed) error {
	seenDays := make(map[string]bool, len(days))
	hasMonday := false
	for _, day := range days {
		if !models.IsWeekday(day) {
			return appErrors.Clone(appErrors.ErrInvalidSlotTemplate, "unknown day of week: "+day)
		}
		if seenDays[day] {
			return appErrors.Clone(appErrors.ErrInvalidSlotTemplate, "duplicate day: "+day)
		}
		seenDays[day] = true
		if day == "MONDAY" {
			hasMonday = true
		}
	}
	if !hasMonday {
		return appErrors.Clone(appErrors.ErrInvalidSlotTemplate, "day list must include MONDAY")
	}

	seenNames := make(map[string]bool, len(slots))
	for _, slot := range slots {
		if seenNames[slot.Name] {
			return appErrors.Clone(appErrors.ErrInvalidSlotTemplate, "duplicate slot name: "+slot.Name)
		}
		seenNames[slot.Name] = true
		if _, _, err := models.ClockRangeMinutes(slot.StartTime, slot.EndTime); err != nil {
			return appErrors.Clone(appErrors.ErrInvalidTimeRange, "slot "+slot.Name+": invalid time range")
		}
	}
	return nil
}
