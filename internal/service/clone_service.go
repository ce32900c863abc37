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

// CloneTimetableRequest targets an existing timetable at a new class.
type CloneTimetableRequest struct {
	ClassID string `json:"class_id" validate:"required"`
}

// CloneService duplicates a timetable's period grid and replays its
// teacher assignments onto a new class, slot by slot.
type CloneService struct {
	timetables  timetableRepository
	periods     periodRepository
	assignments assignmentAccessor
	rosters     rosterReader
	assigner    checkedAssigner
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCloneService instantiates CloneService.
func NewCloneService(
	timetables timetableRepository,
	periods periodRepository,
	assignments assignmentAccessor,
	rosters rosterReader,
	assigner checkedAssigner,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *CloneService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CloneService{
		timetables:  timetables,
		periods:     periods,
		assignments: assignments,
		rosters:     rosters,
		assigner:    assigner,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Clone copies the source timetable's grid for the target class and
// replays every source assignment through the conflict detector.
// Conflicting slots are skipped and reported rather than failing the
// whole operation; successfully cloned slots are kept. A cancelled
// context stops the replay between slots and marks the result aborted.
func (s *CloneService) Clone(ctx context.Context, schoolID, createdBy, sourceID string, req CloneTimetableRequest) (*models.CloneResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clone payload")
	}

	source, err := s.timetables.FindByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if source.SchoolID != schoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}
	if source.ClassID == req.ClassID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot clone a timetable onto its own class")
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

	sourcePeriods, err := s.periods.ListByTimetable(ctx, source.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}
	sourceAssignments, err := s.assignments.ListByTimetable(ctx, source.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	target := &models.Timetable{
		SchoolID:  schoolID,
		ClassID:   class.ID,
		ClassName: class.Name,
		TermID:    source.TermID,
		Status:    models.TimetableStatusActive,
		CreatedBy: createdBy,
	}
	targetPeriods := make([]models.Period, 0, len(sourcePeriods))
	for _, period := range sourcePeriods {
		targetPeriods = append(targetPeriods, models.Period{
			DayOfWeek:       period.DayOfWeek,
			Name:            period.Name,
			StartTime:       period.StartTime,
			EndTime:         period.EndTime,
			Type:            period.Type,
			DurationMinutes: period.DurationMinutes,
		})
	}
	if err := s.timetables.CreateWithPeriods(ctx, target, targetPeriods); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
	}

	// Source and target grids are structurally identical, so (day, name)
	// is a stable slot identity across the copy.
	sourceToTarget := make(map[string]*models.Period, len(targetPeriods))
	for i := range targetPeriods {
		sourceToTarget[targetPeriods[i].DayOfWeek+"|"+targetPeriods[i].Name] = &targetPeriods[i]
	}

	result := &models.CloneResult{TimetableID: target.ID, Skipped: []models.SkippedSlot{}}
	for _, assignment := range sourceAssignments {
		if ctx.Err() != nil {
			result.AbortedEarly = true
			s.logger.Warn("clone aborted before completion",
				zap.String("source_timetable_id", source.ID),
				zap.String("target_timetable_id", target.ID),
				zap.Int("cloned", result.ClonedCount))
			break
		}
		period, ok := sourceToTarget[assignment.DayOfWeek+"|"+periodNameForAssignment(sourcePeriods, assignment.PeriodID)]
		if !ok {
			continue
		}
		candidate := &models.Assignment{
			TimetableID: target.ID,
			PeriodID:    period.ID,
			SchoolID:    schoolID,
			ClassID:     target.ClassID,
			ClassName:   target.ClassName,
			TeacherID:   assignment.TeacherID,
			TeacherName: assignment.TeacherName,
			SubjectID:   assignment.SubjectID,
			SubjectName: assignment.SubjectName,
			DayOfWeek:   period.DayOfWeek,
			StartTime:   period.StartTime,
			EndTime:     period.EndTime,
		}
		if err := s.assigner.CreateChecked(ctx, candidate); err != nil {
			result.Skipped = append(result.Skipped, models.SkippedSlot{
				PeriodID:   period.ID,
				DayOfWeek:  period.DayOfWeek,
				PeriodName: period.Name,
				Reason:     appErrors.FromError(err).Code,
			})
			if s.metrics != nil {
				s.metrics.RecordCloneSlot("skipped")
			}
			continue
		}
		result.ClonedCount++
		if s.metrics != nil {
			s.metrics.RecordCloneSlot("cloned")
		}
	}
	return result, nil
}

func periodNameForAssignment(periods []models.Period, periodID string) string {
	for i := range periods {
		if periods[i].ID == periodID {
			return periods[i].Name
		}
	}
	return ""
}
