package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
)

type templateRepository interface {
	Create(ctx context.Context, template *models.Template) error
	FindByID(ctx context.Context, id string) (*models.Template, error)
	ListBySchool(ctx context.Context, schoolID string) ([]models.Template, error)
	Delete(ctx context.Context, id string) error
}

type checkedAssigner interface {
	CreateChecked(ctx context.Context, candidate *models.Assignment) error
}

// CreateTemplateRequest captures a timetable snapshot under a name.
// KeepTeachers defaults to the service-level policy when omitted.
type CreateTemplateRequest struct {
	TimetableID  string `json:"timetable_id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	KeepTeachers *bool  `json:"keep_teachers"`
}

// ApplyTemplateRequest materializes a template for a new class.
type ApplyTemplateRequest struct {
	ClassID string `json:"class_id" validate:"required"`
}

// TemplateService extracts reusable patterns from timetables and
// materializes new timetables from them.
type TemplateService struct {
	templates    templateRepository
	timetables   timetableRepository
	periods      periodRepository
	assignments  assignmentAccessor
	rosters      rosterReader
	assigner     checkedAssigner
	metrics      *MetricsService
	keepTeachers bool
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewTemplateService instantiates TemplateService.
func NewTemplateService(
	templates templateRepository,
	timetables timetableRepository,
	periods periodRepository,
	assignments assignmentAccessor,
	rosters rosterReader,
	assigner checkedAssigner,
	metrics *MetricsService,
	keepTeachers bool,
	validate *validator.Validate,
	logger *zap.Logger,
) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{
		templates:    templates,
		timetables:   timetables,
		periods:      periods,
		assignments:  assignments,
		rosters:      rosters,
		assigner:     assigner,
		metrics:      metrics,
		keepTeachers: keepTeachers,
		validator:    validate,
		logger:       logger,
	}
}

// ListBySchool returns the school's saved templates.
func (s *TemplateService) ListBySchool(ctx context.Context, schoolID string) ([]models.Template, error) {
	templates, err := s.templates.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// Save snapshots a timetable's slot structure and subject requirements.
// Teacher bindings are stripped unless the keep-teachers policy applies;
// either way no conflict is evaluated until the template is applied.
func (s *TemplateService) Save(ctx context.Context, schoolID, createdBy string, req CreateTemplateRequest) (*models.Template, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}

	timetable, err := s.loadScopedTimetable(ctx, schoolID, req.TimetableID)
	if err != nil {
		return nil, err
	}

	periods, err := s.periods.ListByTimetable(ctx, timetable.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load periods")
	}
	classPeriods := 0
	for _, period := range periods {
		if period.Type == models.PeriodTypeClass {
			classPeriods++
		}
	}
	if classPeriods == 0 {
		return nil, appErrors.Clone(appErrors.ErrEmptyTimetable, "")
	}

	assignments, err := s.assignments.ListByTimetable(ctx, timetable.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	byPeriod := make(map[string]*models.Assignment, len(assignments))
	for i := range assignments {
		byPeriod[assignments[i].PeriodID] = &assignments[i]
	}

	keep := s.keepTeachers
	if req.KeepTeachers != nil {
		keep = *req.KeepTeachers
	}

	slots := make([]models.TemplateSlot, 0, len(periods))
	for _, period := range periods {
		slot := models.TemplateSlot{
			DayOfWeek: period.DayOfWeek,
			Name:      period.Name,
			StartTime: period.StartTime,
			EndTime:   period.EndTime,
			Type:      period.Type,
		}
		if assignment := byPeriod[period.ID]; assignment != nil && period.Type == models.PeriodTypeClass {
			slot.SubjectID = assignment.SubjectID
			slot.SubjectName = assignment.SubjectName
			if keep {
				slot.TeacherID = assignment.TeacherID
				slot.TeacherName = assignment.TeacherName
			}
		}
		slots = append(slots, slot)
	}

	payload, err := json.Marshal(slots)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize template slots")
	}

	template := &models.Template{
		SchoolID:     schoolID,
		Name:         req.Name,
		SourceClass:  timetable.ClassName,
		KeepTeachers: keep,
		Slots:        types.JSONText(payload),
		CreatedBy:    createdBy,
	}
	if err := s.templates.Create(ctx, template); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	return template, nil
}

// Apply materializes a new timetable for the target class from the
// template's slot structure. A teacher-stripped template creates no
// assignments and can never raise a teacher conflict; a teacher-keeping
// template replays its bindings best-effort through the conflict
// detector with a per-slot skip list.
func (s *TemplateService) Apply(ctx context.Context, schoolID, createdBy, templateID string, req ApplyTemplateRequest) (*models.Timetable, *models.CloneResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid apply payload")
	}

	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if template.SchoolID != schoolID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}

	var slots []models.TemplateSlot
	if err := json.Unmarshal(template.Slots, &slots); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode template slots")
	}

	timetable, periodsByKey, err := s.materializeGrid(ctx, schoolID, createdBy, req.ClassID, slots)
	if err != nil {
		return nil, nil, err
	}

	result := &models.CloneResult{TimetableID: timetable.ID, Skipped: []models.SkippedSlot{}}
	if !template.KeepTeachers {
		return timetable, result, nil
	}

	for _, slot := range slots {
		if slot.TeacherID == "" || slot.Type != models.PeriodTypeClass {
			continue
		}
		if ctx.Err() != nil {
			result.AbortedEarly = true
			break
		}
		period, ok := periodsByKey[slot.DayOfWeek+"|"+slot.Name]
		if !ok {
			continue
		}
		candidate := &models.Assignment{
			TimetableID: timetable.ID,
			PeriodID:    period.ID,
			SchoolID:    schoolID,
			ClassID:     timetable.ClassID,
			ClassName:   timetable.ClassName,
			TeacherID:   slot.TeacherID,
			TeacherName: slot.TeacherName,
			SubjectID:   slot.SubjectID,
			SubjectName: slot.SubjectName,
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
			s.metrics.RecordCloneSlot("applied")
		}
	}
	return timetable, result, nil
}

// Delete removes a saved template.
func (s *TemplateService) Delete(ctx context.Context, schoolID, templateID string) error {
	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if template.SchoolID != schoolID {
		return appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	if err := s.templates.Delete(ctx, template.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	return nil
}

func (s *TemplateService) loadScopedTimetable(ctx context.Context, schoolID, timetableID string) (*models.Timetable, error) {
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

// materializeGrid creates a fresh timetable plus period grid for the
// target class, enforcing the one-active-timetable rule, and returns the
// new periods keyed by (day, slot name) for binding replay.
func (s *TemplateService) materializeGrid(ctx context.Context, schoolID, createdBy, classID string, slots []models.TemplateSlot) (*models.Timetable, map[string]*models.Period, error) {
	class, err := s.rosters.FindClass(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.SchoolID != schoolID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if !class.Active {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class inactive")
	}

	if _, err := s.timetables.FindActiveByClass(ctx, schoolID, classID); err == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrDuplicateTimetable, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing timetable")
	}

	timetable := &models.Timetable{
		SchoolID:  schoolID,
		ClassID:   class.ID,
		ClassName: class.Name,
		Status:    models.TimetableStatusActive,
		CreatedBy: createdBy,
	}

	periods := make([]models.Period, 0, len(slots))
	for _, slot := range slots {
		start, end, err := models.ClockRangeMinutes(slot.StartTime, slot.EndTime)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidTimeRange, "template slot "+slot.Name+": invalid time range")
		}
		periods = append(periods, models.Period{
			DayOfWeek:       slot.DayOfWeek,
			Name:            slot.Name,
			StartTime:       slot.StartTime,
			EndTime:         slot.EndTime,
			Type:            slot.Type,
			DurationMinutes: end - start,
		})
	}

	if err := s.timetables.CreateWithPeriods(ctx, timetable, periods); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, nil, appErr
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
	}

	byKey := make(map[string]*models.Period, len(periods))
	for i := range periods {
		byKey[periods[i].DayOfWeek+"|"+periods[i].Name] = &periods[i]
	}
	return timetable, byKey, nil
}
