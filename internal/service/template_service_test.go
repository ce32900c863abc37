package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
)

type fakeTemplateRepo struct {
	byID    map[string]*models.Template
	created *models.Template
	deleted []string
}

func (f *fakeTemplateRepo) Create(ctx context.Context, template *models.Template) error {
	template.ID = "tpl-new"
	f.created = template
	return nil
}

func (f *fakeTemplateRepo) FindByID(ctx context.Context, id string) (*models.Template, error) {
	if template, ok := f.byID[id]; ok {
		return template, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTemplateRepo) ListBySchool(ctx context.Context, schoolID string) ([]models.Template, error) {
	var out []models.Template
	for _, template := range f.byID {
		if template.SchoolID == schoolID {
			out = append(out, *template)
		}
	}
	return out, nil
}

func (f *fakeTemplateRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return sql.ErrNoRows
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type stubCheckedAssigner struct {
	created []models.Assignment
	failOn  map[string]error
}

func (s *stubCheckedAssigner) CreateChecked(ctx context.Context, candidate *models.Assignment) error {
	if err, ok := s.failOn[candidate.PeriodID]; ok {
		return err
	}
	s.created = append(s.created, *candidate)
	return nil
}

func newTemplateServiceForTest(keepTeachers bool) (*TemplateService, *fakeTimetableRepo, *fakePeriodRepo, *fakeAssignmentAccessor, *fakeTemplateRepo, *stubCheckedAssigner) {
	timetables, periods, assignments, rosters, _ := timetableFixtures()
	templates := &fakeTemplateRepo{byID: map[string]*models.Template{}}
	assigner := &stubCheckedAssigner{failOn: map[string]error{}}
	svc := NewTemplateService(templates, timetables, periods, assignments, rosters, assigner, nil, keepTeachers, nil, nil)
	return svc, timetables, periods, assignments, templates, assigner
}

func TestSaveTemplateStripsTeachersByDefault(t *testing.T) {
	svc, _, _, assignments, templates, _ := newTemplateServiceForTest(false)
	assignments.byTimetable["tt-1"] = []models.Assignment{
		{ID: "as-1", PeriodID: "p-mon", TeacherID: "teacher-1", TeacherName: "R. Putri", SubjectID: "subject-1", SubjectName: "Mathematics"},
	}

	template, err := svc.Save(context.Background(), "school-1", "user-1", CreateTemplateRequest{
		TimetableID: "tt-1",
		Name:        "Year 7 standard week",
	})
	require.NoError(t, err)
	assert.Equal(t, "7A", template.SourceClass)
	assert.False(t, template.KeepTeachers)
	require.NotNil(t, templates.created)

	var slots []models.TemplateSlot
	require.NoError(t, json.Unmarshal(template.Slots, &slots))
	require.Len(t, slots, 2)
	for _, slot := range slots {
		if slot.DayOfWeek == "MONDAY" {
			assert.Equal(t, "subject-1", slot.SubjectID)
			assert.Empty(t, slot.TeacherID)
			assert.Empty(t, slot.TeacherName)
		}
	}
}

func TestSaveTemplateKeepTeachersOverride(t *testing.T) {
	svc, _, _, assignments, _, _ := newTemplateServiceForTest(false)
	assignments.byTimetable["tt-1"] = []models.Assignment{
		{ID: "as-1", PeriodID: "p-mon", TeacherID: "teacher-1", TeacherName: "R. Putri", SubjectID: "subject-1", SubjectName: "Mathematics"},
	}

	keep := true
	template, err := svc.Save(context.Background(), "school-1", "user-1", CreateTemplateRequest{
		TimetableID:  "tt-1",
		Name:         "Year 7 with staff",
		KeepTeachers: &keep,
	})
	require.NoError(t, err)
	assert.True(t, template.KeepTeachers)

	var slots []models.TemplateSlot
	require.NoError(t, json.Unmarshal(template.Slots, &slots))
	found := false
	for _, slot := range slots {
		if slot.DayOfWeek == "MONDAY" {
			found = true
			assert.Equal(t, "teacher-1", slot.TeacherID)
			assert.Equal(t, "R. Putri", slot.TeacherName)
		}
	}
	assert.True(t, found)
}

func TestSaveTemplateRejectsTimetableWithoutClassPeriods(t *testing.T) {
	svc, _, periods, _, _, _ := newTemplateServiceForTest(false)
	periods.byTimetable["tt-1"] = []models.Period{
		{ID: "p-break", TimetableID: "tt-1", DayOfWeek: "MONDAY", Name: "Recess", StartTime: "09:00", EndTime: "09:15", Type: models.PeriodTypeBreak},
	}

	_, err := svc.Save(context.Background(), "school-1", "user-1", CreateTemplateRequest{
		TimetableID: "tt-1",
		Name:        "Breaks only",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmptyTimetable.Code, appErrors.FromError(err).Code)
}

func strippedTemplateSlots(t *testing.T, keepTeachers bool) types.JSONText {
	t.Helper()
	slots := []models.TemplateSlot{
		{DayOfWeek: "MONDAY", Name: "P1", StartTime: "08:00", EndTime: "08:45", Type: models.PeriodTypeClass, SubjectID: "subject-1", SubjectName: "Mathematics"},
		{DayOfWeek: "TUESDAY", Name: "P1", StartTime: "08:00", EndTime: "08:45", Type: models.PeriodTypeClass, SubjectID: "subject-1", SubjectName: "Mathematics"},
		{DayOfWeek: "MONDAY", Name: "Recess", StartTime: "08:45", EndTime: "09:00", Type: models.PeriodTypeBreak},
	}
	if keepTeachers {
		slots[0].TeacherID = "teacher-1"
		slots[0].TeacherName = "R. Putri"
		slots[1].TeacherID = "teacher-2"
		slots[1].TeacherName = "B. Santoso"
	}
	payload, err := json.Marshal(slots)
	require.NoError(t, err)
	return types.JSONText(payload)
}

func TestApplyStrippedTemplateCreatesNoAssignments(t *testing.T) {
	svc, timetables, _, _, templates, assigner := newTemplateServiceForTest(false)
	templates.byID["tpl-1"] = &models.Template{
		ID: "tpl-1", SchoolID: "school-1", Name: "Year 7 standard week",
		KeepTeachers: false, Slots: strippedTemplateSlots(t, false),
	}

	timetable, result, err := svc.Apply(context.Background(), "school-1", "user-1", "tpl-1", ApplyTemplateRequest{ClassID: "class-2"})
	require.NoError(t, err)
	assert.Equal(t, "7B", timetable.ClassName)
	require.Len(t, timetables.createdSlots, 3)
	assert.Empty(t, assigner.created)
	assert.Zero(t, result.ClonedCount)
	assert.Empty(t, result.Skipped)
	assert.False(t, result.AbortedEarly)
}

func TestApplyTemplateReplaysBindingsWithSkipList(t *testing.T) {
	svc, _, _, _, templates, assigner := newTemplateServiceForTest(false)
	templates.byID["tpl-1"] = &models.Template{
		ID: "tpl-1", SchoolID: "school-1", Name: "Year 7 with staff",
		KeepTeachers: true, Slots: strippedTemplateSlots(t, true),
	}
	// the fake backfills period IDs as "day|name"
	assigner.failOn["TUESDAY|P1"] = appErrors.Clone(appErrors.ErrTeacherConflict, "teacher double-booked")

	_, result, err := svc.Apply(context.Background(), "school-1", "user-1", "tpl-1", ApplyTemplateRequest{ClassID: "class-2"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ClonedCount)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "TUESDAY", result.Skipped[0].DayOfWeek)
	assert.Equal(t, "P1", result.Skipped[0].PeriodName)
	assert.Equal(t, appErrors.ErrTeacherConflict.Code, result.Skipped[0].Reason)

	require.Len(t, assigner.created, 1)
	assert.Equal(t, "teacher-1", assigner.created[0].TeacherID)
	assert.Equal(t, "class-2", assigner.created[0].ClassID)
}

func TestApplyTemplateRejectsClassWithActiveTimetable(t *testing.T) {
	svc, timetables, _, _, templates, _ := newTemplateServiceForTest(false)
	templates.byID["tpl-1"] = &models.Template{
		ID: "tpl-1", SchoolID: "school-1", Name: "Year 7 standard week",
		Slots: strippedTemplateSlots(t, false),
	}
	timetables.activeByClass["school-1|class-2"] = &models.Timetable{ID: "tt-x"}

	_, _, err := svc.Apply(context.Background(), "school-1", "user-1", "tpl-1", ApplyTemplateRequest{ClassID: "class-2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateTimetable.Code, appErrors.FromError(err).Code)
}

func TestApplyTemplateAbortsReplayOnCancelledContext(t *testing.T) {
	svc, _, _, _, templates, assigner := newTemplateServiceForTest(false)
	templates.byID["tpl-1"] = &models.Template{
		ID: "tpl-1", SchoolID: "school-1", Name: "Year 7 with staff",
		KeepTeachers: true, Slots: strippedTemplateSlots(t, true),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, result, err := svc.Apply(ctx, "school-1", "user-1", "tpl-1", ApplyTemplateRequest{ClassID: "class-2"})
	require.NoError(t, err)
	assert.True(t, result.AbortedEarly)
	assert.Empty(t, assigner.created)
}

func TestApplyTemplateHidesForeignSchoolTemplates(t *testing.T) {
	svc, _, _, _, templates, _ := newTemplateServiceForTest(false)
	templates.byID["tpl-1"] = &models.Template{
		ID: "tpl-1", SchoolID: "school-2", Name: "Someone else's week",
		Slots: strippedTemplateSlots(t, false),
	}

	_, _, err := svc.Apply(context.Background(), "school-1", "user-1", "tpl-1", ApplyTemplateRequest{ClassID: "class-2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeleteTemplateScopedToSchool(t *testing.T) {
	svc, _, _, _, templates, _ := newTemplateServiceForTest(false)
	templates.byID["tpl-1"] = &models.Template{ID: "tpl-1", SchoolID: "school-1", Name: "Year 7 standard week"}

	err := svc.Delete(context.Background(), "school-2", "tpl-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "school-1", "tpl-1"))
	assert.Equal(t, []string{"tpl-1"}, templates.deleted)
}
