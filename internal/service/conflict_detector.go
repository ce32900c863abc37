package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/schoolyard-io/timetable-api/internal/models"
	appErrors "github.com/schoolyard-io/timetable-api/pkg/errors"
)

type conflictScanner interface {
	ListByTeacherDay(ctx context.Context, schoolID, teacherID, dayOfWeek string) ([]models.Assignment, error)
}

// ConflictDetector decides whether a candidate assignment would
// double-book a teacher anywhere in the same school. It always re-scans
// persisted state at call time; there is no cached view of assignments.
type ConflictDetector struct {
	assignments conflictScanner
}

// NewConflictDetector constructs a detector over the assignment store.
func NewConflictDetector(assignments conflictScanner) *ConflictDetector {
	return &ConflictDetector{assignments: assignments}
}

// Check scans the teacher's assignments on the candidate day and returns
// the first one whose [start,end) range overlaps [startMin,endMin).
// Back-to-back ranges are not a conflict. ignorePeriodID excludes the
// candidate's own current row during reassigns and time edits.
func (d *ConflictDetector) Check(ctx context.Context, schoolID, teacherID, dayOfWeek string, startMin, endMin int, ignorePeriodID string) (*models.TeacherConflict, error) {
	existing, err := d.assignments.ListByTeacherDay(ctx, schoolID, teacherID, dayOfWeek)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan teacher assignments")
	}

	for _, item := range existing {
		if item.PeriodID == ignorePeriodID {
			continue
		}
		itemStart, itemEnd, err := models.ClockRangeMinutes(item.StartTime, item.EndTime)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored assignment carries an invalid time range")
		}
		if models.RangesOverlap(startMin, endMin, itemStart, itemEnd) {
			return &models.TeacherConflict{
				AssignmentID: item.ID,
				TeacherID:    item.TeacherID,
				TeacherName:  item.TeacherName,
				ClassName:    item.ClassName,
				DayOfWeek:    item.DayOfWeek,
				StartTime:    item.StartTime,
				EndTime:      item.EndTime,
			}, nil
		}
	}
	return nil, nil
}

func wrapTeacherConflict(conflict models.TeacherConflict) error {
	domainErr := &models.TeacherConflictError{
		Message: fmt.Sprintf("teacher %s already teaches %s on %s %s-%s",
			conflict.TeacherName, conflict.ClassName, conflict.DayOfWeek, conflict.StartTime, conflict.EndTime),
		Conflict: conflict,
	}
	return appErrors.Wrap(domainErr, appErrors.ErrTeacherConflict.Code, appErrors.ErrTeacherConflict.Status, domainErr.Message)
}

// keyedMutex serializes check-then-act sequences per conflict key so two
// concurrent assigns for the same (school, teacher, day) cannot both
// pass the scan. Multi-instance deployments additionally rely on the
// database constraints documented in the migrations.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) Lock(key string) func() {
	value, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func conflictKey(schoolID, teacherID, dayOfWeek string) string {
	return schoolID + "|" + teacherID + "|" + dayOfWeek
}
