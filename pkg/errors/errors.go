package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")

	ErrPreconditionFailed = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// Timetable domain errors.
	ErrDuplicateTimetable   = New("DUPLICATE_TIMETABLE", http.StatusConflict, "an active timetable already exists for this class")
	ErrInvalidSlotTemplate  = New("INVALID_SLOT_TEMPLATE", http.StatusBadRequest, "invalid slot template")
	ErrInvalidTimeRange     = New("INVALID_TIME_RANGE", http.StatusBadRequest, "start time must be before end time")
	ErrCannotAssignBreak    = New("CANNOT_ASSIGN_BREAK_SLOT", http.StatusUnprocessableEntity, "break periods cannot hold assignments")
	ErrSlotOccupied         = New("SLOT_OCCUPIED", http.StatusConflict, "period already has an assignment")
	ErrTeacherConflict      = New("TEACHER_CONFLICT", http.StatusConflict, "teacher already scheduled in an overlapping period")
	ErrConflictOnTimeChange = New("CONFLICT_ON_TIME_CHANGE", http.StatusConflict, "time change would double-book the assigned teacher")
	ErrEmptyTimetable       = New("EMPTY_TIMETABLE", http.StatusUnprocessableEntity, "timetable has no class periods")

	// ErrCacheMiss signals a cache lookup found no entry; callers fall back to storage.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
