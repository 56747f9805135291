package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Precondition errors: the requested transition is invalid for the current state.
// They are deterministic and never retried by the engine.
var (
	ErrSessionAlreadyOpen = errors.New("a session is already open for this branch")
	ErrNoActiveSession    = errors.New("no active session for this branch")
	ErrAlreadyClosed      = errors.New("session already closed")
	ErrSessionStillOpen   = errors.New("session is still open")
)

// Not-found and infrastructure errors.
var (
	ErrNotFound         = errors.New("session not found")
	ErrBranchNotFound   = errors.New("branch not found")
	ErrSalesUnavailable = errors.New("sales data source unavailable")
	ErrConcurrentUpdate = errors.New("session changed concurrently, retry")
)

// PreconditionError carries the conflicting session so callers can reconcile
// their view without re-querying. It unwraps to one of the precondition sentinels.
type PreconditionError struct {
	Err       error
	SessionID uuid.UUID
	BranchID  int64
	OpenedAt  time.Time
	OpenedBy  string
	ClosedAt  *time.Time
}

func (e *PreconditionError) Error() string {
	switch {
	case errors.Is(e.Err, ErrSessionAlreadyOpen):
		return fmt.Sprintf("a session is already open since %s by %s",
			e.OpenedAt.Format(time.RFC3339), e.OpenedBy)
	case errors.Is(e.Err, ErrAlreadyClosed) && e.ClosedAt != nil:
		return fmt.Sprintf("session %s was already closed at %s",
			e.SessionID, e.ClosedAt.Format(time.RFC3339))
	case errors.Is(e.Err, ErrSessionStillOpen):
		return fmt.Sprintf("session %s is still open since %s; close it before requesting a Z-report",
			e.SessionID, e.OpenedAt.Format(time.RFC3339))
	default:
		return e.Err.Error()
	}
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// FieldViolation is one rejected input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field; it is returned before any store access.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// violations accumulates field errors; err() is nil when nothing was added.
type violations []FieldViolation

func (v *violations) add(field, msg string) {
	*v = append(*v, FieldViolation{Field: field, Message: msg})
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ValidationError{Violations: v}
}
