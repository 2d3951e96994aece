package services

import "fmt"

// ValidationError: malformed input (non-positive XP, empty description,
// unknown badge/quest code). Surfaced immediately; not retryable.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError: a referenced user/journey/quest/request does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// StateConflictError: the operation is invalid for the current state
// (starting a locked quest, approving a resolved request, self-validation).
type StateConflictError struct {
	Message string
}

func (e *StateConflictError) Error() string { return e.Message }

func conflictf(format string, args ...interface{}) *StateConflictError {
	return &StateConflictError{Message: fmt.Sprintf(format, args...)}
}

// AuthorizationError: the caller lacks the capability an admin-only operation
// requires. Logged for audit at the call site.
type AuthorizationError struct {
	UserID     string
	Capability string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %s lacks capability %s", e.UserID, e.Capability)
}

// CollaboratorIOError: a persistence/identity/notification collaborator failed
// transiently. Retryable by the caller; the service itself never retries.
type CollaboratorIOError struct {
	Op  string
	Err error
}

func (e *CollaboratorIOError) Error() string {
	return fmt.Sprintf("collaborator I/O failed during %s: %v", e.Op, e.Err)
}

func (e *CollaboratorIOError) Unwrap() error { return e.Err }

func ioErr(op string, err error) *CollaboratorIOError {
	return &CollaboratorIOError{Op: op, Err: err}
}
