package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Codes for the kernel's error taxonomy. They are stable and part of the
// API contract: blocked responses and HTTP error bodies carry them verbatim.
const (
	CodeStructuralConflict = "STRUCTURAL_CONFLICT"
	CodeMissingReference   = "MISSING_REFERENCE"
	CodeUnknownOperation   = "UNKNOWN_OPERATION"
	CodeInvalidPatch       = "INVALID_PATCH"
	CodeVersionMismatch    = "VERSION_MISMATCH"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionExists      = "SESSION_EXISTS"
	CodeUnsupportedTask    = "UNSUPPORTED_TASK"
	CodePhaseViolation     = "PHASE_VIOLATION"
	CodePolicyBlocked      = "POLICY_BLOCKED"
	CodeBudgetExceeded     = "BUDGET_EXCEEDED"
	CodeInvalidArguments   = "INVALID_ARGUMENTS"
	CodeNoCandidates       = "NO_CANDIDATES"
	CodeRateLimited        = "RATE_LIMITED"
)

// NewStructuralConflict reports an add of an existing id with different content.
func NewStructuralConflict(kind, id string) *AppError {
	return NewConflictError(fmt.Sprintf("%s %q already exists with different content", kind, id)).
		WithCode(CodeStructuralConflict).
		WithDetail("kind", kind).
		WithDetail("id", id)
}

// NewMissingReference reports an edge endpoint or update target that does not exist.
func NewMissingReference(kind, id string) *AppError {
	err := NewValidationError(fmt.Sprintf("%s %q does not exist", kind, id)).
		WithCode(CodeMissingReference).
		WithDetail("kind", kind).
		WithDetail("id", id)
	err.HTTPStatus = http.StatusUnprocessableEntity
	return err
}

// NewUnknownOperation reports an unrecognized operation tag.
func NewUnknownOperation(op string) *AppError {
	return NewValidationError(fmt.Sprintf("unknown operation %q", op)).
		WithCode(CodeUnknownOperation).
		WithDetail("op", op)
}

// NewInvalidPatch reports a malformed patch or operation payload.
func NewInvalidPatch(opID, reason string) *AppError {
	msg := reason
	if opID != "" {
		msg = fmt.Sprintf("operation %q: %s", opID, reason)
	}
	return NewValidationError(msg).WithCode(CodeInvalidPatch)
}

// NewVersionMismatch reports a failed compare-and-swap.
func NewVersionMismatch(sessionID string, expected, actual int64) *AppError {
	return NewConflictError(fmt.Sprintf("session %q is at version %d, expected %d", sessionID, actual, expected)).
		WithCode(CodeVersionMismatch).
		WithDetail("session_id", sessionID).
		WithDetail("expected_version", expected).
		WithDetail("actual_version", actual)
}

// NewSessionNotFound reports a session with no persisted graph.
func NewSessionNotFound(sessionID string) *AppError {
	return NewNotFoundError(fmt.Sprintf("session %q", sessionID)).
		WithCode(CodeSessionNotFound).
		WithDetail("session_id", sessionID)
}

// NewSessionExists reports a second create for the same session.
func NewSessionExists(sessionID string) *AppError {
	return NewConflictError(fmt.Sprintf("session %q already exists", sessionID)).
		WithCode(CodeSessionExists).
		WithDetail("session_id", sessionID)
}

// NewRateLimited reports a caller over its request window.
func NewRateLimited(key string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Message:    "too many requests",
		Code:       CodeRateLimited,
		HTTPStatus: http.StatusTooManyRequests,
		Details:    map[string]interface{}{"key": key},
	}
}

// NewUnsupportedTask reports a task name with no registered tool.
func NewUnsupportedTask(task string) *AppError {
	return NewValidationError(fmt.Sprintf("task %q is not supported", task)).
		WithCode(CodeUnsupportedTask).
		WithDetail("task", task)
}

// NewPhaseViolation reports a task requested outside its allowed workflow phase.
func NewPhaseViolation(task, phase string) *AppError {
	return NewForbiddenError(fmt.Sprintf("task %q is not allowed in phase %q", task, phase)).
		WithCode(CodePhaseViolation).
		WithDetail("task", task).
		WithDetail("phase", phase)
}

// NewPolicyBlocked reports a task the risk gate refuses to run.
func NewPolicyBlocked(task string) *AppError {
	return NewForbiddenError(fmt.Sprintf("task %q is blocked by risk policy", task)).
		WithCode(CodePolicyBlocked).
		WithDetail("task", task)
}

// NewBudgetExceeded reports a request over a hard budget limit.
func NewBudgetExceeded(reason string) *AppError {
	err := NewValidationError(reason).WithCode(CodeBudgetExceeded)
	err.HTTPStatus = http.StatusRequestEntityTooLarge
	return err
}

// NewInvalidArguments reports task arguments a tool cannot use.
func NewInvalidArguments(task, reason string) *AppError {
	return NewValidationError(fmt.Sprintf("task %q: %s", task, reason)).
		WithCode(CodeInvalidArguments).
		WithDetail("task", task)
}

// NewNoCandidates reports placeholders that no catalog component can replace.
func NewNoCandidates(placeholderIDs []string) *AppError {
	return NewValidationError(fmt.Sprintf("no suitable candidates for placeholders %s", strings.Join(placeholderIDs, ", "))).
		WithCode(CodeNoCandidates).
		WithDetail("placeholders", placeholderIDs)
}

// IsStructuralConflict checks for CodeStructuralConflict
func IsStructuralConflict(err error) bool { return HasCode(err, CodeStructuralConflict) }

// IsMissingReference checks for CodeMissingReference
func IsMissingReference(err error) bool { return HasCode(err, CodeMissingReference) }

// IsUnknownOperation checks for CodeUnknownOperation
func IsUnknownOperation(err error) bool { return HasCode(err, CodeUnknownOperation) }

// IsVersionMismatch checks for CodeVersionMismatch
func IsVersionMismatch(err error) bool { return HasCode(err, CodeVersionMismatch) }

// IsSessionNotFound checks for CodeSessionNotFound
func IsSessionNotFound(err error) bool { return HasCode(err, CodeSessionNotFound) }

// IsSessionExists checks for CodeSessionExists
func IsSessionExists(err error) bool { return HasCode(err, CodeSessionExists) }

// IsUnsupportedTask checks for CodeUnsupportedTask
func IsUnsupportedTask(err error) bool { return HasCode(err, CodeUnsupportedTask) }

// IsPhaseViolation checks for CodePhaseViolation
func IsPhaseViolation(err error) bool { return HasCode(err, CodePhaseViolation) }

// IsPatchRejection reports whether err is one of the patch engine's
// structural rejections, as opposed to an infrastructure failure.
func IsPatchRejection(err error) bool {
	switch CodeOf(err) {
	case CodeStructuralConflict, CodeMissingReference, CodeUnknownOperation, CodeInvalidPatch:
		return true
	}
	return false
}
