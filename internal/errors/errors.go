// Package errors provides centralized error definitions and error handling utilities
// for symphony. It defines sentinel errors, typed errors carrying context, and
// classification helpers used by the CLI to decide how to report a failure.
//
// # Error Taxonomy
//
// Three families of failure exist:
//
//   - Structural errors: malformed plans, phases, documents or arguments.
//     Represented by ValidationError, ValidationErrors, CycleError and
//     StateError. They are fatal for an invocation and never retryable.
//   - Contention errors: the state document lock could not be acquired in
//     time. Represented by LockError. They are fatal for an invocation but
//     retryable by the caller.
//   - Transition errors: a requested status change is not reachable from the
//     current status. Represented by TransitionError.
//
// A phase's own failure (the error text reported by the runner) is not an
// error value at all; it is data routed through the retry policy.
//
// # Usage
//
//	err := errors.NewStateError("phase not found", errors.ErrPhaseNotFound).
//	    WithPath(statePath).WithPhaseID("build")
//
//	if errors.Is(err, errors.ErrPhaseNotFound) { ... }
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Document-related sentinel errors
var (
	// ErrDocumentNotFound indicates that the state document does not exist.
	ErrDocumentNotFound = New("state document not found")
	// ErrDocumentCorrupted indicates malformed JSON or missing required fields.
	ErrDocumentCorrupted = New("state document corrupted")
	// ErrDocumentExists indicates init would overwrite an existing document.
	ErrDocumentExists = New("state document already exists")
)

// Phase-related sentinel errors
var (
	// ErrPhaseNotFound indicates that a phase id is not present in the document.
	ErrPhaseNotFound = New("phase not found")
	// ErrInvalidTransition indicates a status change not allowed by the transition table.
	ErrInvalidTransition = New("invalid status transition")
	// ErrNoPendingDecision indicates that no pending decision exists for a phase.
	ErrNoPendingDecision = New("no pending decision for phase")
)

// Plan-related sentinel errors
var (
	// ErrPlanNotFound indicates that no plan file could be located.
	ErrPlanNotFound = New("plan not found")
	// ErrPlanInvalid indicates that a plan failed validation.
	ErrPlanInvalid = New("plan is invalid")
	// ErrNoPhasesBlock indicates the plan has no symphony-phases fenced block.
	ErrNoPhasesBlock = New("no symphony-phases block found")
	// ErrDependencyCycle indicates a circular dependency between phases.
	ErrDependencyCycle = New("dependency cycle detected")
)

// General sentinel errors
var (
	// ErrLockTimeout indicates that the document lock could not be acquired in time.
	ErrLockTimeout = New("lock acquisition timed out")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// SymphonyError is the base interface for all typed errors in this package.
type SymphonyError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if repeating the whole invocation may succeed.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// StateError
// -----------------------------------------------------------------------------

// StateError represents errors reading, parsing or addressing the state document.
//
// Example:
//
//	err := errors.NewStateError("invalid JSON", errors.ErrDocumentCorrupted).WithPath("state.json")
//	fmt.Println(err) // "state error [path=state.json]: invalid JSON: state document corrupted"
type StateError struct {
	baseError
	Path    string
	PhaseID string
}

// NewStateError creates a new StateError.
func NewStateError(message string, cause error) *StateError {
	return &StateError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithPath adds the document path to the error context.
func (e *StateError) WithPath(path string) *StateError {
	e.Path = path
	return e
}

// WithPhaseID adds a phase id to the error context.
func (e *StateError) WithPhaseID(id string) *StateError {
	e.PhaseID = id
	return e
}

// Error returns the formatted error message.
func (e *StateError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.PhaseID != "" {
		parts = append(parts, fmt.Sprintf("phase=%s", e.PhaseID))
	}

	prefix := "state error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("state error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StateError) Is(target error) bool {
	if _, ok := target.(*StateError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// TransitionError
// -----------------------------------------------------------------------------

// TransitionError reports a status change that the transition table forbids.
type TransitionError struct {
	baseError
	PhaseID string
	From    string
	To      string
}

// NewTransitionError creates a new TransitionError.
func NewTransitionError(phaseID, from, to string) *TransitionError {
	return &TransitionError{
		baseError: baseError{
			message:    fmt.Sprintf("phase %q cannot move from %s to %s", phaseID, from, to),
			cause:      ErrInvalidTransition,
			severity:   SeverityWarning,
			userFacing: true,
		},
		PhaseID: phaseID,
		From:    from,
		To:      to,
	}
}

// Error returns the formatted error message.
func (e *TransitionError) Error() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *TransitionError) Is(target error) bool {
	if _, ok := target.(*TransitionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// LockError
// -----------------------------------------------------------------------------

// LockError represents a failure to acquire the document lock.
//
// Example:
//
//	err := errors.NewLockError("state.json.lock", 30*time.Second)
//	fmt.Println(err) // "failed to acquire lock on state.json.lock after 30s"
type LockError struct {
	baseError
	LockPath string
	Waited   time.Duration
}

// NewLockError creates a new LockError. Lock timeouts are retryable: nothing
// was read or written while waiting.
func NewLockError(lockPath string, waited time.Duration) *LockError {
	return &LockError{
		baseError: baseError{
			message:    fmt.Sprintf("failed to acquire lock on %s after %s", lockPath, waited.Round(time.Millisecond)),
			cause:      ErrLockTimeout,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		LockPath: lockPath,
		Waited:   waited,
	}
}

// WithCause replaces the cause, keeping ErrLockTimeout matchable.
func (e *LockError) WithCause(cause error) *LockError {
	e.cause = Join(ErrLockTimeout, cause)
	return e
}

// Error returns the formatted error message.
func (e *LockError) Error() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *LockError) Is(target error) bool {
	if _, ok := target.(*LockError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Validation Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input at a specific field.
//
// Example:
//
//	err := errors.NewValidationError("Phase title must be a non-empty string").
//	    WithField("phases[0].title").WithValue("")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field path to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Message returns the bare message without field context.
func (e *ValidationError) Message() string {
	return e.message
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.message)
	}
	return e.message
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationErrors is a collection of field-level validation failures.
type ValidationErrors []*ValidationError

// Error implements the error interface for ValidationErrors.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Is matches ErrInvalidInput and ErrPlanInvalid.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidInput || target == ErrPlanInvalid
}

// Fields returns the field paths of all contained errors.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for _, err := range e {
		fields = append(fields, err.Field)
	}
	return fields
}

// -----------------------------------------------------------------------------
// CycleError
// -----------------------------------------------------------------------------

// CycleError reports a dependency cycle with one concrete closing path.
// The first and last element of Path are the same phase id.
type CycleError struct {
	baseError
	Path []string
}

// NewCycleError creates a new CycleError for the given path.
func NewCycleError(path []string) *CycleError {
	return &CycleError{
		baseError: baseError{
			message:    fmt.Sprintf("Circular dependency detected: %s", strings.Join(path, " -> ")),
			cause:      ErrDependencyCycle,
			severity:   SeverityError,
			userFacing: true,
		},
		Path: path,
	}
}

// Error returns the formatted error message.
func (e *CycleError) Error() string {
	return e.message
}

// Is checks if this error matches the target.
func (e *CycleError) Is(target error) bool {
	if _, ok := target.(*CycleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if repeating the failed invocation may succeed.
// Lock timeouts are the only retryable failures the engine produces.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var symErr SymphonyError
	if As(err, &symErr) {
		return symErr.IsRetryable()
	}

	if Is(err, ErrLockTimeout) || Is(err, ErrTimeout) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var symErr SymphonyError
	if As(err, &symErr) {
		return symErr.IsUserFacing()
	}

	var verrs ValidationErrors
	return As(err, &verrs)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement SymphonyError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var symErr SymphonyError
	if As(err, &symErr) {
		return symErr.Severity()
	}

	return SeverityError
}

// IsStructural returns true for errors caused by malformed input: invalid
// plans, invalid documents, invalid arguments or dependency cycles.
func IsStructural(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrInvalidInput) || Is(err, ErrPlanInvalid) ||
		Is(err, ErrDocumentCorrupted) || Is(err, ErrDependencyCycle) ||
		Is(err, ErrNoPhasesBlock)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
