package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// StateError Tests
// -----------------------------------------------------------------------------

func TestNewStateError(t *testing.T) {
	err := NewStateError("invalid JSON", ErrDocumentCorrupted)

	if err.message != "invalid JSON" {
		t.Errorf("message = %q, want %q", err.message, "invalid JSON")
	}
	if err.Severity() != SeverityError {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityError)
	}
	if err.IsRetryable() {
		t.Error("IsRetryable() = true, want false")
	}
	if !err.IsUserFacing() {
		t.Error("IsUserFacing() = false, want true")
	}
}

func TestStateError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StateError
		want string
	}{
		{
			name: "no context",
			err:  NewStateError("missing field", nil),
			want: "state error: missing field",
		},
		{
			name: "with path",
			err:  NewStateError("invalid JSON", ErrDocumentCorrupted).WithPath("s.json"),
			want: "state error [path=s.json]: invalid JSON: state document corrupted",
		},
		{
			name: "with path and phase",
			err:  NewStateError("unknown phase", ErrPhaseNotFound).WithPath("s.json").WithPhaseID("zeta"),
			want: "state error [path=s.json, phase=zeta]: unknown phase: phase not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStateError_Is(t *testing.T) {
	err := NewStateError("unknown phase", ErrPhaseNotFound).WithPhaseID("x")

	if !errors.Is(err, ErrPhaseNotFound) {
		t.Error("errors.Is(err, ErrPhaseNotFound) = false, want true")
	}
	if !errors.Is(err, &StateError{}) {
		t.Error("errors.Is(err, &StateError{}) = false, want true")
	}
	if errors.Is(err, ErrDocumentCorrupted) {
		t.Error("errors.Is(err, ErrDocumentCorrupted) = true, want false")
	}

	wrapped := fmt.Errorf("mark complete: %w", err)
	var se *StateError
	if !errors.As(wrapped, &se) {
		t.Fatal("errors.As() = false, want true")
	}
	if se.PhaseID != "x" {
		t.Errorf("PhaseID = %q, want %q", se.PhaseID, "x")
	}
}

// -----------------------------------------------------------------------------
// TransitionError Tests
// -----------------------------------------------------------------------------

func TestTransitionError(t *testing.T) {
	err := NewTransitionError("build", "complete", "failed")

	want := `phase "build" cannot move from complete to failed`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("errors.Is(err, ErrInvalidTransition) = false, want true")
	}
	if IsRetryable(err) {
		t.Error("IsRetryable() = true, want false")
	}
}

// -----------------------------------------------------------------------------
// LockError Tests
// -----------------------------------------------------------------------------

func TestLockError(t *testing.T) {
	err := NewLockError("state.json.lock", 30*time.Second)

	if err.Error() != "failed to acquire lock on state.json.lock after 30s" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrLockTimeout) {
		t.Error("errors.Is(err, ErrLockTimeout) = false, want true")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false, want true")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false, want true")
	}
	if err.Waited != 30*time.Second {
		t.Errorf("Waited = %v, want %v", err.Waited, 30*time.Second)
	}
}

func TestLockError_WithCause(t *testing.T) {
	cause := New("context canceled")
	err := NewLockError("x.lock", time.Second).WithCause(cause)

	if !errors.Is(err, ErrLockTimeout) {
		t.Error("errors.Is(err, ErrLockTimeout) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Validation Tests
// -----------------------------------------------------------------------------

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "message only",
			err:  NewValidationError("Plan must be a JSON array"),
			want: "Plan must be a JSON array",
		},
		{
			name: "with field",
			err:  NewValidationError("Phase title must be a non-empty string").WithField("phases[2].title"),
			want: "phases[2].title: Phase title must be a non-empty string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationError_Is(t *testing.T) {
	err := NewValidationError("bad").WithField("id").WithValue("Bad_ID")

	if !errors.Is(err, ErrInvalidInput) {
		t.Error("errors.Is(err, ErrInvalidInput) = false, want true")
	}
	if err.Value != "Bad_ID" {
		t.Errorf("Value = %v, want %v", err.Value, "Bad_ID")
	}
	if err.Message() != "bad" {
		t.Errorf("Message() = %q, want %q", err.Message(), "bad")
	}
}

func TestValidationErrors(t *testing.T) {
	var empty ValidationErrors
	if empty.Error() != "" {
		t.Errorf("empty Error() = %q, want empty", empty.Error())
	}

	single := ValidationErrors{NewValidationError("one").WithField("a")}
	if single.Error() != "a: one" {
		t.Errorf("single Error() = %q, want %q", single.Error(), "a: one")
	}

	multi := ValidationErrors{
		NewValidationError("one").WithField("a"),
		NewValidationError("two").WithField("b"),
	}
	msg := multi.Error()
	if !strings.HasPrefix(msg, "2 validation errors:") {
		t.Errorf("Error() = %q, want prefix %q", msg, "2 validation errors:")
	}
	if !strings.Contains(msg, "  - b: two") {
		t.Errorf("Error() = %q, missing second entry", msg)
	}

	var err error = multi
	if !errors.Is(err, ErrPlanInvalid) {
		t.Error("errors.Is(err, ErrPlanInvalid) = false, want true")
	}
	if got := multi.Fields(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Fields() = %v, want [a b]", got)
	}
	if !IsUserFacing(err) {
		t.Error("IsUserFacing() = false, want true")
	}
}

// -----------------------------------------------------------------------------
// CycleError Tests
// -----------------------------------------------------------------------------

func TestCycleError(t *testing.T) {
	err := NewCycleError([]string{"a", "b", "a"})

	if err.Error() != "Circular dependency detected: a -> b -> a" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrDependencyCycle) {
		t.Error("errors.Is(err, ErrDependencyCycle) = false, want true")
	}
	if !IsStructural(err) {
		t.Error("IsStructural() = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Helper Tests
// -----------------------------------------------------------------------------

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"lock error", NewLockError("x", time.Second), true},
		{"wrapped lock error", Wrap(NewLockError("x", time.Second), "mark failed"), true},
		{"bare timeout sentinel", ErrTimeout, true},
		{"state error", NewStateError("x", ErrDocumentNotFound), false},
		{"plain error", New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, SeverityDebug},
		{"plain", New("x"), SeverityError},
		{"validation", NewValidationError("x"), SeverityWarning},
		{"cycle", NewCycleError([]string{"a", "a"}), SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetSeverity(tt.err); got != tt.want {
				t.Errorf("GetSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsStructural(t *testing.T) {
	if IsStructural(nil) {
		t.Error("IsStructural(nil) = true, want false")
	}
	if !IsStructural(NewStateError("x", ErrDocumentCorrupted)) {
		t.Error("IsStructural(corrupted) = false, want true")
	}
	if IsStructural(NewLockError("x", time.Second)) {
		t.Error("IsStructural(lock) = true, want false")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) != nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) != nil")
	}

	err := Wrapf(ErrPhaseNotFound, "phase %q", "x")
	if err.Error() != `phase "x": phase not found` {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrPhaseNotFound) {
		t.Error("errors.Is() = false, want true")
	}
}
