// Package engineerr defines the engine's error taxonomy (spec.md §7) as
// typed sentinel errors, generalized from the teacher's agent-loop-local
// error set (internal/agent/errors.go in the teacher repo, which only
// distinguished a handful of provider failure strings) into the nine
// kinds the spec requires across all components.
package engineerr

import (
	"errors"
	"fmt"
)

// Kind is one of the nine error kinds spec.md §7 enumerates.
type Kind string

const (
	Validation     Kind = "validation"
	Policy         Kind = "policy"
	Timeout        Kind = "timeout"
	Provider       Kind = "provider"
	ToolExecution  Kind = "tool_execution"
	Resource       Kind = "resource"
	State          Kind = "state"
	LoopDetected   Kind = "loop_detected"
	BudgetExceeded Kind = "budget_exceeded"
)

// sentinels usable with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrPolicy         = errors.New("policy error")
	ErrTimeout        = errors.New("timeout error")
	ErrProvider       = errors.New("provider error")
	ErrToolExecution  = errors.New("tool execution error")
	ErrResource       = errors.New("resource error")
	ErrState          = errors.New("state error")
	ErrLoopDetected   = errors.New("loop detected")
	ErrBudgetExceeded = errors.New("budget exceeded")
)

var kindSentinel = map[Kind]error{
	Validation:     ErrValidation,
	Policy:         ErrPolicy,
	Timeout:        ErrTimeout,
	Provider:       ErrProvider,
	ToolExecution:  ErrToolExecution,
	Resource:       ErrResource,
	State:          ErrState,
	LoopDetected:   ErrLoopDetected,
	BudgetExceeded: ErrBudgetExceeded,
}

// EngineError pairs a taxonomy Kind with a human-readable reason and,
// for ProviderError, whether the caller should retry.
type EngineError struct {
	Kind      Kind
	Reason    string
	Retryable bool
	Cause     error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *EngineError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return kindSentinel[e.Kind]
}

// Is matches the Kind's sentinel even when Unwrap yields a Cause.
func (e *EngineError) Is(target error) bool {
	return target == kindSentinel[e.Kind]
}

// New builds an EngineError of the given kind.
func New(kind Kind, reason string) *EngineError {
	return &EngineError{Kind: kind, Reason: reason}
}

// Wrap builds an EngineError of the given kind, wrapping cause.
func Wrap(kind Kind, reason string, cause error) *EngineError {
	return &EngineError{Kind: kind, Reason: reason, Cause: cause}
}

// WrapRetryable builds a retryable ProviderError.
func WrapRetryable(reason string, cause error, retryable bool) *EngineError {
	return &EngineError{Kind: Provider, Reason: reason, Cause: cause, Retryable: retryable}
}

// Is reports whether err (or something it wraps) is of the given kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kindSentinel[kind])
}

// AsEngineError extracts the *EngineError from err, if any.
func AsEngineError(err error) (*EngineError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// Translate converts a technical error into a short, human-readable
// message for the single terminal assistant message the spec requires
// (spec.md §7: "every terminal error produces a single assistant message
// with a human-readable reason"). Grounded on the teacher's
// agent.TranslateError (internal/agent/errors.go), generalized from a
// handful of provider-string matches to dispatch on EngineError.Kind
// first and fall back to the same substring heuristics for errors that
// didn't originate as an EngineError (e.g. a raw transport error).
func Translate(err error) string {
	if err == nil {
		return ""
	}

	if ee, ok := AsEngineError(err); ok {
		switch ee.Kind {
		case Validation:
			return fmt.Sprintf("Invalid tool parameters: %s", ee.Reason)
		case Policy:
			return fmt.Sprintf("Blocked by policy: %s", ee.Reason)
		case Timeout:
			return fmt.Sprintf("Timed out: %s", ee.Reason)
		case Provider:
			if ee.Retryable {
				return fmt.Sprintf("Provider error (will retry): %s", ee.Reason)
			}
			return fmt.Sprintf("Provider error: %s", ee.Reason)
		case ToolExecution:
			return fmt.Sprintf("Tool execution failed: %s", ee.Reason)
		case Resource:
			return fmt.Sprintf("Resource error: %s", ee.Reason)
		case State:
			return fmt.Sprintf("Internal state error: %s (this is a bug)", ee.Reason)
		case LoopDetected:
			return fmt.Sprintf("Stopped: %s", ee.Reason)
		case BudgetExceeded:
			return fmt.Sprintf("Stopped: %s", ee.Reason)
		}
	}

	return fmt.Sprintf("An error occurred: %s", err.Error())
}
