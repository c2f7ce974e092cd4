package engineerr

import (
	"errors"
	"testing"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "validation",
			err:      New(Validation, "missing required field 'path'"),
			expected: "Invalid tool parameters: missing required field 'path'",
		},
		{
			name:     "policy",
			err:      New(Policy, "command not in allowlist"),
			expected: "Blocked by policy: command not in allowlist",
		},
		{
			name:     "provider retryable",
			err:      WrapRetryable("rate limited", errors.New("429"), true),
			expected: "Provider error (will retry): rate limited",
		},
		{
			name:     "provider non-retryable",
			err:      WrapRetryable("bad request", errors.New("400"), false),
			expected: "Provider error: bad request",
		},
		{
			name:     "loop detected",
			err:      New(LoopDetected, "same tool call repeated 4 times"),
			expected: "Stopped: same tool call repeated 4 times",
		},
		{
			name:     "budget exceeded",
			err:      New(BudgetExceeded, "max_tool_loops reached"),
			expected: "Stopped: max_tool_loops reached",
		},
		{
			name:     "unwrapped error falls back",
			err:      errors.New("raw transport failure"),
			expected: "An error occurred: raw transport failure",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.err)
			if got != tt.expected {
				t.Errorf("Translate() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsAndAs(t *testing.T) {
	err := Wrap(Timeout, "provider took too long", errors.New("context deadline exceeded"))

	if !Is(err, Timeout) {
		t.Errorf("Is(err, Timeout) = false, want true")
	}
	if Is(err, Provider) {
		t.Errorf("Is(err, Provider) = true, want false")
	}

	ee, ok := AsEngineError(err)
	if !ok {
		t.Fatalf("AsEngineError() ok = false, want true")
	}
	if ee.Kind != Timeout {
		t.Errorf("ee.Kind = %q, want %q", ee.Kind, Timeout)
	}
}

func TestEngineErrorUnwrapWithoutCause(t *testing.T) {
	err := New(State, "invariant violated")
	if !errors.Is(err, ErrState) {
		t.Errorf("errors.Is(err, ErrState) = false, want true")
	}
}
