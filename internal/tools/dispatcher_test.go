package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aegisline/coreengine/internal/engine"
)

func newRegistryWithTool(name string, class ApprovalClass, conc Concurrency, handler Handler) *Registry {
	reg := NewRegistry()
	reg.Register(Descriptor{Name: name, ApprovalClass: class, Concurrency: conc}, handler)
	return reg
}

func TestDispatcherGateUnknownTool(t *testing.T) {
	d := NewDispatcher(NewRegistry(), AutoApproveSettings{}, nil)
	out := d.Gate(Invocation{Call: Call{Name: "nope"}, Arguments: json.RawMessage(`{}`)})
	if out.Err == nil {
		t.Fatal("expected an error for an unknown tool")
	}
}

func TestDispatcherGateInvalidParamsSurfacesAsResult(t *testing.T) {
	reg := newRegistryWithTool("read_file", ApprovalNone, ConcurrencyParallelSafe, echoHandler("ok"))
	d := NewDispatcher(reg, AutoApproveSettings{}, nil)
	out := d.Gate(Invocation{Call: Call{Name: "read_file"}, Arguments: json.RawMessage(`{"path": `)})
	if out.Pending {
		t.Fatal("invalid params should not be pending")
	}
	if out.Result.Type != engine.ToolInvalidParams {
		t.Errorf("Result.Type = %v, want ToolInvalidParams", out.Result.Type)
	}
}

func TestDispatcherGatePendingForUnapprovedEdits(t *testing.T) {
	reg := newRegistryWithTool("write_file", ApprovalEdits, ConcurrencyParallelSafe, echoHandler("ok"))
	d := NewDispatcher(reg, AutoApproveSettings{}, nil)
	out := d.Gate(Invocation{Call: Call{Name: "write_file"}, Arguments: json.RawMessage(`{}`)})
	if !out.Pending {
		t.Fatal("expected write_file to be pending without auto-approve")
	}
}

func TestDispatcherGateExecutesWhenAutoApproved(t *testing.T) {
	reg := newRegistryWithTool("write_file", ApprovalEdits, ConcurrencyParallelSafe, echoHandler("ok"))
	d := NewDispatcher(reg, AutoApproveSettings{Edits: true}, nil)
	out := d.Gate(Invocation{Call: Call{Name: "write_file"}, Arguments: json.RawMessage(`{}`)})
	if out.Pending {
		t.Fatal("expected write_file to proceed when edits are auto-approved")
	}
}

func TestDispatcherExecuteWrapsHandlerError(t *testing.T) {
	failing := HandlerFunc(func(ctx context.Context, args json.RawMessage) (Result, error) {
		return Result{}, errors.New("boom")
	})
	reg := newRegistryWithTool("run_command", ApprovalNone, ConcurrencyParallelSafe, failing)
	d := NewDispatcher(reg, AutoApproveSettings{}, nil)

	outcomes := d.Dispatch(context.Background(), []Invocation{
		{Call: Call{Name: "run_command"}, Arguments: json.RawMessage(`{}`)},
	})
	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1", len(outcomes))
	}
	if outcomes[0].Err == nil {
		t.Fatal("expected outcome to carry the handler error")
	}
	if outcomes[0].Result.Type != engine.ToolError {
		t.Errorf("Result.Type = %v, want ToolError", outcomes[0].Result.Type)
	}
}

// TestDispatchPreservesCallOrderUnderConcurrency runs several parallel_safe
// calls with deliberately inverted completion order (the call scheduled
// first sleeps longest) and asserts the returned outcomes slice is still in
// original call order, not completion order (spec.md §4.5 point 4).
func TestDispatchPreservesCallOrderUnderConcurrency(t *testing.T) {
	reg := NewRegistry()
	delays := []time.Duration{30 * time.Millisecond, 20 * time.Millisecond, 10 * time.Millisecond, 0}
	for i, d := range delays {
		delay := d
		label := i
		reg.Register(
			Descriptor{Name: name(label), ApprovalClass: ApprovalNone, Concurrency: ConcurrencyParallelSafe},
			HandlerFunc(func(ctx context.Context, args json.RawMessage) (Result, error) {
				time.Sleep(delay)
				return Result{Content: name(label), Type: engine.ToolSuccess}, nil
			}),
		)
	}

	dispatcher := NewDispatcher(reg, AutoApproveSettings{}, nil)
	invocations := make([]Invocation, len(delays))
	for i := range delays {
		invocations[i] = Invocation{
			Call:      Call{ID: name(i), Name: name(i), Concurrency: ConcurrencyParallelSafe},
			Arguments: json.RawMessage(`{}`),
		}
	}

	outcomes := dispatcher.Dispatch(context.Background(), invocations)
	if len(outcomes) != len(delays) {
		t.Fatalf("len(outcomes) = %d, want %d", len(outcomes), len(delays))
	}
	for i, out := range outcomes {
		if out.Result.Content != name(i) {
			t.Errorf("outcomes[%d].Result.Content = %q, want %q", i, out.Result.Content, name(i))
		}
	}
}

func name(i int) string {
	return "tool_" + string(rune('a'+i))
}
