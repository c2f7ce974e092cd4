package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/engineerr"
)

// Invocation is one queued tool call ready for dispatch: its identity,
// its raw arguments, and the plan metadata PlanWaves needs.
type Invocation struct {
	Call
	Arguments json.RawMessage

	// Warning is set by Gate when a HookChecker flags this call without
	// blocking it; Dispatch prepends it to the eventual result content.
	Warning string
}

// HookChecker evaluates a tool call against user-defined policy before
// it runs, independent of the static approval classes Decide already
// enforces. A non-nil error blocks the call entirely; a non-empty
// string return warns without blocking. Implemented by
// internal/hooks.DynamicHookManager.
type HookChecker interface {
	CheckPreToolUse(toolName string, args map[string]interface{}) (warning string, err error)
}

// Outcome is what happened to one Invocation after approval gating and
// (if applicable) execution.
type Outcome struct {
	Invocation Invocation
	Pending    bool // awaiting_approval: halt the loop, do not execute
	Result     Result
	Err        error
}

// Dispatcher wires the Registry, approval policy, and concurrency
// planner together (spec.md §4.5). Grounded on the teacher's
// NativeExecutor.Execute dispatch loop (executor.go), generalized from
// strictly sequential dispatch to the spec's wave-based concurrency
// planner, using golang.org/x/sync/errgroup for within-wave fan-out
// (a dependency the rest of the pack already uses for bounded
// concurrent fan-out, e.g. the teacher's swarm.go sub-agent dispatch).
type Dispatcher struct {
	Registry *Registry
	Approve  AutoApproveSettings
	MCP      MCPPolicy

	// Hooks, when set, is consulted by Gate before the static approval
	// decision. Optional: a nil Hooks skips user-defined policy
	// entirely.
	Hooks HookChecker
}

// NewDispatcher builds a Dispatcher over a Registry.
func NewDispatcher(reg *Registry, approve AutoApproveSettings, mcp MCPPolicy) *Dispatcher {
	return &Dispatcher{Registry: reg, Approve: approve, MCP: mcp}
}

// Gate validates and approval-gates one invocation without executing
// it, used by the Agent Loop to decide whether the whole batch can
// proceed or must halt at awaiting_approval (spec.md §4.5 Validation +
// Approval policy).
func (d *Dispatcher) Gate(inv Invocation) Outcome {
	desc, ok := d.Registry.Descriptor(inv.Name)
	if !ok {
		return Outcome{Invocation: inv, Err: engineerr.New(engineerr.ToolExecution, fmt.Sprintf("unknown tool %q", inv.Name))}
	}

	args, validationErr := ParseArgs(inv.Arguments)
	if validationErr != "" {
		return Outcome{
			Invocation: inv,
			Result:     Result{Content: validationErr, Type: engine.ToolInvalidParams},
		}
	}
	_ = args // only the JSON-object check above runs; arguments are not checked against the tool's ParamsSchema

	if d.Hooks != nil {
		warning, err := d.Hooks.CheckPreToolUse(inv.Name, args)
		if err != nil {
			return Outcome{
				Invocation: inv,
				Result:     Result{Content: err.Error(), Type: engine.ToolRejected},
			}
		}
		inv.Warning = warning
	}

	switch Decide(desc, d.Approve, d.MCP) {
	case DecisionExecute:
		return Outcome{Invocation: inv}
	default:
		return Outcome{Invocation: inv, Pending: true}
	}
}

// Dispatch executes a batch of already-gated (non-pending) invocations,
// respecting the concurrency plan, and returns outcomes in call order
// regardless of completion order (spec.md §4.5 point 4).
func (d *Dispatcher) Dispatch(ctx context.Context, invocations []Invocation) []Outcome {
	calls := make([]Call, len(invocations))
	for i, inv := range invocations {
		calls[i] = inv.Call
	}
	waves := PlanWaves(calls)
	groups := GroupByWave(waves)

	outcomes := make([]Outcome, len(invocations))
	for _, group := range groups {
		g, gctx := errgroup.WithContext(ctx)
		for _, idx := range group {
			idx := idx
			g.Go(func() error {
				outcomes[idx] = d.execute(gctx, invocations[idx])
				return nil
			})
		}
		_ = g.Wait() // per-call errors are carried in Outcome.Err, never aborting the batch
	}
	return outcomes
}

func (d *Dispatcher) execute(ctx context.Context, inv Invocation) Outcome {
	handler, ok := d.Registry.Handler(inv.Name)
	if !ok {
		return Outcome{Invocation: inv, Err: engineerr.New(engineerr.ToolExecution, fmt.Sprintf("no handler registered for %q", inv.Name))}
	}

	res, err := handler.Execute(ctx, inv.Arguments)
	if err != nil {
		ee, _ := engineerr.AsEngineError(err)
		content := engineerr.Translate(err)
		if ee == nil {
			content = err.Error()
		}
		return Outcome{
			Invocation: inv,
			Result:     Result{Content: content, Type: engine.ToolError},
			Err:        err,
		}
	}
	if inv.Warning != "" {
		res.Content = inv.Warning + "\n\n" + res.Content
	}
	return Outcome{Invocation: inv, Result: res}
}
