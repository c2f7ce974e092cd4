// Package tools implements the Tool Dispatcher (C5): the static
// registry, argument validation, approval gating, and the concurrency
// planner (spec.md §4.5).
package tools

import (
	"context"
	"encoding/json"

	"github.com/aegisline/coreengine/internal/engine"
)

// ApprovalClass is one of the five approval gates spec.md §4.5 defines.
type ApprovalClass string

const (
	ApprovalNone      ApprovalClass = "none"
	ApprovalEdits     ApprovalClass = "edits"
	ApprovalTerminal  ApprovalClass = "terminal"
	ApprovalDangerous ApprovalClass = "dangerous"
	ApprovalMCP       ApprovalClass = "mcp"
)

// Mutation classifies what a tool changes in the workspace, if anything.
type Mutation string

const (
	MutationNone       Mutation = "none"
	MutationFileWrite  Mutation = "file_write"
	MutationFileDelete Mutation = "file_delete"
	MutationFileRename Mutation = "file_rename"
	MutationShell      Mutation = "shell"
)

// Concurrency classifies how a tool call may be scheduled relative to
// others in the same batch.
type Concurrency string

const (
	ConcurrencyParallelSafe    Concurrency = "parallel_safe"
	ConcurrencySequential      Concurrency = "sequential"
	ConcurrencyTargetExclusive Concurrency = "target_exclusive"
)

// Descriptor is a tool's static metadata (spec.md §4.5 "Tool
// descriptor"). Grounded on the teacher's ToolDefinition (executor.go)
// plus tool_categories.go's ToolCategory, generalized from the
// teacher's single read/write/execute/meta/browser/mcp category into
// the spec's orthogonal approval_class/mutation/concurrency triple.
type Descriptor struct {
	Name          string
	Description   string
	ParamsSchema  json.RawMessage
	ApprovalClass ApprovalClass
	Mutation      Mutation
	Concurrency   Concurrency
}

// Result is what a Handler returns for one invocation.
type Result struct {
	Content      string
	Type         engine.ToolResultType
	TouchedPaths []string
	NewContent   *string // nil for delete, or when the tool doesn't write file content
	ChangeType   engine.ChangeType
}

// Handler executes one tool call. Implementations live alongside the
// Workspace Gateway (C8) adapters; this package only knows about the
// Handler interface, not any concrete side effect.
type Handler interface {
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (Result, error)

func (f HandlerFunc) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	return f(ctx, args)
}

type entry struct {
	desc    Descriptor
	handler Handler
}

// Registry is the static tool registry keyed by name (spec.md §4.5,
// re-architecture hint spec.md §9). Grounded on the teacher's
// NativeExecutor.GetDefinitions()/tool_categories.go registry map,
// generalized from a hardcoded switch-on-name dispatch into a
// registered Descriptor+Handler pair per tool.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds or replaces a tool. MCP tools register dynamically at
// hub-connect time (spec.md §4.5 expansion note), matching the
// teacher's RegisterToolCategory's "register at runtime" allowance.
func (r *Registry) Register(desc Descriptor, handler Handler) {
	r.entries[desc.Name] = entry{desc: desc, handler: handler}
}

// Unregister removes a tool (e.g. when an MCP server disconnects).
func (r *Registry) Unregister(name string) {
	delete(r.entries, name)
}

// Descriptor returns a tool's metadata.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	e, ok := r.entries[name]
	return e.desc, ok
}

// Handler returns a tool's executor.
func (r *Registry) Handler(name string) (Handler, bool) {
	e, ok := r.entries[name]
	return e.handler, ok
}

// Descriptors returns every registered tool's metadata, for serializing
// the provider-facing tool list.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	return out
}
