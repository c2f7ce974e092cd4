// Package engine implements the Thread Store (C1): the tagged-variant
// message model and the in-memory, mutex-guarded conversation state the
// rest of the orchestration engine reads and writes.
package engine

import (
	"encoding/json"
	"time"
)

// Kind discriminates the four message variants a Thread can hold.
type Kind string

const (
	KindUser       Kind = "user"
	KindAssistant  Kind = "assistant"
	KindTool       Kind = "tool"
	KindCheckpoint Kind = "checkpoint"
)

// Message is a tagged union over the four message kinds. Exactly one of
// User, Assistant, Tool, Checkpoint is non-nil, matching Kind.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	User       *UserMessage       `json:"user,omitempty"`
	Assistant  *AssistantMessage  `json:"assistant,omitempty"`
	Tool       *ToolMessage       `json:"tool,omitempty"`
	Checkpoint *CheckpointMessage `json:"checkpoint,omitempty"`
}

// UserPartType distinguishes the parts of a multi-part user message.
type UserPartType string

const (
	UserPartText  UserPartType = "text"
	UserPartImage UserPartType = "image"
)

// UserPart is one element of a user message's content when it is not a
// bare string (spec.md §3: "content is text, or an ordered list of
// text/image parts").
type UserPart struct {
	Type     UserPartType `json:"type"`
	Text     string       `json:"text,omitempty"`
	ImageURL string       `json:"image_url,omitempty"`
}

// UserMessage is the `user` message variant.
type UserMessage struct {
	Text  string     `json:"text,omitempty"`
	Parts []UserPart `json:"parts,omitempty"`

	// ContextItems is the snapshot of pinned context references used at
	// send time (spec.md §3: "may carry a snapshot of context_items").
	ContextItems []ContextItem `json:"context_items,omitempty"`
}

// ContextItem is a pinned reference the Message Assembler can expand
// inline (a file, a symbol listing, a prior tool output, ...).
type ContextItem struct {
	ID   string `json:"id"`
	Type string `json:"type"` // file, symbol, tool_output, url
	Path string `json:"path,omitempty"`
}

// AssistantPartType distinguishes the parts of an assistant message.
type AssistantPartType string

const (
	PartText      AssistantPartType = "text"
	PartReasoning AssistantPartType = "reasoning"
	PartToolCall  AssistantPartType = "tool_call"
)

// AssistantPart is one element of an assistant message's ordered parts
// list (spec.md §3: "A part is one of {text, reasoning, tool_call}").
type AssistantPart struct {
	Type      AssistantPartType `json:"type"`
	Text      string            `json:"text,omitempty"`
	Reasoning string            `json:"reasoning,omitempty"`
	ToolCall  *ToolCall         `json:"tool_call,omitempty"`
}

// ToolCallStatus tracks incremental assembly of a streamed tool call.
type ToolCallStatus string

const (
	ToolCallAssembling ToolCallStatus = "assembling"
	ToolCallComplete   ToolCallStatus = "complete"
)

// ToolCall is a single tool invocation proposed by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Status    ToolCallStatus  `json:"status"`
}

// AssistantMessage is the `assistant` message variant.
type AssistantMessage struct {
	// Content is the flattened text for simple consumers (spec.md §3).
	Content string `json:"content"`

	// Parts is the ordered render list; ToolCalls indexes into it.
	Parts     []AssistantPart `json:"parts,omitempty"`
	ToolCalls []int           `json:"tool_calls,omitempty"`

	// CompactedAt marks a compression boundary (spec.md §3, §4.3).
	CompactedAt *time.Time `json:"compacted_at,omitempty"`

	// textFinalized is an internal per-turn hint (spec.md §9 Open
	// Questions: treated as transient, never serialized).
	textFinalized bool `json:"-"`
}

// ToolResultType is the outcome of a tool execution.
type ToolResultType string

const (
	ToolInvalidParams ToolResultType = "invalid_params"
	ToolRunning       ToolResultType = "running"
	ToolSuccess       ToolResultType = "success"
	ToolError         ToolResultType = "error"
	ToolRejected      ToolResultType = "rejected"
)

// ToolMessage is the `tool` message variant — the result of one tool
// call, referencing it by id (spec.md §3 invariant: exactly one earlier
// assistant.tool_call by id in the same thread).
type ToolMessage struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Content    string          `json:"content"`
	Type       ToolResultType  `json:"type"`
	Params     json.RawMessage `json:"params,omitempty"`

	CompactedAt *time.Time `json:"compacted_at,omitempty"`
}

// CheckpointKind distinguishes the two triggers for a checkpoint.
type CheckpointKind string

const (
	CheckpointUserMessage CheckpointKind = "user_message"
	CheckpointToolEdit    CheckpointKind = "tool_edit"
)

// FileSnapshot captures a file's content (or absence) at a point in time.
type FileSnapshot struct {
	Path      string    `json:"path"`
	Content   *string   `json:"content"` // nil means the file did not exist
	Timestamp time.Time `json:"timestamp"`
}

// CheckpointMessage is the `checkpoint` message variant.
type CheckpointMessage struct {
	Type      CheckpointKind          `json:"type"`
	Snapshots map[string]FileSnapshot `json:"snapshots"`

	// ToolCallID is set for tool_edit checkpoints, identifying which tool
	// result this checkpoint protects.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ChangeStatus is the lifecycle state of a PendingChange.
type ChangeStatus string

const (
	ChangePending  ChangeStatus = "pending"
	ChangeAccepted ChangeStatus = "accepted"
	ChangeRejected ChangeStatus = "rejected"
)

// ChangeType is the kind of mutation a PendingChange represents.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeModify ChangeType = "modify"
	ChangeDelete ChangeType = "delete"
)

// PendingChange is a proposed file mutation awaiting approval or already
// auto-applied (spec.md §3).
type PendingChange struct {
	ID         string       `json:"id"`
	FilePath   string       `json:"file_path"`
	ToolCallID string       `json:"tool_call_id"`
	ToolName   string       `json:"tool_name"`
	Status     ChangeStatus `json:"status"`
	Snapshot   FileSnapshot `json:"snapshot"`
	NewContent *string      `json:"new_content"` // nil for delete
	ChangeType ChangeType   `json:"change_type"`
	LinesAdded int          `json:"lines_added"`
	LinesRemov int          `json:"lines_removed"`
}

// StreamPhase is the current phase of the Streaming Buffer / Agent Loop
// for a thread's in-flight turn.
type StreamPhase string

const (
	PhaseIdle         StreamPhase = "idle"
	PhaseStreaming    StreamPhase = "streaming"
	PhaseToolPending  StreamPhase = "tool_pending"
	PhaseToolRunning  StreamPhase = "tool_running"
)

// StreamState is the thread's current streaming phase plus whatever
// per-phase bookkeeping the Agent Loop needs to resume or cancel.
type StreamState struct {
	Phase             StreamPhase `json:"phase"`
	StreamingAssistID string      `json:"streaming_assistant_id,omitempty"`
}

// CompressionPhase is the Context Manager's current activity.
type CompressionPhase string

const (
	CompressionIdle        CompressionPhase = "idle"
	CompressionAnalyzing   CompressionPhase = "analyzing"
	CompressionCompressing CompressionPhase = "compressing"
	CompressionSummarizing CompressionPhase = "summarizing"
	CompressionDone        CompressionPhase = "done"
)

// StructuredSummary is the output of L3 summarization (spec.md §4.3).
type StructuredSummary struct {
	Objective      string       `json:"objective"`
	CompletedSteps []string     `json:"completed_steps"`
	PendingSteps   []string     `json:"pending_steps"`
	FileChanges    []FileChange `json:"file_changes"`
	Decisions      []string     `json:"decisions"`
	OpenQuestions  []string     `json:"open_questions"`
}

// FileChange is one entry of a StructuredSummary's file_changes list.
type FileChange struct {
	Action  string `json:"action"`
	Path    string `json:"path"`
	Summary string `json:"summary"`
}

// HandoffDocument is the L4 artifact used to seed a new thread when
// context cannot be compressed further (spec.md §4.3).
type HandoffDocument struct {
	Summary           string       `json:"summary"`
	LastUserIntent    string       `json:"last_user_intent"`
	FileChanges       []FileChange `json:"file_changes"`
	EnvironmentHints  []string     `json:"environment_hints"`
	PendingObjective  string       `json:"pending_objective,omitempty"`
	PendingSteps      []string     `json:"pending_steps,omitempty"`
}

// CompressionState is the thread's Context Manager bookkeeping.
type CompressionState struct {
	CompressionStats map[string]int     `json:"compression_stats,omitempty"`
	ContextSummary   *StructuredSummary `json:"context_summary,omitempty"`
	HandoffDocument  *HandoffDocument   `json:"handoff_document,omitempty"`
	HandoffRequired  bool               `json:"handoff_required"`
	IsCompacting     bool               `json:"is_compacting"`
	Phase            CompressionPhase   `json:"phase"`

	// Level is the highest compression level ("L0".."L4") reached so far
	// within the current compression pass, enforcing spec.md §4.3's
	// idempotence rule: re-running at or below this level is a no-op,
	// raising it is monotonic. Cleared back to "" by ResetTurn at the end
	// of each pass.
	Level string `json:"level,omitempty"`
}

// Thread is the unit of conversation: an owned, ordered message list plus
// its branches, checkpoints (derived from its messages), and pending
// changes (spec.md §3).
type Thread struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	LastModified time.Time     `json:"last_modified"`
	Messages     []Message     `json:"messages"`
	ContextItems []ContextItem `json:"context_items"`

	StreamState      StreamState      `json:"stream_state"`
	CompressionState CompressionState `json:"compression_state"`

	HandoffContext  string   `json:"handoff_context,omitempty"`
	PendingObjective string  `json:"pending_objective,omitempty"`
	PendingSteps    []string `json:"pending_steps,omitempty"`

	// PendingChanges is keyed by id; authoritative status is mirrored from
	// the originating tool result (spec.md §3 Ownership / §9 Open Questions).
	PendingChanges map[string]*PendingChange `json:"pending_changes,omitempty"`

	Branches  map[string]*Branch `json:"branches,omitempty"`
	ActiveBranchID string          `json:"active_branch_id,omitempty"`
}

// Branch is a divergent slice of a thread's message history forked at a
// specific message (spec.md §3).
type Branch struct {
	ID             string    `json:"id"`
	ParentThreadID string    `json:"parent_thread_id"`
	ForkMessageID  string    `json:"fork_message_id"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"created_at"`
}

// activeMessages returns the message list the loop should currently read:
// the active branch's slice if one is selected, else the thread's own.
func (t *Thread) activeMessages() []Message {
	if t.ActiveBranchID != "" {
		if b, ok := t.Branches[t.ActiveBranchID]; ok {
			return b.Messages
		}
	}
	return t.Messages
}
