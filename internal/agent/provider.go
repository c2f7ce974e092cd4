package agent

import (
	"context"

	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/tools"
)

// EventKind discriminates the stream events spec.md §6's LLM provider
// adapter contract defines.
type EventKind string

const (
	EventTextDelta        EventKind = "text_delta"
	EventReasoningDelta   EventKind = "reasoning_delta"
	EventToolCallFragment EventKind = "tool_call_fragment"
	EventToolCallComplete EventKind = "tool_call_complete"
	EventUsage            EventKind = "usage"
	EventDone             EventKind = "done"
	EventError            EventKind = "error"
)

// StreamEvent is one event out of a provider's StreamChat channel.
// Adapters MUST emit EventToolCallComplete before EventDone for any
// tool_call they reported (spec.md §6).
type StreamEvent struct {
	Kind EventKind

	// text_delta / reasoning_delta
	Content string

	// tool_call_fragment / tool_call_complete
	ToolCallID     string // stable across all fragments of one call
	ToolName       string // set on the first fragment only
	ArgumentsChunk string // a partial-JSON fragment, concatenate in order

	// usage
	InputTokens  int
	OutputTokens int

	// error
	Message   string
	Retryable bool
}

// Parameters is spec.md §6's provider-agnostic parameters surface.
type Parameters struct {
	Temperature float64
	TopP        float64
	MaxTokens   int

	TopK              *int
	FrequencyPenalty  *float64
	PresencePenalty   *float64
	Stop              []string
	Seed              *int
	ToolChoice        string
	ParallelToolCalls *bool
}

// ChatRequest is one turn's worth of provider input: the system prompt
// already assembled by the Message Assembler, the active thread
// messages, and the tool descriptors currently registered.
type ChatRequest struct {
	System     string
	Messages   []engine.Message
	Tools      []tools.Descriptor
	Model      string
	Parameters Parameters
}

// Provider is the LLM adapter interface the Agent Loop drives (spec.md
// §6 "LLM provider adapter (inbound to C4)"). Grounded on the teacher's
// Provider interface (this file, previously Chat/ChatStream/Embed/Name),
// trimmed to the single operation the new loop needs: StreamChat
// replaces the teacher's separate Chat/ChatStream/Embed trio, since
// every path through the spec's state machine streams (there is no
// non-streaming branch) and embeddings belong to internal/index, not
// the agent loop.
type Provider interface {
	// StreamChat issues one request and returns a channel of StreamEvent.
	// The channel is closed after an EventDone or EventError is sent.
	// Canceling ctx stops the stream; the channel still closes.
	StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)

	// Name returns the provider identifier used for logging and in
	// terminal ProviderError messages.
	Name() string
}
