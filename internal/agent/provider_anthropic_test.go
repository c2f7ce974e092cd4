package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/tools"
)

func TestNewAnthropicProviderRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Fatal("expected an error for a missing API key")
	}
}

func TestNewAnthropicProviderAppliesDefaults(t *testing.T) {
	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}
	if p.model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q, want default", p.model)
	}
	if p.maxRetries != 3 {
		t.Errorf("maxRetries = %d, want 3", p.maxRetries)
	}
}

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") == "" {
			t.Error("missing x-api-key header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintln(w, line)
			flusher.Flush()
		}
	}))
}

// TestAnthropicProviderStreamChatTextDelta exercises the real SDK
// streaming client end to end against a local SSE server, something
// the teacher's own anthropic_test.go left unimplemented ("would need
// SDK support for custom base URLs"); option.WithBaseURL (wired via
// AnthropicConfig.BaseURL) makes this possible.
func TestAnthropicProviderStreamChatTextDelta(t *testing.T) {
	server := sseServer(t, []string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","usage":{"input_tokens":10}}}`,
		``,
		`event: content_block_start`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}`,
		``,
		`event: content_block_stop`,
		`data: {"type":"content_block_stop","index":0}`,
		``,
		`event: message_delta`,
		`data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":5}}`,
		``,
		`event: message_stop`,
		`data: {"type":"message_stop"}`,
		``,
	})
	defer server.Close()

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := p.StreamChat(ctx, ChatRequest{
		Messages: []engine.Message{{Kind: engine.KindUser, User: &engine.UserMessage{Text: "hi"}}},
	})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	var text string
	var sawDone bool
	for ev := range events {
		switch ev.Kind {
		case EventTextDelta:
			text += ev.Content
		case EventDone:
			sawDone = true
		case EventError:
			t.Fatalf("unexpected error event: %s", ev.Message)
		}
	}

	if text != "Hello world" {
		t.Errorf("accumulated text = %q, want %q", text, "Hello world")
	}
	if !sawDone {
		t.Error("expected a done event")
	}
}

func TestAnthropicProviderStreamChatToolCall(t *testing.T) {
	server := sseServer(t, []string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","usage":{"input_tokens":10}}}`,
		``,
		`event: content_block_start`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"tool_1","name":"get_weather","input":{}}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"London\"}"}}`,
		``,
		`event: content_block_stop`,
		`data: {"type":"content_block_stop","index":0}`,
		``,
		`event: message_stop`,
		`data: {"type":"message_stop"}`,
		``,
	})
	defer server.Close()

	p, err := NewAnthropicProvider(AnthropicConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}

	events, err := p.StreamChat(context.Background(), ChatRequest{
		Messages: []engine.Message{{Kind: engine.KindUser, User: &engine.UserMessage{Text: "weather?"}}},
		Tools: []tools.Descriptor{
			{Name: "get_weather", Description: "gets the weather", ParamsSchema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`)},
		},
	})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	var gotFragments, gotComplete int
	var argChunks string
	var toolID, toolName string
	for ev := range events {
		switch ev.Kind {
		case EventToolCallFragment:
			gotFragments++
			if ev.ToolName != "" {
				toolID, toolName = ev.ToolCallID, ev.ToolName
			}
			argChunks += ev.ArgumentsChunk
		case EventToolCallComplete:
			gotComplete++
		}
	}

	if toolID != "tool_1" || toolName != "get_weather" {
		t.Errorf("tool id/name = %q/%q, want tool_1/get_weather", toolID, toolName)
	}
	if argChunks != `{"city":"London"}` {
		t.Errorf("accumulated arguments = %q, want %q", argChunks, `{"city":"London"}`)
	}
	if gotComplete != 1 {
		t.Errorf("tool_call_complete events = %d, want 1", gotComplete)
	}
}

func TestConvertMessagesRoundTripsToolCallAndResult(t *testing.T) {
	msgs := []engine.Message{
		{Kind: engine.KindUser, User: &engine.UserMessage{Text: "what's the weather?"}},
		{Kind: engine.KindAssistant, Assistant: &engine.AssistantMessage{
			Parts: []engine.AssistantPart{
				{Type: engine.PartText, Text: "Let me check."},
				{Type: engine.PartToolCall, ToolCall: &engine.ToolCall{ID: "t1", Name: "get_weather", Arguments: json.RawMessage(`{"city":"NYC"}`)}},
			},
		}},
		{Kind: engine.KindTool, Tool: &engine.ToolMessage{ToolCallID: "t1", Name: "get_weather", Content: "sunny", Type: engine.ToolSuccess}},
	}

	out, err := convertMessages(msgs)
	if err != nil {
		t.Fatalf("convertMessages() error = %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
}

func TestConvertToolsRejectsInvalidSchema(t *testing.T) {
	_, err := convertTools([]tools.Descriptor{
		{Name: "bad", ParamsSchema: json.RawMessage(`not json`)},
	})
	if err == nil {
		t.Fatal("expected an error for an invalid params schema")
	}
}
