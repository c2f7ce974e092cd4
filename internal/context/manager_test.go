package context

import (
	"context"
	"strings"
	"testing"

	"github.com/aegisline/coreengine/internal/engine"
)

func TestSelectLevel(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  Level
	}{
		{"well under budget", 0.10, L0None},
		{"just under L1 boundary", 0.49, L0None},
		{"at L1 boundary", 0.50, L1Prune},
		{"at L2 boundary", 0.70, L2CompressOld},
		{"at L3 boundary", 0.85, L3Summarize},
		{"at L4 boundary", 0.95, L4Handoff},
		{"over budget", 1.10, L4Handoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectLevel(tt.ratio); got != tt.want {
				t.Errorf("SelectLevel(%v) = %v, want %v", tt.ratio, got, tt.want)
			}
		})
	}
}

func TestIsOverflow(t *testing.T) {
	tests := []struct {
		name                                     string
		input, output, limit, reserve           int
		want                                     bool
	}{
		{"fits comfortably", 1000, 100, 8000, 4096, false},
		{"exactly at the edge", 3904, 0, 8000, 4096, false},
		{"one over the edge", 3905, 0, 8000, 4096, true},
		{"large output reserved beyond default", 4000, 5000, 8000, 4096, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOverflow(tt.input, tt.output, tt.limit, tt.reserve); got != tt.want {
				t.Errorf("IsOverflow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimateTokensHeuristic(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(\"\") = %d, want 0", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("EstimateTokens(\"abcd\") = %d, want 1", got)
	}
	if got := EstimateTokens(strings.Repeat("x", 400)); got != 100 {
		t.Errorf("EstimateTokens(400 chars) = %d, want 100", got)
	}
}

func userMsg(id, text string) engine.Message {
	return engine.Message{ID: id, Kind: engine.KindUser, User: &engine.UserMessage{Text: text}}
}

func toolMsg(id, name, content string) engine.Message {
	return engine.Message{ID: id, Kind: engine.KindTool, Tool: &engine.ToolMessage{ToolCallID: id, Name: name, Content: content}}
}

func assistantMsg(id, content string, toolCall *engine.ToolCall) engine.Message {
	a := &engine.AssistantMessage{Content: content}
	if toolCall != nil {
		a.Parts = []engine.AssistantPart{
			{Type: engine.PartText, Text: content},
			{Type: engine.PartToolCall, ToolCall: toolCall},
		}
		a.ToolCalls = []int{1}
	}
	return engine.Message{ID: id, Kind: engine.KindAssistant, Assistant: a}
}

func TestPruneToolResultsRespectsMinimumGuard(t *testing.T) {
	s := Settings{KeepRecentTurns: 1, PruneMinimum: 20_000, PruneProtect: 40_000}
	messages := []engine.Message{
		userMsg("u1", "do something"),
		assistantMsg("a1", "ok", &engine.ToolCall{ID: "tc1", Name: "read_file"}),
		toolMsg("tc1", "read_file", "small content"),
		userMsg("u2", "more"),
	}

	out := pruneToolResults(messages, s)
	if out[2].Tool.CompactedAt != nil {
		t.Errorf("tool result was pruned despite reclaimable tokens being below prune_minimum")
	}
}

func TestPruneToolResultsClearsEligibleOldContent(t *testing.T) {
	s := Settings{KeepRecentTurns: 1, PruneMinimum: 10, PruneProtect: 0}
	bigContent := strings.Repeat("x", 200)
	messages := []engine.Message{
		userMsg("u1", "do something"),
		assistantMsg("a1", "ok", &engine.ToolCall{ID: "tc1", Name: "read_file"}),
		toolMsg("tc1", "read_file", bigContent),
		userMsg("u2", "more"),
	}

	out := pruneToolResults(messages, s)
	if out[2].Tool.CompactedAt == nil {
		t.Fatalf("expected tool result to be pruned")
	}
	if out[2].Tool.Content != "[Old tool result content cleared]" {
		t.Errorf("Tool.Content = %q, want placeholder", out[2].Tool.Content)
	}
}

func TestPruneToolResultsSkipsProtectedTools(t *testing.T) {
	s := Settings{KeepRecentTurns: 1, PruneMinimum: 0, PruneProtect: 0}
	bigContent := strings.Repeat("x", 200)
	messages := []engine.Message{
		userMsg("u1", "do something"),
		assistantMsg("a1", "ok", &engine.ToolCall{ID: "tc1", Name: "ask_user"}),
		toolMsg("tc1", "ask_user", bigContent),
		userMsg("u2", "more"),
	}

	out := pruneToolResults(messages, s)
	if out[2].Tool.CompactedAt != nil {
		t.Errorf("ask_user tool result was pruned, want protected")
	}
}

func TestCompressOldToolCallsRewritesArgumentsAndDropsReasoning(t *testing.T) {
	s := Settings{KeepRecentTurns: 1}
	messages := []engine.Message{
		userMsg("u1", "do something"),
		{
			ID:   "a1",
			Kind: engine.KindAssistant,
			Assistant: &engine.AssistantMessage{
				Content: "ok",
				Parts: []engine.AssistantPart{
					{Type: engine.PartReasoning, Reasoning: "long internal reasoning"},
					{Type: engine.PartToolCall, ToolCall: &engine.ToolCall{ID: "tc1", Name: "edit_file", Arguments: []byte(`{"path":"main.go","content":"very long file body here"}`)}},
				},
			},
		},
		userMsg("u2", "more"),
	}

	out := compressOldToolCalls(messages, s)
	a := out[1].Assistant
	if a.CompactedAt == nil {
		t.Fatalf("expected assistant message to be marked compacted")
	}
	for _, p := range a.Parts {
		if p.Type == engine.PartReasoning {
			t.Errorf("reasoning part survived compression")
		}
	}
	if len(a.Parts) != 1 || a.Parts[0].Type != engine.PartToolCall {
		t.Fatalf("Parts = %+v, want only the rewritten tool_call", a.Parts)
	}
}

func TestManagerCompressIsIdempotentAtOrBelowCurrentLevel(t *testing.T) {
	m := NewManager(Settings{ContextLimit: 1000, KeepRecentTurns: 1, PruneMinimum: 0, PruneProtect: 0}, nil)
	messages := []engine.Message{
		userMsg("u1", "do something"),
		toolMsg("tc1", "read_file", strings.Repeat("x", 2800)), // ~700 tokens, ratio ~0.7 -> L2
		userMsg("u2", "more"),
	}

	cs := engine.CompressionState{}
	out1, cs1, res1, err := m.Compress(context.Background(), messages, cs, 0)
	if err != nil {
		t.Fatalf("Compress() error = %v", err)
	}
	if !res1.Changed {
		t.Fatalf("expected first Compress() to change state")
	}

	out2, cs2, res2, err := m.Compress(context.Background(), out1, cs1, 0)
	if err != nil {
		t.Fatalf("Compress() (second) error = %v", err)
	}
	if res2.Changed {
		t.Errorf("second Compress() at same ratio reported Changed, want no-op")
	}
	if len(out2) != len(out1) {
		t.Errorf("second Compress() mutated messages, want unchanged")
	}
	if cs2.Level != cs1.Level {
		t.Errorf("Level drifted across idempotent call: %q -> %q", cs1.Level, cs2.Level)
	}
}

func TestManagerSummarizeFallbackPreservesUserIntent(t *testing.T) {
	m := NewManager(Settings{ContextLimit: 100, KeepRecentTurns: 1}, nil)
	messages := []engine.Message{
		userMsg("u1", "build the login page"),
		assistantMsg("a1", "working on it", nil),
		userMsg("u2", "also add tests"),
	}

	out, summary, err := m.summarize(context.Background(), messages, m.Settings)
	if err != nil {
		t.Fatalf("summarize() error = %v", err)
	}
	if summary == nil {
		t.Fatalf("summarize() summary = nil")
	}
	if !strings.Contains(summary.Objective, "build the login page") {
		t.Errorf("summary.Objective = %q, want it to retain the user's intent", summary.Objective)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (synthesized summary + kept recent turn)", len(out))
	}
}
