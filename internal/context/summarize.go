package context

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aegisline/coreengine/internal/engine"
)

// errNoSummarizer triggers the best-effort textual-concatenation
// fallback (spec.md §4.3 "Failure semantics").
var errNoSummarizer = errors.New("context: no summarizer configured")

// summarize implements spec.md §4.3's L3: summarize everything before
// the retained window into a single synthesized assistant message
// carrying a StructuredSummary, preserving pending user intent even on
// failure. Grounded on the teacher's CondenseManager.Condense
// (pinned-first-message + LLM call + replace-with-summary-message
// shape), generalized from a prose summary to the spec's structured
// JSON shape.
func (m *Manager) summarize(ctx context.Context, messages []engine.Message, s Settings) ([]engine.Message, *engine.StructuredSummary, error) {
	protectFrom := keepFromIndex(messages, s.KeepRecentTurns)
	if protectFrom == 0 {
		return messages, nil, nil
	}

	oldSpan := messages[:protectFrom]
	recent := messages[protectFrom:]

	var summary *engine.StructuredSummary
	if m.Summarizer != nil {
		text, err := m.Summarizer.Summarize(ctx, buildSummarizePrompt(oldSpan))
		if err == nil {
			summary = parseStructuredSummary(text)
		}
	}
	if summary == nil {
		// Degrade to best-effort textual concatenation of the old span,
		// so its user messages' text survives as the objective; the
		// latest turns stay verbatim in recent.
		summary = &engine.StructuredSummary{
			Objective: concatenateSpan(oldSpan),
		}
	}

	now := time.Now()
	synthesized := engine.Message{
		ID:        uuid.NewString(),
		Kind:      engine.KindAssistant,
		Timestamp: now,
		Assistant: &engine.AssistantMessage{
			Content:     renderSummary(summary),
			CompactedAt: &now,
		},
	}

	out := make([]engine.Message, 0, len(recent)+1)
	out = append(out, synthesized)
	out = append(out, recent...)
	return out, summary, nil
}

func buildSummarizePrompt(span []engine.Message) string {
	var sb strings.Builder
	sb.WriteString(`Summarize the following conversation span as JSON matching exactly:
{"objective":string,"completed_steps":[string],"pending_steps":[string],"file_changes":[{"action":string,"path":string,"summary":string}],"decisions":[string],"open_questions":[string]}
Output ONLY the JSON object, no surrounding text.

=== Conversation span ===
`)
	for _, msg := range span {
		switch msg.Kind {
		case engine.KindUser:
			sb.WriteString("[User]: ")
			sb.WriteString(truncate(msg.User.Text, 1000))
			sb.WriteString("\n")
		case engine.KindAssistant:
			sb.WriteString("[Agent]: ")
			sb.WriteString(truncate(msg.Assistant.Content, 1000))
			for _, p := range msg.Assistant.Parts {
				if p.Type == engine.PartToolCall && p.ToolCall != nil {
					sb.WriteString("\n  - used tool: " + p.ToolCall.Name)
				}
			}
			sb.WriteString("\n")
		case engine.KindTool:
			sb.WriteString("[Tool " + msg.Tool.Name + "]: " + truncate(msg.Tool.Content, 300) + "\n")
		}
	}
	sb.WriteString("=== End of span ===\n")
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... [truncated]"
}

func parseStructuredSummary(text string) *engine.StructuredSummary {
	var s engine.StructuredSummary
	trimmed := strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil && s.Objective != "" {
		return &s
	}
	return nil
}

func concatenateSpan(span []engine.Message) string {
	var sb strings.Builder
	for _, msg := range span {
		switch msg.Kind {
		case engine.KindUser:
			sb.WriteString(msg.User.Text + " ")
		case engine.KindAssistant:
			sb.WriteString(msg.Assistant.Content + " ")
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "[No summarizable content]"
	}
	return out
}

func renderSummary(s *engine.StructuredSummary) string {
	var sb strings.Builder
	sb.WriteString("[Previous conversation summary]\n")
	sb.WriteString("Objective: " + s.Objective + "\n")
	if len(s.CompletedSteps) > 0 {
		sb.WriteString("Completed: " + strings.Join(s.CompletedSteps, "; ") + "\n")
	}
	if len(s.PendingSteps) > 0 {
		sb.WriteString("Pending: " + strings.Join(s.PendingSteps, "; ") + "\n")
	}
	if len(s.Decisions) > 0 {
		sb.WriteString("Decisions: " + strings.Join(s.Decisions, "; ") + "\n")
	}
	return sb.String()
}
