package context

import (
	"context"
	"strings"

	"github.com/aegisline/coreengine/internal/engine"
)

// buildHandoff implements spec.md §4.3's L4: build a HandoffDocument
// and signal handoff_required, stopping the current loop. Grounded on
// the teacher's internal/context/handoff.Service.GenerateSpec (same
// "intelligent handoff" prompt shape, generalized from freeform
// Markdown to the spec's structured HandoffDocument fields) — the
// teacher's handoff package already exists for mode-switch handoffs;
// this generalizes it to also fire on context exhaustion.
func (m *Manager) buildHandoff(ctx context.Context, messages []engine.Message, cs engine.CompressionState) (*engine.HandoffDocument, error) {
	lastUserIntent := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Kind == engine.KindUser {
			lastUserIntent = messages[i].User.Text
			break
		}
	}

	var fileChanges []engine.FileChange
	if cs.ContextSummary != nil {
		fileChanges = cs.ContextSummary.FileChanges
	} else {
		fileChanges = fileChangesFromToolCalls(messages)
	}

	summaryText := ""
	if cs.ContextSummary != nil {
		summaryText = cs.ContextSummary.Objective
	}
	if summaryText == "" && m.Summarizer != nil {
		if text, err := m.Summarizer.Summarize(ctx, buildHandoffPrompt(messages)); err == nil {
			summaryText = text
		}
	}
	if summaryText == "" {
		summaryText = concatenateSpan(messages)
	}

	var environmentHints []string
	if m.EnvTracker != nil {
		if hint := m.EnvTracker.GetContext(); hint != "" {
			environmentHints = strings.Split(strings.TrimRight(hint, "\n"), "\n")
		}
	}

	return &engine.HandoffDocument{
		Summary:          summaryText,
		LastUserIntent:   lastUserIntent,
		FileChanges:      fileChanges,
		EnvironmentHints: environmentHints,
	}, nil
}

func buildHandoffPrompt(messages []engine.Message) string {
	var sb strings.Builder
	sb.WriteString(`Condense the following conversation history into a handoff summary.
The agent's context window is exhausted; a new thread will continue this work with only your summary.
Capture: what the user wants, what has been decided, what remains.

CONVERSATION HISTORY:
`)
	sb.WriteString(buildSummarizePromptBody(messages))
	sb.WriteString("\nProvide a concise prose summary:")
	return sb.String()
}

// buildSummarizePromptBody renders the conversation span without the
// JSON-shape instructions, using the same line format as
// buildSummarizePrompt.
func buildSummarizePromptBody(span []engine.Message) string {
	var sb strings.Builder
	for _, msg := range span {
		switch msg.Kind {
		case engine.KindUser:
			sb.WriteString("[User]: " + truncate(msg.User.Text, 1000) + "\n")
		case engine.KindAssistant:
			sb.WriteString("[Agent]: " + truncate(msg.Assistant.Content, 1000) + "\n")
		case engine.KindTool:
			sb.WriteString("[Tool " + msg.Tool.Name + "]: " + truncate(msg.Tool.Content, 300) + "\n")
		}
	}
	return sb.String()
}

func fileChangesFromToolCalls(messages []engine.Message) []engine.FileChange {
	var changes []engine.FileChange
	for _, msg := range messages {
		if msg.Kind != engine.KindAssistant {
			continue
		}
		for _, p := range msg.Assistant.Parts {
			if p.Type != engine.PartToolCall || p.ToolCall == nil {
				continue
			}
			switch p.ToolCall.Name {
			case "edit_file", "write_file", "create_file", "delete_file":
				changes = append(changes, engine.FileChange{
					Action:  p.ToolCall.Name,
					Summary: "see tool call " + p.ToolCall.ID,
				})
			}
		}
	}
	return changes
}
