package context

import (
	"fmt"

	"github.com/aegisline/coreengine/internal/engine"
)

// compressOldToolCalls implements spec.md §4.3's L2: on top of L1,
// rewrite tool_call parts in assistant messages outside the retained
// window to {name, params_summary} and drop reasoning parts entirely.
// Grounded on the teacher's WindowManager.OptimizeToolResults (which
// replaces redundant *results* with a placeholder); generalized here to
// target the *call* side of old assistant messages instead.
func compressOldToolCalls(messages []engine.Message, s Settings) []engine.Message {
	protectFrom := keepFromIndex(messages, s.KeepRecentTurns)
	out := append([]engine.Message(nil), messages...)

	for i := 0; i < protectFrom; i++ {
		m := &out[i]
		if m.Kind != engine.KindAssistant || m.Assistant.CompactedAt != nil {
			continue
		}

		a := m.Assistant
		changed := false
		newParts := make([]engine.AssistantPart, 0, len(a.Parts))
		for _, p := range a.Parts {
			switch p.Type {
			case engine.PartReasoning:
				changed = true
				continue
			case engine.PartToolCall:
				if p.ToolCall == nil {
					newParts = append(newParts, p)
					continue
				}
				tc := *p.ToolCall
				tc.Arguments = []byte(`{"params_summary":"` + summarizeParams(p.ToolCall.Arguments) + `"}`)
				newParts = append(newParts, engine.AssistantPart{Type: engine.PartToolCall, ToolCall: &tc})
				changed = true
			default:
				newParts = append(newParts, p)
			}
		}

		if changed {
			a.Parts = newParts
			a.CompactedAt = nowMarker()
		}
	}
	return out
}

// summarizeParams collapses a tool call's raw arguments into a short
// preview string safe for embedding in a JSON string literal.
func summarizeParams(raw []byte) string {
	s := string(raw)
	const max = 80
	if len(s) > max {
		s = s[:max] + "..."
	}
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x20 {
			out = append(out, fmt.Sprintf("\\u%04x", r)...)
			continue
		}
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, string(r)...)
	}
	return string(out)
}
