package context

import "github.com/aegisline/coreengine/internal/engine"

// turnStartIndices returns the message indices at which a new user turn
// begins.
func turnStartIndices(messages []engine.Message) []int {
	var idx []int
	for i, m := range messages {
		if m.Kind == engine.KindUser {
			idx = append(idx, i)
		}
	}
	return idx
}

// keepFromIndex returns the index of the first message belonging to the
// last keepRecentTurns turns; everything before it is eligible for
// compression.
func keepFromIndex(messages []engine.Message, keepRecentTurns int) int {
	starts := turnStartIndices(messages)
	if len(starts) <= keepRecentTurns {
		return 0
	}
	return starts[len(starts)-keepRecentTurns]
}

// pruneToolResults implements spec.md §4.3's L1: walk tool results from
// oldest to newest, clearing content and setting compacted_at, skipping
// protected tools (ask_user, update_plan) and anything already
// compacted, never touching the last keep_recent_turns turns. Grounded
// on the teacher's WindowManager.EvictFileContent (content eviction
// keyed off a fixed recency window), generalized from "evict large
// content" to the spec's guarded reclaimable-tokens rule.
func pruneToolResults(messages []engine.Message, s Settings) []engine.Message {
	protectFrom := keepFromIndex(messages, s.KeepRecentTurns)

	reclaimable := 0
	for i := 0; i < protectFrom; i++ {
		m := messages[i]
		if m.Kind == engine.KindTool && m.Tool.CompactedAt == nil && !isProtectedTool(m.Tool.Name) {
			reclaimable += EstimateTokens(m.Tool.Content)
		}
	}
	if reclaimable < s.PruneMinimum {
		return messages
	}

	// Protect the most recent prune_protect tokens of tool output: walk
	// backward from protectFrom accumulating tool-content tokens; as long
	// as we're under the protect budget those messages stay off-limits,
	// so eligibleUpTo only advances once the budget is exceeded.
	eligibleUpTo := protectFrom
	protectedTokens := 0
	for i := protectFrom - 1; i >= 0; i-- {
		if messages[i].Kind != engine.KindTool {
			continue
		}
		protectedTokens += EstimateTokens(messages[i].Tool.Content)
		if protectedTokens > s.PruneProtect {
			eligibleUpTo = i + 1
			break
		}
	}
	if eligibleUpTo == protectFrom && protectedTokens <= s.PruneProtect {
		eligibleUpTo = 0
	}

	out := append([]engine.Message(nil), messages...)
	for i := 0; i < eligibleUpTo; i++ {
		m := &out[i]
		if m.Kind == engine.KindAssistant && m.Assistant.CompactedAt != nil {
			break
		}
		if m.Kind != engine.KindTool || m.Tool.CompactedAt != nil || isProtectedTool(m.Tool.Name) {
			continue
		}
		m.Tool.Content = "[Old tool result content cleared]"
		m.Tool.CompactedAt = nowMarker()
	}
	return out
}
