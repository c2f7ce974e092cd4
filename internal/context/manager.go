package context

import (
	"context"
	"time"

	"github.com/aegisline/coreengine/internal/engine"
)

// Level is one of the five compression levels spec.md §4.3 defines.
type Level int

const (
	L0None Level = iota
	L1Prune
	L2CompressOld
	L3Summarize
	L4Handoff
)

func (l Level) String() string {
	switch l {
	case L0None:
		return "L0"
	case L1Prune:
		return "L1"
	case L2CompressOld:
		return "L2"
	case L3Summarize:
		return "L3"
	case L4Handoff:
		return "L4"
	default:
		return "L0"
	}
}

func parseLevel(s string) Level {
	switch s {
	case "L1":
		return L1Prune
	case "L2":
		return L2CompressOld
	case "L3":
		return L3Summarize
	case "L4":
		return L4Handoff
	default:
		return L0None
	}
}

// SelectLevel implements spec.md §4.3's level-selection table over the
// ratio input_tokens/context_limit.
func SelectLevel(ratio float64) Level {
	switch {
	case ratio < 0.50:
		return L0None
	case ratio < 0.70:
		return L1Prune
	case ratio < 0.85:
		return L2CompressOld
	case ratio < 0.95:
		return L3Summarize
	default:
		return L4Handoff
	}
}

// Settings configures the compression ladder's thresholds (spec.md
// §4.3, with the spec's stated defaults).
type Settings struct {
	ContextLimit    int
	KeepRecentTurns int
	PruneMinimum    int
	PruneProtect    int
}

// DefaultSettings returns spec.md §4.3's defaults for a given context
// window size.
func DefaultSettings(contextLimit int) Settings {
	return Settings{
		ContextLimit:    contextLimit,
		KeepRecentTurns: 5,
		PruneMinimum:    20_000,
		PruneProtect:    40_000,
	}
}

// Summarizer is the LLM hook L3 uses to produce a StructuredSummary, and
// L4 to produce prose for a HandoffDocument. Grounded on the teacher's
// context.CondenseProvider and handoff.GenerateFunc, unified into one
// interface since both just need "summarize this text with this prompt".
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Result reports what a Compress call did, for logging/diagnostics.
type Result struct {
	Level        Level
	TokensBefore int
	TokensAfter  int
	Changed      bool
}

// Manager runs the 4-level compression ladder over a message slice.
// Grounded on the teacher's WindowManager (ManageContext entry point,
// PruneMessages, EvictFileContent, OptimizeToolResults) and
// CondenseManager (Condense, buildCondensePrompt), generalized from the
// teacher's 2-level condense/prune scheme into the spec's 4 discrete
// levels plus a handoff step the teacher doesn't have.
type Manager struct {
	Settings   Settings
	Summarizer Summarizer

	// EnvTracker, when set, seeds HandoffDocument.EnvironmentHints on L4
	// handoff (spec.md §4.3), grounded on the teacher's
	// EnvironmentTracker.GetContext.
	EnvTracker Tracker
}

// NewManager builds a Manager. summarizer may be nil, in which case L3
// always degrades to the textual-concatenation fallback (spec.md §4.3
// "Failure semantics").
func NewManager(settings Settings, summarizer Summarizer) *Manager {
	return &Manager{Settings: settings, Summarizer: summarizer}
}

// Compress runs the compression ladder once against messages, given the
// thread's current compression state and an estimate of the pending
// output size. It returns the (possibly unchanged) message list, the
// updated compression state, and a Result describing what happened.
//
// Idempotence (spec.md §4.3): if the level selected by the current
// token ratio is not higher than cs.Level, this is a no-op returning
// Changed=false.
func (m *Manager) Compress(ctx context.Context, messages []engine.Message, cs engine.CompressionState, outputTokensEstimate int) ([]engine.Message, engine.CompressionState, *Result, error) {
	inputTokens := EstimateMessages(messages)
	ratio := float64(inputTokens) / float64(m.Settings.ContextLimit)
	target := SelectLevel(ratio)
	current := parseLevel(cs.Level)

	result := &Result{Level: target, TokensBefore: inputTokens, TokensAfter: inputTokens}

	if target <= current {
		return messages, cs, result, nil
	}

	out := messages
	var err error

	if target >= L1Prune {
		out = pruneToolResults(out, m.Settings)
	}
	if target >= L2CompressOld {
		out = compressOldToolCalls(out, m.Settings)
	}
	if target >= L3Summarize {
		out, cs.ContextSummary, err = m.summarize(ctx, out, m.Settings)
		if err != nil {
			return messages, cs, result, err
		}
	}
	if target >= L4Handoff {
		var handoff *engine.HandoffDocument
		handoff, err = m.buildHandoff(ctx, out, cs)
		if err != nil {
			return messages, cs, result, err
		}
		cs.HandoffDocument = handoff
		cs.HandoffRequired = true
	}

	cs.Level = target.String()
	cs.Phase = engine.CompressionDone
	result.TokensAfter = EstimateMessages(out)
	result.Changed = result.TokensAfter != result.TokensBefore || target != current
	return out, cs, result, nil
}

// ResetTurn clears the monotonic level tracking, the phase and the
// handoff flag (called by the Agent Loop at the end of every compression
// pass, before each provider request).
func ResetTurn(cs engine.CompressionState) engine.CompressionState {
	cs.Level = ""
	cs.Phase = engine.CompressionIdle
	cs.HandoffRequired = false
	return cs
}

func isProtectedTool(name string) bool {
	return name == "ask_user" || name == "update_plan"
}

func nowMarker() *time.Time {
	t := time.Now()
	return &t
}
