// Package assembler implements the Message Assembler (C2): the
// component that turns a Thread plus the workspace's standing context
// (rules, active mode, git state, applicable skills, long-term memory)
// into the system prompt and message list one provider turn sends.
//
// Grounded on the teacher's internal/prompts package (already a pure
// string-builder with no seam for per-turn dynamic state) plus the
// teacher's controller.go, which inlined every one of these concerns
// directly into its Chat method. Here they're composed behind the
// internal/agent.Assembler interface so the Agent Loop never imports
// internal/prompts, internal/rules, internal/modes, internal/git, or
// internal/skills directly.
package assembler

import (
	"context"
	"fmt"
	"strings"

	ctxtrack "github.com/aegisline/coreengine/internal/context"
	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/git"
	"github.com/aegisline/coreengine/internal/modes"
	"github.com/aegisline/coreengine/internal/prompts"
	"github.com/aegisline/coreengine/internal/skills"
)

// Assembler composes the standing context managers the teacher's
// controller.go reached for inline. Every field but CWD is optional: a
// nil manager simply contributes nothing to the assembled prompt,
// mirroring how each manager already degrades gracefully on its own
// (rules.Manager.GetRules returns "" with no rules dir, git.Manager
// commands no-op outside a repo, ...).
type Assembler struct {
	CWD string

	Rules      RulesProvider
	Modes      *modes.Manager
	Git        *git.Manager
	Skills     *skills.Manager
	Memory     *MemoryManager
	Injections *InjectionProcessor

	// Files, when set (normally internal/workspace.Gateway.Files), feeds
	// skills.Manager.FindApplicableSkills's file-path triggers with the
	// paths tool calls have actually touched this session.
	Files *ctxtrack.FileTracker
}

// RulesProvider is the subset of internal/rules.Manager the Assembler
// needs, kept as an interface so tests can stub project rules without
// touching a real .aegis/rules directory.
type RulesProvider interface {
	GetRules() string
}

// New builds an Assembler wired to the given workspace root. Callers
// assign the optional fields (Modes, Git, Skills, ...) themselves —
// New only fills in the two relocated, always-available pieces
// (Memory, Injections) plus the rules loader.
func New(cwd string, rules RulesProvider) *Assembler {
	return &Assembler{
		CWD:        cwd,
		Rules:      rules,
		Memory:     NewMemoryManager(cwd),
		Injections: NewInjectionProcessor(cwd),
	}
}

// Assemble implements internal/agent.Assembler. It builds the system
// prompt from the static prompt boilerplate plus dynamic project rules,
// the active mode's restrictions, git status/diff, long-term memory,
// and any skills the latest user message or active files trigger; then
// expands @file/!{cmd} injections in the latest user message for the
// returned copy of the thread's messages (the stored thread is left
// untouched — expansion is a per-turn presentation concern, not a
// durable edit).
func (a *Assembler) Assemble(ctx context.Context, thread engine.Thread) (string, []engine.Message, error) {
	system := a.buildSystemPrompt(thread)
	messages := a.expandLatestUserMessage(thread.Messages)
	return system, messages, nil
}

func (a *Assembler) buildSystemPrompt(thread engine.Thread) string {
	var sb strings.Builder
	sb.WriteString(prompts.BuildSystemPrompt(a.CWD))

	if a.Rules != nil {
		if r := a.Rules.GetRules(); r != "" {
			sb.WriteString(r)
		}
	}

	if a.Modes != nil {
		mode := a.Modes.GetActiveMode()
		fmt.Fprintf(&sb, "\n\n### Active Mode: %s\n%s\n", mode.Name, mode.RoleDefinition)
		if mode.CustomInstructions != "" {
			sb.WriteString(mode.CustomInstructions)
			sb.WriteString("\n")
		}
	}

	if a.Git != nil && a.Git.IsRepo() {
		if status, err := a.Git.Status(); err == nil && status != "" {
			fmt.Fprintf(&sb, "\n\n### Git Status\n```\n%s\n```\n", status)
		}
	}

	if a.Skills != nil {
		var files []string
		if a.Files != nil {
			files = a.Files.GetFiles()
		}
		for _, skill := range a.Skills.FindApplicableSkills(latestUserPrompt(thread.Messages), files) {
			fmt.Fprintf(&sb, "\n\n### Skill: %s (%s)\n%s\n", skill.Name, skill.Enforcement, skill.Content)
		}
	}

	if a.Memory != nil {
		sb.WriteString(a.Memory.GetSystemPromptPart())
	}

	return sb.String()
}

// latestUserPrompt returns the most recent user message's text, the
// input skills.Manager.FindApplicableSkills's keyword/intent matching
// needs.
func latestUserPrompt(messages []engine.Message) string {
	var prompt string
	for _, m := range messages {
		if m.Kind == engine.KindUser && m.User != nil {
			prompt = m.User.Text
		}
	}
	return prompt
}

// expandLatestUserMessage returns a copy of messages with @file/!{cmd}
// references in the most recent user message expanded, relocated logic
// from the teacher's internal/agent InjectionProcessor call site
// (controller.go used to call Process directly on the incoming prompt
// before ever constructing a Message).
func (a *Assembler) expandLatestUserMessage(messages []engine.Message) []engine.Message {
	if a.Injections == nil {
		return messages
	}
	lastUser := -1
	for i, m := range messages {
		if m.Kind == engine.KindUser && m.User != nil {
			lastUser = i
		}
	}
	if lastUser == -1 {
		return messages
	}

	expanded, _ := a.Injections.Process(messages[lastUser].User.Text)
	if expanded == messages[lastUser].User.Text {
		return messages
	}

	out := make([]engine.Message, len(messages))
	copy(out, messages)
	userCopy := *out[lastUser].User
	userCopy.Text = expanded
	out[lastUser].User = &userCopy
	return out
}
