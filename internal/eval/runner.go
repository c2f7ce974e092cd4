package eval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aegisline/coreengine/internal/agent"
	ctxmgr "github.com/aegisline/coreengine/internal/context"
	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/rules"
	"github.com/aegisline/coreengine/internal/tools"
	"github.com/aegisline/coreengine/internal/workspace"

	assemblerpkg "github.com/aegisline/coreengine/internal/assembler"
)

// Runner drives one TestCase through a real Agent Loop (C4) in a
// disposable sandbox workspace, then checks the result against the
// case's assertions. Grounded on the teacher's eval.Runner, rewritten
// against the Agent Loop / Message Assembler / Workspace Gateway
// architecture in place of the deleted agent.Controller/ChatRequestInput
// API the teacher's runner drove directly.
type Runner struct {
	config *Config
}

func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{MaxTurns: 10, MaxTokens: 4000}
	}
	return &Runner{config: cfg}
}

// Run executes a single test case to completion and verifies its
// assertions against the resulting sandbox filesystem.
func (r *Runner) Run(ctx context.Context, tc *TestCase) (*Result, error) {
	startTime := time.Now()
	result := &Result{TestCaseID: tc.ID, Logs: []string{}, Errors: []string{}}

	tempDir, err := os.MkdirTemp("", "coreengine-eval-"+tc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox: %w", err)
	}
	defer os.RemoveAll(tempDir)
	result.Logs = append(result.Logs, fmt.Sprintf("sandbox created: %s", tempDir))

	if err := writeInitialState(tempDir, tc.InitialState); err != nil {
		return nil, err
	}

	model := r.config.Model
	maxTokens := r.config.MaxTokens
	if tc.Config != nil {
		if tc.Config.Model != "" {
			model = tc.Config.Model
		}
		if tc.Config.MaxTokens > 0 {
			maxTokens = tc.Config.MaxTokens
		}
	}

	provider, err := agent.NewAnthropicProvider(agent.AnthropicConfig{
		APIKey: os.Getenv("ANTHROPIC_API_KEY"),
		Model:  model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build provider: %w", err)
	}

	gw := workspace.New(tempDir)
	registry := tools.NewRegistry()
	workspace.RegisterTools(registry, gw)

	// Evals run unattended: edit and terminal tools auto-execute so a
	// scenario does not stall at awaiting_approval waiting on a human that
	// isn't there. Dangerous tools, and mcp tools (no MCP policy is
	// passed), still stop for approval.
	dispatcher := tools.NewDispatcher(registry, tools.AutoApproveSettings{AutoAll: true}, nil)

	cm := ctxmgr.NewManager(ctxmgr.DefaultSettings(100_000), nil)
	asm := assemblerpkg.New(tempDir, rules.NewManager(tempDir))

	store := engine.NewStore(gw)
	loop := agent.NewLoop(store, provider, dispatcher, registry, cm, nil, asm, agent.Settings{
		MaxToolLoops:         r.config.MaxTurns,
		MaxContextTokens:     100_000,
		OutputTokensEstimate: maxTokens,
		Model:                model,
	})

	threadID := store.CreateThread()
	status, runErr := loop.Submit(ctx, threadID, tc.Prompt, nil)
	if runErr != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("chat error: %v", runErr))
	}
	if status == agent.StatusAwaitingApproval {
		result.Errors = append(result.Errors, "scenario stalled awaiting approval; no human available in eval mode")
	}

	thread, ok := store.Thread(threadID)
	if !ok {
		return nil, fmt.Errorf("thread %q vanished after submit", threadID)
	}
	for _, msg := range thread.Messages {
		if msg.Kind == engine.KindTool && msg.Tool != nil {
			result.Logs = append(result.Logs, fmt.Sprintf("tool called: %s", msg.Tool.Name))
			result.Turns++
			if msg.Tool.Type == engine.ToolError && tc.Expected.ErrorCount == 0 {
				result.Errors = append(result.Errors, fmt.Sprintf("tool %s errored: %s", msg.Tool.Name, msg.Tool.Content))
			}
		}
	}

	if len(result.Errors) == 0 {
		v := &Verifier{workspace: tempDir}
		if errs := v.Verify(tc.Expected); len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
		}
	}
	if len(tc.Expected.Tools) > 0 {
		result.Errors = append(result.Errors, verifyToolsCalled(tc.Expected.Tools, result.Logs)...)
	}
	if tc.Expected.ErrorCount > 0 && countToolErrors(thread.Messages) != tc.Expected.ErrorCount {
		result.Errors = append(result.Errors, fmt.Sprintf("expected %d tool errors, got %d", tc.Expected.ErrorCount, countToolErrors(thread.Messages)))
	}

	result.Success = len(result.Errors) == 0
	result.Duration = time.Since(startTime)
	return result, nil
}

func writeInitialState(root string, state State) error {
	for relPath, content := range state.Files {
		abs := filepath.Join(root, relPath)
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write file %s: %w", relPath, err)
		}
	}
	return nil
}

func countToolErrors(messages []engine.Message) int {
	n := 0
	for _, msg := range messages {
		if msg.Kind == engine.KindTool && msg.Tool != nil && msg.Tool.Type == engine.ToolError {
			n++
		}
	}
	return n
}

func verifyToolsCalled(expected []string, logs []string) []string {
	called := make(map[string]bool, len(logs))
	for _, l := range logs {
		for _, name := range expected {
			if l == "tool called: "+name {
				called[name] = true
			}
		}
	}
	var errs []string
	for _, name := range expected {
		if !called[name] {
			errs = append(errs, fmt.Sprintf("expected tool %q to be called, but it was not", name))
		}
	}
	return errs
}
