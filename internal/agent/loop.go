// Package agent implements the Agent Loop (C4): the per-turn state
// machine that drives the LLM provider, the Streaming Buffer, the
// Context Manager, and the Tool Dispatcher to completion.
//
// Grounded on the teacher's internal/agent/controller.go (Controller.Chat
// request/stream/tool-dispatch cycle) and loop_detector.go, generalized
// from the teacher's single hardcoded provider+tool loop into spec.md
// §4.4's explicit state machine (idle, preparing, compacting, requesting,
// streaming, finalize_text, dispatching, awaiting_approval, executing,
// recording_rejection, post_fix_check, interrupted, cancelling).
package agent

import (
	"context"
	"sync"
	"time"

	ctxmgr "github.com/aegisline/coreengine/internal/context"
	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/engineerr"
	"github.com/aegisline/coreengine/internal/streambuf"
	"github.com/aegisline/coreengine/internal/tools"
)

// Status is the state the loop halted in after Submit or Resolve returns
// control to the caller.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusInterrupted      Status = "interrupted"
	StatusCancelled        Status = "cancelling"
)

// Assembler builds the provider-facing system prompt and message list
// for one turn. internal/assembler's Assembler (C2) fills this seam in
// production; Loop only depends on the interface so it can be
// developed independently.
type Assembler interface {
	Assemble(ctx context.Context, thread engine.Thread) (system string, messages []engine.Message, err error)
}

// QCChecker runs diagnostics after a file-mutating tool batch, backing
// the post_fix_check state (spec.md §4.4 "(expansion) Auto-fix").
// Grounded on the teacher's internal/qc.Manager, which already runs
// exactly one diagnostics pass with no recursive re-check — the Open
// Question about nested fix iterations is resolved the same way here
// (DESIGN.md): one fix attempt per turn, never chained.
type QCChecker interface {
	Check(ctx context.Context, touchedPaths []string) (diagnostics string, present bool, err error)
}

// Settings configures the loop's bounds (spec.md §6 configuration surface).
type Settings struct {
	MaxToolLoops         int
	MaxContextTokens     int
	OutputTokensEstimate int
	EnableAutoFix        bool
	Model                string
	Parameters           Parameters
}

// DefaultSettings returns spec.md §6's stated defaults.
func DefaultSettings() Settings {
	return Settings{
		MaxToolLoops:         20,
		MaxContextTokens:     128_000,
		OutputTokensEstimate: 4096,
		EnableAutoFix:        true,
		Parameters:           Parameters{Temperature: 1, MaxTokens: 4096},
	}
}

// turnState is the loop's resumable bookkeeping for one in-flight turn,
// held across an awaiting_approval halt until Resolve is called for
// every pending invocation.
type turnState struct {
	iteration   int
	postFixUsed bool

	pending  []tools.Invocation
	resolved map[string]bool // tool_call_id -> approved

	cancel context.CancelFunc
}

// Loop wires the Agent Loop's collaborators together (spec.md §4.4).
type Loop struct {
	Store      *engine.Store
	Provider   Provider
	Dispatcher *tools.Dispatcher
	Registry   *tools.Registry
	Context    *ctxmgr.Manager
	QC         QCChecker
	Assembler  Assembler
	Settings   Settings

	coalescer *streambuf.Coalescer

	mu       sync.Mutex
	turns    map[string]*turnState
	detector map[string]*LoopDetector
}

// NewLoop builds a Loop. The returned Loop owns and starts a
// streambuf.Coalescer grounded on spec.md §4.7's ~16ms tick.
func NewLoop(store *engine.Store, provider Provider, dispatcher *tools.Dispatcher, registry *tools.Registry, cm *ctxmgr.Manager, qc QCChecker, assembler Assembler, settings Settings) *Loop {
	l := &Loop{
		Store:      store,
		Provider:   provider,
		Dispatcher: dispatcher,
		Registry:   registry,
		Context:    cm,
		QC:         qc,
		Assembler:  assembler,
		Settings:   settings,
		turns:      make(map[string]*turnState),
		detector:   make(map[string]*LoopDetector),
	}
	l.coalescer = streambuf.New(streambuf.FlusherFunc(func(threadID, messageID, batched string) {
		_ = l.Store.AppendToAssistant(threadID, messageID, batched)
	}), 16*time.Millisecond)
	l.coalescer.Start()
	return l
}

func (l *Loop) loopDetector(threadID string) *LoopDetector {
	l.mu.Lock()
	defer l.mu.Unlock()
	d, ok := l.detector[threadID]
	if !ok {
		d = NewLoopDetector(DefaultLoopDetectorSettings())
		l.detector[threadID] = d
	}
	return d
}

// Submit starts a new turn: idle -> preparing -> ... (spec.md §4.4).
func (l *Loop) Submit(ctx context.Context, threadID, text string, contextItems []engine.ContextItem) (Status, error) {
	if _, err := l.Store.AddUserMessage(threadID, text, contextItems); err != nil {
		return StatusIdle, err
	}

	turnCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.turns[threadID] = &turnState{cancel: cancel}
	l.mu.Unlock()

	return l.advance(turnCtx, threadID)
}

// Cancel aborts the in-flight turn for threadID (spec.md §4.4 "any
// state -> cancel -> cancelling -> idle"). It does not undo in-flight
// disk writes from a tool already running; those surface as pending
// changes, matching the teacher's Controller.abortCancel semantics of
// stopping the stream without rewinding side effects already applied.
func (l *Loop) Cancel(threadID string) {
	l.mu.Lock()
	ts, ok := l.turns[threadID]
	l.mu.Unlock()
	if !ok {
		return
	}
	ts.cancel()
	_ = l.Store.SetStreamState(threadID, engine.StreamState{Phase: engine.PhaseIdle})
}

// Resolve applies a human approval decision to one pending tool call
// from an awaiting_approval halt (spec.md §4.4 approve/reject edges).
// Once every pending call in the batch has been resolved, the turn
// resumes: approved calls execute, rejected calls record a
// recording_rejection tool result, then the loop returns to requesting.
func (l *Loop) Resolve(ctx context.Context, threadID, toolCallID string, approve bool) (Status, error) {
	l.mu.Lock()
	ts, ok := l.turns[threadID]
	l.mu.Unlock()
	if !ok {
		return StatusIdle, engineerr.New(engineerr.State, "no turn awaiting approval for this thread")
	}

	if ts.resolved == nil {
		ts.resolved = make(map[string]bool)
	}
	ts.resolved[toolCallID] = approve

	for _, inv := range ts.pending {
		if _, done := ts.resolved[inv.Call.ID]; !done {
			return StatusAwaitingApproval, nil // still waiting on siblings
		}
	}

	var toExecute []tools.Invocation
	for _, inv := range ts.pending {
		if ts.resolved[inv.Call.ID] {
			toExecute = append(toExecute, inv)
			_, _ = l.Store.ResolvePendingChange(threadID, inv.Call.ID, engine.ChangeAccepted)
		} else {
			_, _ = l.Store.ResolvePendingChange(threadID, inv.Call.ID, engine.ChangeRejected)
			_, _ = l.Store.AddToolResult(threadID, inv.Call.ID, inv.Call.Name, "rejected by user", engine.ToolRejected, nil, false, nil)
		}
	}
	ts.pending = nil
	ts.resolved = nil

	if len(toExecute) > 0 {
		if status, err := l.executeAndRecord(ctx, threadID, ts, toExecute); status != "" {
			return status, err
		}
	}

	return l.advance(ctx, threadID)
}

// advance runs requesting/streaming/dispatching iterations until the
// turn reaches idle, awaiting_approval, or interrupted.
func (l *Loop) advance(ctx context.Context, threadID string) (Status, error) {
	l.mu.Lock()
	ts := l.turns[threadID]
	l.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			_ = l.Store.SetStreamState(threadID, engine.StreamState{Phase: engine.PhaseIdle})
			return StatusCancelled, nil
		default:
		}

		ts.iteration++
		if ts.iteration > l.Settings.MaxToolLoops {
			return l.interrupt(threadID, engineerr.New(engineerr.BudgetExceeded, "max_tool_loops reached"))
		}

		thread, ok := l.Store.Thread(threadID)
		if !ok {
			return StatusIdle, engine.ErrUnknownThread
		}

		messages, cs, err := l.prepare(ctx, thread)
		if err != nil {
			return StatusIdle, err
		}
		thread.Messages = messages
		if err := l.Store.SetCompressionState(threadID, cs); err != nil {
			return StatusIdle, err
		}

		system := ""
		asmMessages := thread.Messages
		if l.Assembler != nil {
			system, asmMessages, err = l.Assembler.Assemble(ctx, thread)
			if err != nil {
				return StatusIdle, err
			}
		}

		assistantMsg, err := l.Store.AddAssistantMessage(threadID, "")
		if err != nil {
			return StatusIdle, err
		}

		toolCalls, streamErr := l.stream(ctx, threadID, assistantMsg.ID, ChatRequest{
			System:     system,
			Messages:   asmMessages,
			Tools:      l.Registry.Descriptors(),
			Model:      l.Settings.Model,
			Parameters: l.Settings.Parameters,
		})
		if streamErr != nil {
			_ = l.Store.FinalizeAssistant(threadID, assistantMsg.ID)
			return StatusIdle, streamErr
		}

		if len(toolCalls) == 0 {
			if err := l.Store.FinalizeAssistant(threadID, assistantMsg.ID); err != nil {
				return StatusIdle, err
			}
			delete(l.turns, threadID)
			return StatusIdle, nil
		}

		if err := l.Store.FinalizeAssistant(threadID, assistantMsg.ID); err != nil {
			return StatusIdle, err
		}

		invocations := l.buildInvocations(toolCalls)
		var ready, pending []tools.Invocation
		for _, inv := range invocations {
			out := l.Dispatcher.Gate(inv)
			if out.Pending {
				pending = append(pending, inv)
				continue
			}
			if out.Err != nil || out.Result.Type == engine.ToolInvalidParams || out.Result.Type == engine.ToolRejected {
				res := out.Result
				if out.Err != nil {
					res = tools.Result{Content: engineerr.Translate(out.Err), Type: engine.ToolError}
				}
				_, _ = l.Store.AddToolResult(threadID, inv.Call.ID, inv.Call.Name, res.Content, res.Type, nil, false, nil)
				continue
			}
			ready = append(ready, out.Invocation)
		}

		if len(pending) > 0 {
			if err := l.Store.SetStreamState(threadID, engine.StreamState{Phase: engine.PhaseToolPending}); err != nil {
				return StatusIdle, err
			}
			for _, inv := range pending {
				_ = l.Store.RegisterPendingChange(threadID, engine.PendingChange{
					ID:         inv.Call.ID,
					ToolCallID: inv.Call.ID,
					ToolName:   inv.Call.Name,
					Status:     engine.ChangePending,
				})
			}
			ts.pending = pending
			return StatusAwaitingApproval, nil
		}

		if len(ready) > 0 {
			if status, err := l.executeAndRecord(ctx, threadID, ts, ready); status != "" {
				return status, err
			}
		}
		// loop back to requesting
	}
}

// prepare implements preparing -> (compacting) -> preparing: it
// estimates the turn's token budget and runs the compression ladder
// until the ratio is back under budget or the ladder stops changing
// anything (spec.md §4.3/§4.4).
func (l *Loop) prepare(ctx context.Context, thread engine.Thread) ([]engine.Message, engine.CompressionState, error) {
	if l.Context == nil {
		return thread.Messages, thread.CompressionState, nil
	}
	messages := thread.Messages
	cs := thread.CompressionState
	for {
		newMessages, newCS, result, err := l.Context.Compress(ctx, messages, cs, l.Settings.OutputTokensEstimate)
		if err != nil {
			return nil, engine.CompressionState{}, err
		}
		messages, cs = newMessages, newCS
		if result == nil || !result.Changed {
			return messages, ctxmgr.ResetTurn(cs), nil
		}
	}
}

// stream drives streaming: consumes provider events, appends text and
// reasoning to the assistant message via the Coalescer, and assembles
// any tool_call parts in order (spec.md §4.4 text-before-tool ordering).
// It returns the tool calls the model requested, in call order.
func (l *Loop) stream(ctx context.Context, threadID, messageID string, req ChatRequest) ([]engine.ToolCall, error) {
	events, err := l.Provider.StreamChat(ctx, req)
	if err != nil {
		return nil, err
	}

	var toolCalls []engine.ToolCall
	argBuf := make(map[string][]byte)
	textFinalized := false

	for ev := range events {
		switch ev.Kind {
		case EventTextDelta:
			l.coalescer.Push(threadID, messageID, ev.Content)

		case EventReasoningDelta:
			l.coalescer.FlushNow(threadID, messageID)
			_ = l.Store.AppendReasoningToAssistant(threadID, messageID, ev.Content)

		case EventToolCallFragment:
			if ev.ToolName != "" {
				// first fragment of a new tool call: flush pending text so
				// the model's reasoning/answer appears before the call.
				l.coalescer.FlushNow(threadID, messageID)
				if !textFinalized {
					_ = l.Store.FinalizeTextBeforeToolCall(threadID, messageID)
					textFinalized = true
				}
				_ = l.Store.AddToolCallPart(threadID, messageID, engine.ToolCall{
					ID:     ev.ToolCallID,
					Name:   ev.ToolName,
					Status: engine.ToolCallAssembling,
				})
				toolCalls = append(toolCalls, engine.ToolCall{ID: ev.ToolCallID, Name: ev.ToolName})
			}
			if ev.ArgumentsChunk != "" {
				argBuf[ev.ToolCallID] = append(argBuf[ev.ToolCallID], ev.ArgumentsChunk...)
				args := append([]byte(nil), argBuf[ev.ToolCallID]...)
				_ = l.Store.UpdateToolCall(threadID, messageID, ev.ToolCallID, engine.ToolCallPatch{Arguments: args})
			}

		case EventToolCallComplete:
			complete := engine.ToolCallComplete
			args := append([]byte(nil), argBuf[ev.ToolCallID]...)
			_ = l.Store.UpdateToolCall(threadID, messageID, ev.ToolCallID, engine.ToolCallPatch{Status: &complete, Arguments: args})
			for i, tc := range toolCalls {
				if tc.ID == ev.ToolCallID {
					toolCalls[i].Arguments = args
				}
			}

		case EventUsage:
			// surfaced via the thread event stream by callers that need it;
			// the loop itself has no use for raw usage counts.

		case EventDone:
			l.coalescer.FlushNow(threadID, messageID)
			return toolCalls, nil

		case EventError:
			l.coalescer.FlushNow(threadID, messageID)
			return toolCalls, engineerr.WrapRetryable(ev.Message, engineerr.ErrProvider, ev.Retryable)
		}
	}

	return toolCalls, nil
}

func (l *Loop) buildInvocations(calls []engine.ToolCall) []tools.Invocation {
	out := make([]tools.Invocation, 0, len(calls))
	for _, c := range calls {
		desc, _ := l.Registry.Descriptor(c.Name)
		out = append(out, tools.Invocation{
			Call: tools.Call{
				ID:          c.ID,
				Name:        c.Name,
				Concurrency: desc.Concurrency,
				TargetPath:  targetPathFromArgs(c.Arguments),
			},
			Arguments: c.Arguments,
		})
	}
	return out
}

// executeAndRecord runs executing: dispatches ready invocations, checks
// each for a loop pattern, records tool results, and (if enabled) runs
// one post_fix_check pass. A non-empty Status return means the caller
// should return immediately with that status instead of continuing the
// requesting loop.
func (l *Loop) executeAndRecord(ctx context.Context, threadID string, ts *turnState, ready []tools.Invocation) (Status, error) {
	if err := l.Store.SetStreamState(threadID, engine.StreamState{Phase: engine.PhaseToolRunning}); err != nil {
		return StatusIdle, err
	}

	detector := l.loopDetector(threadID)
	var touchedPaths []string
	var diagnosticsPresent bool

	outcomes := l.Dispatcher.Dispatch(ctx, ready)
	for i, out := range outcomes {
		inv := ready[i]
		// only mutating tools count toward the same-target threshold
		target := ""
		if desc, ok := l.Registry.Descriptor(inv.Call.Name); ok && desc.Mutation != "" && desc.Mutation != tools.MutationNone {
			target = inv.Call.TargetPath
		}
		if err := detector.Check(inv.Call.Name, inv.Arguments, target); err != nil {
			return l.interrupt(threadID, err)
		}

		res := out.Result
		if out.Err != nil && res.Content == "" {
			res = tools.Result{Content: engineerr.Translate(out.Err), Type: engine.ToolError}
		}
		sideEffecting := len(res.TouchedPaths) > 0
		if _, err := l.Store.AddToolResult(threadID, inv.Call.ID, inv.Call.Name, res.Content, res.Type, inv.Arguments, sideEffecting, res.TouchedPaths); err != nil {
			return StatusIdle, err
		}
		if sideEffecting {
			touchedPaths = append(touchedPaths, res.TouchedPaths...)
		}
	}

	if l.Settings.EnableAutoFix && l.QC != nil && !ts.postFixUsed && len(touchedPaths) > 0 {
		ts.postFixUsed = true
		diagnostics, present, err := l.QC.Check(ctx, touchedPaths)
		diagnosticsPresent = present && err == nil && diagnostics != ""
		if diagnosticsPresent {
			_, _ = l.Store.AddToolResult(threadID, "post_fix_check", "post_fix_check", diagnostics, engine.ToolSuccess, nil, false, nil)
		}
	}

	return "", nil
}

func (l *Loop) interrupt(threadID string, cause error) (Status, error) {
	_ = l.Store.SetStreamState(threadID, engine.StreamState{Phase: engine.PhaseIdle})
	l.mu.Lock()
	delete(l.turns, threadID)
	l.mu.Unlock()
	return StatusInterrupted, cause
}

// targetPathFromArgs best-effort extracts a "path" or "file_path" field
// from raw tool arguments for the concurrency planner and loop detector.
// Grounded directly on spec.md §4.5's "best-effort path" wording; no
// pack precedent resolves a target path ahead of argument validation.
func targetPathFromArgs(raw []byte) string {
	m, errStr := tools.ParseArgs(raw)
	if errStr != "" {
		return ""
	}
	for _, key := range []string{"path", "file_path", "target_path"} {
		if v, ok := m[key].(string); ok {
			return v
		}
	}
	return ""
}
