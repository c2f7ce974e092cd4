package agent

import (
	"context"
	"encoding/json"
	"testing"

	ctxmgr "github.com/aegisline/coreengine/internal/context"
	"github.com/aegisline/coreengine/internal/engine"
	"github.com/aegisline/coreengine/internal/engineerr"
	"github.com/aegisline/coreengine/internal/tools"
)

// fakeProvider replays a scripted sequence of StreamChat responses, one
// slice of events per call; the final slice repeats for any call past
// the end of the script.
type fakeProvider struct {
	calls  int
	script [][]StreamEvent
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	idx := p.calls
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	p.calls++

	ch := make(chan StreamEvent, len(p.script[idx])+1)
	for _, ev := range p.script[idx] {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

type passthroughAssembler struct{}

func (passthroughAssembler) Assemble(ctx context.Context, thread engine.Thread) (string, []engine.Message, error) {
	return "", thread.Messages, nil
}

type noopQC struct{}

func (noopQC) Check(ctx context.Context, touchedPaths []string) (string, bool, error) {
	return "", false, nil
}

func newTestLoop(t *testing.T, provider Provider, approve tools.AutoApproveSettings, settings Settings) (*Loop, *engine.Store) {
	t.Helper()
	store := engine.NewStore(nil)
	registry := tools.NewRegistry()
	registry.Register(
		tools.Descriptor{Name: "echo", Description: "echoes", ParamsSchema: json.RawMessage(`{}`), ApprovalClass: tools.ApprovalNone, Concurrency: tools.ConcurrencyParallelSafe},
		tools.HandlerFunc(func(ctx context.Context, args json.RawMessage) (tools.Result, error) {
			return tools.Result{Content: "ok", Type: engine.ToolSuccess}, nil
		}),
	)
	registry.Register(
		tools.Descriptor{Name: "edit_file", Description: "edits a file", ParamsSchema: json.RawMessage(`{}`), ApprovalClass: tools.ApprovalEdits, Mutation: tools.MutationFileWrite, Concurrency: tools.ConcurrencyTargetExclusive},
		tools.HandlerFunc(func(ctx context.Context, args json.RawMessage) (tools.Result, error) {
			return tools.Result{Content: "edited", Type: engine.ToolSuccess, TouchedPaths: []string{"a.go"}}, nil
		}),
	)

	dispatcher := tools.NewDispatcher(registry, approve, nil)
	cm := ctxmgr.NewManager(ctxmgr.DefaultSettings(128_000), nil)

	loop := NewLoop(store, provider, dispatcher, registry, cm, noopQC{}, passthroughAssembler{}, settings)
	return loop, store
}

func textEvent(s string) StreamEvent { return StreamEvent{Kind: EventTextDelta, Content: s} }
func doneEvent() StreamEvent         { return StreamEvent{Kind: EventDone} }

func toolCallEvents(id, name string) []StreamEvent {
	return []StreamEvent{
		{Kind: EventToolCallFragment, ToolCallID: id, ToolName: name, ArgumentsChunk: `{}`},
		{Kind: EventToolCallComplete, ToolCallID: id},
	}
}

func TestLoopSubmitNoToolCallsReachesIdle(t *testing.T) {
	provider := &fakeProvider{script: [][]StreamEvent{
		{textEvent("hello"), textEvent(" there"), doneEvent()},
	}}
	loop, store := newTestLoop(t, provider, tools.AutoApproveSettings{}, DefaultSettings())

	threadID := store.CreateThread()
	status, err := loop.Submit(context.Background(), threadID, "hi", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if status != StatusIdle {
		t.Fatalf("status = %v, want %v", status, StatusIdle)
	}

	thread, _ := store.Thread(threadID)
	if len(thread.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2 (user, assistant)", len(thread.Messages))
	}
	last := thread.Messages[len(thread.Messages)-1]
	if last.Kind != engine.KindAssistant || last.Assistant == nil {
		t.Fatalf("last message kind = %v, want assistant", last.Kind)
	}
	var text string
	for _, part := range last.Assistant.Parts {
		if part.Type == engine.PartText {
			text += part.Text
		}
	}
	if text != "hello there" {
		t.Errorf("assistant text = %q, want %q", text, "hello there")
	}
}

func TestLoopAutoApprovedToolCallLoopsBackToRequesting(t *testing.T) {
	var events []StreamEvent
	events = append(events, textEvent("let me check"))
	events = append(events, toolCallEvents("tc1", "echo")...)
	events = append(events, doneEvent())

	provider := &fakeProvider{script: [][]StreamEvent{
		events,
		{textEvent("done"), doneEvent()},
	}}
	loop, store := newTestLoop(t, provider, tools.AutoApproveSettings{}, DefaultSettings())

	threadID := store.CreateThread()
	status, err := loop.Submit(context.Background(), threadID, "use the tool", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if status != StatusIdle {
		t.Fatalf("status = %v, want %v", status, StatusIdle)
	}
	if provider.calls != 2 {
		t.Fatalf("provider.calls = %d, want 2 (tool-call turn + follow-up turn)", provider.calls)
	}

	thread, _ := store.Thread(threadID)
	var sawToolResult bool
	for _, m := range thread.Messages {
		if m.Kind == engine.KindTool && m.Tool != nil && m.Tool.ToolCallID == "tc1" {
			sawToolResult = true
			if m.Tool.Content != "ok" {
				t.Errorf("tool result content = %q, want %q", m.Tool.Content, "ok")
			}
		}
	}
	if !sawToolResult {
		t.Error("expected a recorded tool result for tc1")
	}
}

func TestLoopAwaitingApprovalThenResolve(t *testing.T) {
	var events []StreamEvent
	events = append(events, toolCallEvents("tc1", "edit_file")...)
	events = append(events, doneEvent())

	provider := &fakeProvider{script: [][]StreamEvent{
		events,
		{textEvent("finished"), doneEvent()},
	}}
	loop, store := newTestLoop(t, provider, tools.AutoApproveSettings{}, DefaultSettings())

	threadID := store.CreateThread()
	status, err := loop.Submit(context.Background(), threadID, "edit the file", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if status != StatusAwaitingApproval {
		t.Fatalf("status = %v, want %v", status, StatusAwaitingApproval)
	}

	status, err = loop.Resolve(context.Background(), threadID, "tc1", true)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if status != StatusIdle {
		t.Fatalf("status after Resolve() = %v, want %v", status, StatusIdle)
	}

	thread, _ := store.Thread(threadID)
	var sawResult bool
	for _, m := range thread.Messages {
		if m.Kind == engine.KindTool && m.Tool != nil && m.Tool.ToolCallID == "tc1" {
			sawResult = true
			if m.Tool.Type != engine.ToolSuccess {
				t.Errorf("tool result type = %v, want success", m.Tool.Type)
			}
		}
	}
	if !sawResult {
		t.Error("expected a recorded tool result for tc1 after approval")
	}
}

func TestLoopRejectRecordsRejectionAndContinues(t *testing.T) {
	var events []StreamEvent
	events = append(events, toolCallEvents("tc1", "edit_file")...)
	events = append(events, doneEvent())

	provider := &fakeProvider{script: [][]StreamEvent{
		events,
		{textEvent("ok, skipping"), doneEvent()},
	}}
	loop, store := newTestLoop(t, provider, tools.AutoApproveSettings{}, DefaultSettings())

	threadID := store.CreateThread()
	if _, err := loop.Submit(context.Background(), threadID, "edit the file", nil); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	status, err := loop.Resolve(context.Background(), threadID, "tc1", false)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if status != StatusIdle {
		t.Fatalf("status = %v, want %v", status, StatusIdle)
	}

	thread, _ := store.Thread(threadID)
	var sawRejection bool
	for _, m := range thread.Messages {
		if m.Kind == engine.KindTool && m.Tool != nil && m.Tool.ToolCallID == "tc1" {
			sawRejection = true
			if m.Tool.Type != engine.ToolRejected {
				t.Errorf("tool result type = %v, want rejected", m.Tool.Type)
			}
		}
	}
	if !sawRejection {
		t.Error("expected a recorded rejection for tc1")
	}
}

func TestLoopMaxToolLoopsInterrupts(t *testing.T) {
	always := append(toolCallEvents("tc1", "echo"), doneEvent())
	provider := &fakeProvider{script: [][]StreamEvent{always}} // repeats forever

	settings := DefaultSettings()
	settings.MaxToolLoops = 2
	loop, store := newTestLoop(t, provider, tools.AutoApproveSettings{}, settings)

	threadID := store.CreateThread()
	status, err := loop.Submit(context.Background(), threadID, "loop forever", nil)
	if status != StatusInterrupted {
		t.Fatalf("status = %v, want %v", status, StatusInterrupted)
	}
	if !engineerr.Is(err, engineerr.BudgetExceeded) {
		t.Errorf("error = %v, want BudgetExceeded", err)
	}
}

func TestLoopDetectorInterruptsBeforeMaxToolLoops(t *testing.T) {
	always := append(toolCallEvents("tc1", "echo"), doneEvent())
	provider := &fakeProvider{script: [][]StreamEvent{always}} // identical call every turn

	settings := DefaultSettings()
	settings.MaxToolLoops = 50 // high enough that the loop detector trips first
	loop, store := newTestLoop(t, provider, tools.AutoApproveSettings{}, settings)

	threadID := store.CreateThread()
	status, err := loop.Submit(context.Background(), threadID, "loop forever", nil)
	if status != StatusInterrupted {
		t.Fatalf("status = %v, want %v", status, StatusInterrupted)
	}
	if !engineerr.Is(err, engineerr.LoopDetected) {
		t.Errorf("error = %v, want LoopDetected", err)
	}
	if provider.calls > int(DefaultLoopDetectorSettings().MaxExactRepeats)+1 {
		t.Errorf("provider.calls = %d, expected the loop detector to cut the turn short", provider.calls)
	}
}

func TestLoopCancelStopsTurn(t *testing.T) {
	provider := &fakeProvider{script: [][]StreamEvent{
		{textEvent("hi"), doneEvent()},
	}}
	loop, store := newTestLoop(t, provider, tools.AutoApproveSettings{}, DefaultSettings())

	threadID := store.CreateThread()
	// Cancel before any turn exists should be a no-op, not a panic.
	loop.Cancel(threadID)

	status, err := loop.Submit(context.Background(), threadID, "hi", nil)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if status != StatusIdle {
		t.Fatalf("status = %v, want %v", status, StatusIdle)
	}
}
