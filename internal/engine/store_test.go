package engine

import (
	"testing"
	"time"
)

type fakeSnapshotter struct {
	content map[string]string
}

func (f *fakeSnapshotter) Snapshot(paths []string) map[string]FileSnapshot {
	out := make(map[string]FileSnapshot, len(paths))
	for _, p := range paths {
		var c *string
		if v, ok := f.content[p]; ok {
			cp := v
			c = &cp
		}
		out[p] = FileSnapshot{Path: p, Content: c, Timestamp: time.Now()}
	}
	return out
}

type fakeWriter struct {
	restored map[string]*string
	failOn   string
}

func (f *fakeWriter) Restore(path string, content *string) error {
	if path == f.failOn {
		return Error("simulated failure")
	}
	if f.restored == nil {
		f.restored = make(map[string]*string)
	}
	f.restored[path] = content
	return nil
}

func TestCreateAndSwitchThread(t *testing.T) {
	s := NewStore(nil)
	id := s.CreateThread()
	if s.CurrentThreadID() != id {
		t.Fatalf("CurrentThreadID() = %q, want %q", s.CurrentThreadID(), id)
	}

	other := s.CreateThread()
	if err := s.SwitchThread(id); err != nil {
		t.Fatalf("SwitchThread() error = %v", err)
	}
	if s.CurrentThreadID() != id {
		t.Fatalf("CurrentThreadID() = %q, want %q", s.CurrentThreadID(), id)
	}

	if err := s.SwitchThread("does-not-exist"); err != ErrUnknownThread {
		t.Errorf("SwitchThread(unknown) error = %v, want ErrUnknownThread", err)
	}

	if err := s.DeleteThread(other); err != nil {
		t.Fatalf("DeleteThread() error = %v", err)
	}
	if _, ok := s.Thread(other); ok {
		t.Errorf("Thread(%q) still present after delete", other)
	}
}

func TestAddUserMessageCreatesCheckpointWhenContextItemsPresent(t *testing.T) {
	snap := &fakeSnapshotter{content: map[string]string{"main.go": "package main\n"}}
	s := NewStore(snap)
	id := s.CreateThread()

	_, err := s.AddUserMessage(id, "please refactor this", []ContextItem{{ID: "c1", Type: "file", Path: "main.go"}})
	if err != nil {
		t.Fatalf("AddUserMessage() error = %v", err)
	}

	th, _ := s.Thread(id)
	if len(th.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2 (checkpoint + user)", len(th.Messages))
	}
	if th.Messages[0].Kind != KindCheckpoint {
		t.Errorf("Messages[0].Kind = %q, want checkpoint", th.Messages[0].Kind)
	}
	if th.Messages[0].Checkpoint.Type != CheckpointUserMessage {
		t.Errorf("checkpoint type = %q, want user_message", th.Messages[0].Checkpoint.Type)
	}
	if th.Messages[1].Kind != KindUser {
		t.Errorf("Messages[1].Kind = %q, want user", th.Messages[1].Kind)
	}
}

func TestAddUserMessageWithoutContextItemsSkipsCheckpoint(t *testing.T) {
	s := NewStore(nil)
	id := s.CreateThread()

	_, err := s.AddUserMessage(id, "hello", nil)
	if err != nil {
		t.Fatalf("AddUserMessage() error = %v", err)
	}
	th, _ := s.Thread(id)
	if len(th.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(th.Messages))
	}
}

func TestTextBeforeToolOrdering(t *testing.T) {
	s := NewStore(nil)
	id := s.CreateThread()
	msg, _ := s.AddAssistantMessage(id, "")

	if err := s.AppendToAssistant(id, msg.ID, "Let me check that file."); err != nil {
		t.Fatalf("AppendToAssistant() error = %v", err)
	}
	if err := s.AddToolCallPart(id, msg.ID, ToolCall{ID: "tc1", Name: "read_file", Status: ToolCallAssembling}); err != nil {
		t.Fatalf("AddToolCallPart() error = %v", err)
	}
	if err := s.AppendToAssistant(id, msg.ID, "Now I see the issue."); err != nil {
		t.Fatalf("AppendToAssistant() (post-tool) error = %v", err)
	}

	th, _ := s.Thread(id)
	parts := th.Messages[0].Assistant.Parts
	if len(parts) != 3 {
		t.Fatalf("len(Parts) = %d, want 3 (text, tool_call, text)", len(parts))
	}
	if parts[0].Type != PartText || parts[0].Text != "Let me check that file." {
		t.Errorf("parts[0] = %+v, want leading text part", parts[0])
	}
	if parts[1].Type != PartToolCall || parts[1].ToolCall.ID != "tc1" {
		t.Errorf("parts[1] = %+v, want tool_call tc1", parts[1])
	}
	if parts[2].Type != PartText || parts[2].Text != "Now I see the issue." {
		t.Errorf("parts[2] = %+v, want trailing text part", parts[2])
	}
}

func TestUpdateToolCallMergesExisting(t *testing.T) {
	s := NewStore(nil)
	id := s.CreateThread()
	msg, _ := s.AddAssistantMessage(id, "")
	_ = s.AddToolCallPart(id, msg.ID, ToolCall{ID: "tc1", Name: "edit_file", Status: ToolCallAssembling})

	done := ToolCallComplete
	args := []byte(`{"path":"main.go"}`)
	if err := s.UpdateToolCall(id, msg.ID, "tc1", ToolCallPatch{Arguments: args, Status: &done}); err != nil {
		t.Fatalf("UpdateToolCall() error = %v", err)
	}

	th, _ := s.Thread(id)
	tc := th.Messages[0].Assistant.Parts[0].ToolCall
	if tc.Status != ToolCallComplete {
		t.Errorf("Status = %q, want complete", tc.Status)
	}
	if string(tc.Arguments) != string(args) {
		t.Errorf("Arguments = %s, want %s", tc.Arguments, args)
	}
}

func TestAddToolResultCreatesToolEditCheckpointForSideEffectingTools(t *testing.T) {
	snap := &fakeSnapshotter{content: map[string]string{"main.go": "old content\n"}}
	s := NewStore(snap)
	id := s.CreateThread()

	_, err := s.AddToolResult(id, "tc1", "edit_file", "applied", ToolSuccess, nil, true, []string{"main.go"})
	if err != nil {
		t.Fatalf("AddToolResult() error = %v", err)
	}

	th, _ := s.Thread(id)
	if len(th.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2 (checkpoint + tool)", len(th.Messages))
	}
	if th.Messages[0].Kind != KindCheckpoint || th.Messages[0].Checkpoint.Type != CheckpointToolEdit {
		t.Errorf("Messages[0] = %+v, want tool_edit checkpoint", th.Messages[0])
	}
	if th.Messages[0].Checkpoint.ToolCallID != "tc1" {
		t.Errorf("checkpoint ToolCallID = %q, want tc1", th.Messages[0].Checkpoint.ToolCallID)
	}
}

func TestAddToolResultSkipsCheckpointForReadOnlyTools(t *testing.T) {
	snap := &fakeSnapshotter{content: map[string]string{"main.go": "x"}}
	s := NewStore(snap)
	id := s.CreateThread()

	_, err := s.AddToolResult(id, "tc1", "read_file", "contents", ToolSuccess, nil, false, []string{"main.go"})
	if err != nil {
		t.Fatalf("AddToolResult() error = %v", err)
	}
	th, _ := s.Thread(id)
	if len(th.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1 (no checkpoint for read-only tool)", len(th.Messages))
	}
}

func TestDeleteMessagesAfterTruncatesAndClearsState(t *testing.T) {
	s := NewStore(nil)
	id := s.CreateThread()
	first, _ := s.AddUserMessage(id, "one", nil)
	_, _ = s.AddUserMessage(id, "two", nil)

	_ = s.RegisterPendingChange(id, PendingChange{ID: "pc1", FilePath: "x.go", Status: ChangePending})
	_ = s.SetCompressionState(id, CompressionState{Phase: CompressionSummarizing})

	if err := s.DeleteMessagesAfter(id, first.ID); err != nil {
		t.Fatalf("DeleteMessagesAfter() error = %v", err)
	}

	th, _ := s.Thread(id)
	if len(th.Messages) != 1 {
		t.Fatalf("len(Messages) = %d, want 1", len(th.Messages))
	}
	if len(th.PendingChanges) != 0 {
		t.Errorf("len(PendingChanges) = %d, want 0", len(th.PendingChanges))
	}
	if th.CompressionState.Phase != CompressionIdle {
		t.Errorf("CompressionState.Phase = %q, want idle", th.CompressionState.Phase)
	}
}

func TestCreateBranchForksAtMessage(t *testing.T) {
	s := NewStore(nil)
	id := s.CreateThread()
	m1, _ := s.AddUserMessage(id, "one", nil)
	_, _ = s.AddUserMessage(id, "two", nil)

	branchID, err := s.CreateBranch(id, m1.ID)
	if err != nil {
		t.Fatalf("CreateBranch() error = %v", err)
	}

	th, _ := s.Thread(id)
	if th.ActiveBranchID != branchID {
		t.Errorf("ActiveBranchID = %q, want %q", th.ActiveBranchID, branchID)
	}
	active, _ := s.ActiveMessages(id)
	if len(active) != 1 || active[0].ID != m1.ID {
		t.Errorf("ActiveMessages() = %+v, want just [m1]", active)
	}

	if err := s.SwitchBranch(id, ""); err != nil {
		t.Fatalf("SwitchBranch(\"\") error = %v", err)
	}
	active, _ = s.ActiveMessages(id)
	if len(active) != 2 {
		t.Errorf("ActiveMessages() after switch back len = %d, want 2", len(active))
	}
}

func TestRestoreCheckpointAllOrNothing(t *testing.T) {
	snap := &fakeSnapshotter{content: map[string]string{"a.go": "A", "b.go": "B"}}
	s := NewStore(snap)
	id := s.CreateThread()
	_, _ = s.AddUserMessage(id, "start", []ContextItem{{ID: "c1", Type: "file", Path: "a.go"}, {ID: "c2", Type: "file", Path: "b.go"}})
	th, _ := s.Thread(id)
	cpID := th.Messages[0].ID
	_, _ = s.AddUserMessage(id, "more", nil)

	ok := &fakeWriter{}
	if err := s.RestoreCheckpoint(id, cpID, ok); err != nil {
		t.Fatalf("RestoreCheckpoint() error = %v", err)
	}
	th, _ = s.Thread(id)
	if len(th.Messages) != 1 {
		t.Fatalf("len(Messages) after restore = %d, want 1", len(th.Messages))
	}

	id2 := s.CreateThread()
	_, _ = s.AddUserMessage(id2, "start", []ContextItem{{ID: "c1", Type: "file", Path: "a.go"}, {ID: "c2", Type: "file", Path: "b.go"}})
	th2, _ := s.Thread(id2)
	cp2 := th2.Messages[0].ID

	failing := &fakeWriter{failOn: "b.go"}
	if err := s.RestoreCheckpoint(id2, cp2, failing); err == nil {
		t.Fatalf("RestoreCheckpoint() error = nil, want failure from b.go")
	}
	th2After, _ := s.Thread(id2)
	if len(th2After.Messages) != len(th2.Messages) {
		t.Errorf("Messages mutated despite failed restore: len = %d, want %d", len(th2After.Messages), len(th2.Messages))
	}
}
