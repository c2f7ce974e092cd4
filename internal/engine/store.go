package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownThread is returned by operations addressing a thread id the
// Store does not hold (spec.md §4.1 switch_thread).
var ErrUnknownThread = Error("unknown thread")

// Error is a plain string error type, grounded on the teacher's
// internal/agent/state.go style of small locally-defined error values
// rather than a generic errors.New scattered at call sites.
type Error string

func (e Error) Error() string { return string(e) }

// Snapshotter captures the current content of files before they are
// mutated. The Thread Store depends on it only to build checkpoints; it
// is implemented by the Workspace Gateway (C8) in production and by a
// fake in tests.
type Snapshotter interface {
	Snapshot(paths []string) map[string]FileSnapshot
}

// Subscriber receives thread change notifications (spec.md §6 Thread
// event stream). Grounded on the re-architecture hint in spec.md §9:
// "explicit subscriber handles ... bounded queues".
type Subscriber interface {
	Notify(ev Event)
}

// Store holds all threads for one workspace and is the sole mutator of
// thread state (spec.md §5: "only the state machine mutates; external
// subscribers observe read-only snapshots"). Grounded on the teacher's
// internal/agent/state.go (MessageStateHandler: RWMutex over a message
// slice, copy-out reads) generalized from one thread's messages to the
// full multi-thread/branch/checkpoint/pending-change model.
type Store struct {
	mu      sync.RWMutex
	threads map[string]*Thread
	current string

	snapshotter Snapshotter
	subscribers []Subscriber
}

// NewStore creates an empty Store.
func NewStore(snap Snapshotter) *Store {
	return &Store{
		threads:     make(map[string]*Thread),
		snapshotter: snap,
	}
}

// Subscribe registers a Subscriber for change notifications.
func (s *Store) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

func (s *Store) emit(ev Event) {
	// Copy under lock, notify outside to avoid reentrancy deadlocks if a
	// subscriber calls back into the Store.
	s.mu.RLock()
	subs := append([]Subscriber(nil), s.subscribers...)
	s.mu.RUnlock()
	for _, sub := range subs {
		sub.Notify(ev)
	}
}

// CreateThread allocates a fresh thread with empty state and makes it
// current (spec.md §4.1 create_thread).
func (s *Store) CreateThread() string {
	s.mu.Lock()
	id := uuid.NewString()
	now := time.Now()
	s.threads[id] = &Thread{
		ID:           id,
		CreatedAt:    now,
		LastModified: now,
		StreamState:  StreamState{Phase: PhaseIdle},
		CompressionState: CompressionState{
			Phase: CompressionIdle,
		},
		PendingChanges: make(map[string]*PendingChange),
		Branches:       make(map[string]*Branch),
	}
	s.current = id
	s.mu.Unlock()

	s.emit(Event{Kind: EventThreadCreated, ThreadID: id})
	return id
}

// SwitchThread changes the current thread (spec.md §4.1 switch_thread).
func (s *Store) SwitchThread(id string) error {
	s.mu.Lock()
	if _, ok := s.threads[id]; !ok {
		s.mu.Unlock()
		return ErrUnknownThread
	}
	s.current = id
	s.mu.Unlock()
	return nil
}

// CurrentThreadID returns the current thread id, or "" if none.
func (s *Store) CurrentThreadID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// DeleteThread removes a thread; if it was current, promotes an
// arbitrary remaining thread, else current becomes absent (spec.md §4.1
// delete_thread).
func (s *Store) DeleteThread(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.threads[id]; !ok {
		return ErrUnknownThread
	}
	delete(s.threads, id)
	if s.current == id {
		s.current = ""
		for other := range s.threads {
			s.current = other
			break
		}
	}
	return nil
}

// Thread returns a copy of the thread for read-only use by external
// subscribers. Its slices and maps are copied, so replacing or appending
// elements never affects Store state; each Message's variant pointers
// (User, Assistant, Tool, Checkpoint) are shared with the Store, so
// writing through them does.
func (s *Store) Thread(id string) (Thread, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[id]
	if !ok {
		return Thread{}, false
	}
	return cloneThread(t), true
}

// RestoreThread installs a previously-persisted thread verbatim,
// backing the Thread Event Stream's on-disk document (spec.md §6). It
// does not emit a change event: restoration happens before a workspace
// has any subscribers to notify.
func (s *Store) RestoreThread(t Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := t
	s.threads[cp.ID] = &cp
	if s.current == "" {
		s.current = cp.ID
	}
}

// ThreadIDs returns all thread ids currently held.
func (s *Store) ThreadIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	return ids
}

func cloneThread(t *Thread) Thread {
	cp := *t
	cp.Messages = append([]Message(nil), t.Messages...)
	cp.ContextItems = append([]ContextItem(nil), t.ContextItems...)
	cp.PendingSteps = append([]string(nil), t.PendingSteps...)
	cp.PendingChanges = make(map[string]*PendingChange, len(t.PendingChanges))
	for k, v := range t.PendingChanges {
		pc := *v
		cp.PendingChanges[k] = &pc
	}
	cp.Branches = make(map[string]*Branch, len(t.Branches))
	for k, v := range t.Branches {
		b := *v
		b.Messages = append([]Message(nil), v.Messages...)
		cp.Branches[k] = &b
	}
	return cp
}

// touch marks last_modified; it emits no event.
func (s *Store) touch(t *Thread) {
	t.LastModified = time.Now()
}

// AddUserMessage appends a user message, creating a user_message
// checkpoint that snapshots every file referenced by contextItems
// (spec.md §4.1 add_user_message).
func (s *Store) AddUserMessage(threadID, content string, contextItems []ContextItem) (Message, error) {
	s.mu.Lock()
	t, ok := s.threads[threadID]
	if !ok {
		s.mu.Unlock()
		return Message{}, ErrUnknownThread
	}

	paths := make([]string, 0, len(contextItems))
	for _, ci := range contextItems {
		if ci.Path != "" {
			paths = append(paths, ci.Path)
		}
	}
	var snaps map[string]FileSnapshot
	if s.snapshotter != nil && len(paths) > 0 {
		snaps = s.snapshotter.Snapshot(paths)
	}

	now := time.Now()
	if len(snaps) > 0 {
		cp := Message{
			ID:        uuid.NewString(),
			Kind:      KindCheckpoint,
			Timestamp: now,
			Checkpoint: &CheckpointMessage{
				Type:      CheckpointUserMessage,
				Snapshots: snaps,
			},
		}
		t.Messages = append(t.Messages, cp)
	}

	msg := Message{
		ID:        uuid.NewString(),
		Kind:      KindUser,
		Timestamp: now,
		User: &UserMessage{
			Text:         content,
			ContextItems: append([]ContextItem(nil), contextItems...),
		},
	}
	t.Messages = append(t.Messages, msg)
	s.touch(t)
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessageAppended, ThreadID: threadID, MessageID: msg.ID})
	return msg, nil
}

// AddAssistantMessage appends a streaming assistant shell and puts the
// thread into the streaming phase (spec.md §4.1 add_assistant_message).
func (s *Store) AddAssistantMessage(threadID string, seed string) (Message, error) {
	s.mu.Lock()
	t, ok := s.threads[threadID]
	if !ok {
		s.mu.Unlock()
		return Message{}, ErrUnknownThread
	}

	msg := Message{
		ID:        uuid.NewString(),
		Kind:      KindAssistant,
		Timestamp: time.Now(),
		Assistant: &AssistantMessage{Content: seed},
	}
	t.Messages = append(t.Messages, msg)
	t.StreamState = StreamState{Phase: PhaseStreaming, StreamingAssistID: msg.ID}
	s.touch(t)
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessageAppended, ThreadID: threadID, MessageID: msg.ID})
	return msg, nil
}

func (s *Store) findMessage(t *Thread, id string) (*Message, bool) {
	for i := range t.Messages {
		if t.Messages[i].ID == id {
			return &t.Messages[i], true
		}
	}
	return nil, false
}

// AppendToAssistant is purely additive to the in-flight text part. If
// the text-finalized hint is set (a tool call was just added), a new
// text part is started so that text-before-tool ordering is preserved
// (spec.md §4.1 append_to_assistant).
func (s *Store) AppendToAssistant(threadID, messageID, delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	m, ok := s.findMessage(t, messageID)
	if !ok || m.Kind != KindAssistant {
		return Error("unknown assistant message")
	}

	a := m.Assistant
	a.Content += delta

	if len(a.Parts) == 0 || a.textFinalized {
		a.Parts = append(a.Parts, AssistantPart{Type: PartText, Text: delta})
		a.textFinalized = false
		s.touch(t)
		return nil
	}

	last := &a.Parts[len(a.Parts)-1]
	if last.Type == PartText {
		last.Text += delta
	} else {
		a.Parts = append(a.Parts, AssistantPart{Type: PartText, Text: delta})
	}
	s.touch(t)
	return nil
}

// AppendReasoningToAssistant is the reasoning-delta analogue of
// AppendToAssistant.
func (s *Store) AppendReasoningToAssistant(threadID, messageID, delta string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	m, ok := s.findMessage(t, messageID)
	if !ok || m.Kind != KindAssistant {
		return Error("unknown assistant message")
	}
	a := m.Assistant
	if len(a.Parts) == 0 || a.Parts[len(a.Parts)-1].Type != PartReasoning || a.textFinalized {
		a.Parts = append(a.Parts, AssistantPart{Type: PartReasoning, Reasoning: delta})
		a.textFinalized = false
		s.touch(t)
		return nil
	}
	last := &a.Parts[len(a.Parts)-1]
	last.Reasoning += delta
	s.touch(t)
	return nil
}

// FinalizeTextBeforeToolCall marks the current text/reasoning run as
// finalized so the next append opens a fresh part after the tool_call
// that is about to be inserted (spec.md §4.4 "Text-before-tool ordering").
func (s *Store) FinalizeTextBeforeToolCall(threadID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	m, ok := s.findMessage(t, messageID)
	if !ok || m.Kind != KindAssistant {
		return Error("unknown assistant message")
	}
	m.Assistant.textFinalized = true
	return nil
}

// AddToolCallPart inserts a new tool_call part at the end of parts
// (spec.md §4.1 add_tool_call_part). Callers must flush the Streaming
// Buffer before calling this so preceding text is visible first; the
// Store itself has no notion of the buffer.
func (s *Store) AddToolCallPart(threadID, messageID string, seed ToolCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	m, ok := s.findMessage(t, messageID)
	if !ok || m.Kind != KindAssistant {
		return Error("unknown assistant message")
	}
	a := m.Assistant
	a.Parts = append(a.Parts, AssistantPart{Type: PartToolCall, ToolCall: &seed})
	a.ToolCalls = append(a.ToolCalls, len(a.Parts)-1)
	a.textFinalized = true
	s.touch(t)
	return nil
}

// UpdateToolCall merges non-absent fields into an existing tool call part,
// creating it if absent (spec.md §4.1 update_tool_call). Idempotent under
// the same patch since it always sets, never appends, for existing ids.
func (s *Store) UpdateToolCall(threadID, messageID, toolCallID string, patch ToolCallPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	m, ok := s.findMessage(t, messageID)
	if !ok || m.Kind != KindAssistant {
		return Error("unknown assistant message")
	}
	a := m.Assistant
	for _, idx := range a.ToolCalls {
		tc := a.Parts[idx].ToolCall
		if tc.ID == toolCallID {
			patch.apply(tc)
			s.touch(t)
			return nil
		}
	}
	// Not found: create.
	tc := ToolCall{ID: toolCallID}
	patch.apply(&tc)
	a.Parts = append(a.Parts, AssistantPart{Type: PartToolCall, ToolCall: &tc})
	a.ToolCalls = append(a.ToolCalls, len(a.Parts)-1)
	s.touch(t)
	return nil
}

// ToolCallPatch carries the optional fields UpdateToolCall may merge.
type ToolCallPatch struct {
	Name      *string
	Arguments []byte
	Status    *ToolCallStatus
}

func (p ToolCallPatch) apply(tc *ToolCall) {
	if p.Name != nil {
		tc.Name = *p.Name
	}
	if p.Arguments != nil {
		tc.Arguments = append(tc.Arguments[:0:0], p.Arguments...)
	}
	if p.Status != nil {
		tc.Status = *p.Status
	}
}

// FinalizeAssistant marks streaming complete and sets the thread back to
// idle (spec.md §4.1 finalize_assistant). The caller (Agent Loop) is
// responsible for flushing the Streaming Buffer first.
func (s *Store) FinalizeAssistant(threadID, messageID string) error {
	s.mu.Lock()
	t, ok := s.threads[threadID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownThread
	}
	if _, ok := s.findMessage(t, messageID); !ok {
		s.mu.Unlock()
		return Error("unknown assistant message")
	}
	t.StreamState = StreamState{Phase: PhaseIdle}
	s.touch(t)
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessageUpdated, ThreadID: threadID, MessageID: messageID})
	return nil
}

// AddToolResult appends a tool message. If the result is terminal
// (success or error) and the tool is side-effecting, it also captures a
// tool_edit checkpoint atomically (spec.md §4.1 add_tool_result).
func (s *Store) AddToolResult(threadID, toolCallID, name, content string, typ ToolResultType, params []byte, sideEffecting bool, touchedPaths []string) (Message, error) {
	s.mu.Lock()
	t, ok := s.threads[threadID]
	if !ok {
		s.mu.Unlock()
		return Message{}, ErrUnknownThread
	}

	now := time.Now()
	if (typ == ToolSuccess || typ == ToolError) && sideEffecting && len(touchedPaths) > 0 && s.snapshotter != nil {
		snaps := s.snapshotter.Snapshot(touchedPaths)
		cp := Message{
			ID:        uuid.NewString(),
			Kind:      KindCheckpoint,
			Timestamp: now,
			Checkpoint: &CheckpointMessage{
				Type:       CheckpointToolEdit,
				Snapshots:  snaps,
				ToolCallID: toolCallID,
			},
		}
		t.Messages = append(t.Messages, cp)
	}

	msg := Message{
		ID:        uuid.NewString(),
		Kind:      KindTool,
		Timestamp: now,
		Tool: &ToolMessage{
			ToolCallID: toolCallID,
			Name:       name,
			Content:    content,
			Type:       typ,
			Params:     append([]byte(nil), params...),
		},
	}
	t.Messages = append(t.Messages, msg)
	s.touch(t)
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessageAppended, ThreadID: threadID, MessageID: msg.ID})
	return msg, nil
}

// DeleteMessagesAfter truncates the thread's message list to include
// messageID and nothing after, clearing compression state and pending
// changes (spec.md §4.1 delete_messages_after). Transactional: either the
// whole truncation (messages + compression + pending changes) applies or
// nothing does.
func (s *Store) DeleteMessagesAfter(threadID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}

	cut := -1
	for i, m := range t.Messages {
		if m.ID == messageID {
			cut = i
			break
		}
	}
	if cut == -1 {
		return Error("unknown message")
	}

	t.Messages = t.Messages[:cut+1]
	t.CompressionState = CompressionState{Phase: CompressionIdle}
	t.PendingChanges = make(map[string]*PendingChange)
	s.touch(t)
	return nil
}

// RegisterPendingChange records a proposed mutation (spec.md §4.5
// "Side-effect tracking").
func (s *Store) RegisterPendingChange(threadID string, pc PendingChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	if t.PendingChanges == nil {
		t.PendingChanges = make(map[string]*PendingChange)
	}
	cp := pc
	t.PendingChanges[pc.ID] = &cp
	s.touch(t)
	return nil
}

// ResolvePendingChange transitions a change to accepted or rejected.
func (s *Store) ResolvePendingChange(threadID, changeID string, status ChangeStatus) (*PendingChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil, ErrUnknownThread
	}
	pc, ok := t.PendingChanges[changeID]
	if !ok {
		return nil, Error("unknown pending change")
	}
	pc.Status = status
	s.touch(t)
	cp := *pc
	return &cp, nil
}

// SetMessages replaces a thread's full message list, used by the Context
// Manager after a compression pass.
func (s *Store) SetMessages(threadID string, msgs []Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	t.Messages = msgs
	s.touch(t)
	return nil
}

// SetCompressionState overwrites a thread's compression bookkeeping.
func (s *Store) SetCompressionState(threadID string, cs CompressionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	t.CompressionState = cs
	s.touch(t)
	return nil
}

// SetStreamState overwrites a thread's stream phase.
func (s *Store) SetStreamState(threadID string, ss StreamState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	t.StreamState = ss
	s.touch(t)
	return nil
}
