package engine

import (
	"time"

	"github.com/google/uuid"
)

// CreateBranch forks a new branch from forkMessageID: the branch starts
// as a deep copy of the thread's messages up to and including that
// message (spec.md §4.6 "Branch: deep-copy messages up to the fork
// point into a new Branch"). The new branch becomes active.
func (s *Store) CreateBranch(threadID, forkMessageID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return "", ErrUnknownThread
	}

	cut := -1
	for i, m := range t.Messages {
		if m.ID == forkMessageID {
			cut = i
			break
		}
	}
	if cut == -1 {
		return "", Error("unknown message")
	}

	branchID := uuid.NewString()
	b := &Branch{
		ID:             branchID,
		ParentThreadID: threadID,
		ForkMessageID:  forkMessageID,
		Messages:       append([]Message(nil), t.Messages[:cut+1]...),
		CreatedAt:      time.Now(),
	}
	if t.Branches == nil {
		t.Branches = make(map[string]*Branch)
	}
	t.Branches[branchID] = b
	t.ActiveBranchID = branchID
	s.touch(t)
	return branchID, nil
}

// SwitchBranch selects which branch (or "" for the thread's own
// messages) subsequent reads and appends operate against.
func (s *Store) SwitchBranch(threadID, branchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	if branchID != "" {
		if _, ok := t.Branches[branchID]; !ok {
			return Error("unknown branch")
		}
	}
	t.ActiveBranchID = branchID
	s.touch(t)
	return nil
}

// DeleteBranch removes a branch; if it was active, the thread reverts to
// its own message list.
func (s *Store) DeleteBranch(threadID, branchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return ErrUnknownThread
	}
	if _, ok := t.Branches[branchID]; !ok {
		return Error("unknown branch")
	}
	delete(t.Branches, branchID)
	if t.ActiveBranchID == branchID {
		t.ActiveBranchID = ""
	}
	s.touch(t)
	return nil
}

// ActiveMessages returns a copy of the currently-active message list for
// a thread (its own, or the active branch's).
func (s *Store) ActiveMessages(threadID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil, ErrUnknownThread
	}
	return append([]Message(nil), t.activeMessages()...), nil
}
