package engine

// FileWriter applies restored file content back to the workspace. It is
// implemented by the Workspace Gateway (C8); the Thread Store only
// orchestrates which snapshots to apply and in what order.
type FileWriter interface {
	// Restore writes content to path, or removes path if content is nil.
	Restore(path string, content *string) error
}

// RestoreCheckpoint rolls the workspace back to the state captured by the
// checkpoint message identified by checkpointID, then truncates the
// thread's messages to end at that checkpoint (spec.md §4.6 "Rollback:
// all-or-nothing — either every file in the checkpoint's snapshot set is
// restored and the message list truncated, or neither happens").
//
// Grounded on the teacher's internal/checkpoints/service.go Restore,
// which resets the shadow git worktree in one operation; here the
// "one operation" is a per-path loop, and if one write fails the files
// already written are put back from a snapshot taken before the first
// write.
func (s *Store) RestoreCheckpoint(threadID, checkpointID string, fw FileWriter) error {
	s.mu.Lock()
	t, ok := s.threads[threadID]
	if !ok {
		s.mu.Unlock()
		return ErrUnknownThread
	}

	idx := -1
	var cp *CheckpointMessage
	for i, m := range t.Messages {
		if m.ID == checkpointID && m.Kind == KindCheckpoint {
			idx = i
			cp = m.Checkpoint
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return Error("unknown checkpoint")
	}

	snaps := make(map[string]FileSnapshot, len(cp.Snapshots))
	for k, v := range cp.Snapshots {
		snaps[k] = v
	}
	s.mu.Unlock()

	// Capture the current content of every path first, so a failed write
	// can put back the files already written in this call.
	var before map[string]FileSnapshot
	if s.snapshotter != nil {
		paths := make([]string, 0, len(snaps))
		for path := range snaps {
			paths = append(paths, path)
		}
		before = s.snapshotter.Snapshot(paths)
	}

	applied := make([]string, 0, len(snaps))
	for path, snap := range snaps {
		if err := fw.Restore(path, snap.Content); err != nil {
			// Undo the writes already made (best-effort per file); the
			// thread's messages are left untouched so the user sees the
			// failure rather than a silently truncated history.
			for _, done := range applied {
				if prev, ok := before[done]; ok {
					_ = fw.Restore(done, prev.Content)
				}
			}
			return Error("checkpoint restore failed for " + path + ": " + err.Error())
		}
		applied = append(applied, path)
	}

	s.mu.Lock()
	t.Messages = t.Messages[:idx+1]
	t.CompressionState = CompressionState{Phase: CompressionIdle}
	t.PendingChanges = make(map[string]*PendingChange)
	s.touch(t)
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessageUpdated, ThreadID: threadID, MessageID: checkpointID})
	return nil
}
