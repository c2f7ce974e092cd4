package engine

// EventKind discriminates the notifications the Thread Store pushes to
// subscribers over the Thread Event Stream transport. Broadcast by kind
// rather than by a handful of ad-hoc websocket message types, tied
// directly to Store mutations.
type EventKind string

const (
	EventThreadCreated    EventKind = "thread_created"
	EventThreadDeleted    EventKind = "thread_deleted"
	EventMessageAppended  EventKind = "message_appended"
	EventMessageUpdated   EventKind = "message_updated"
	EventStreamDelta      EventKind = "stream_delta"
	EventPhaseChanged     EventKind = "phase_changed"
	EventPendingChange    EventKind = "pending_change"
	EventCompressionPhase EventKind = "compression_phase"
)

// Event is the payload delivered to Subscriber.Notify. Fields beyond
// Kind/ThreadID are populated only as relevant to that kind; consumers
// that need full state should re-read via Store.Thread.
type Event struct {
	Kind      EventKind
	ThreadID  string
	MessageID string
	Delta     string
}
