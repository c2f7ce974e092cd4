// Package streambuf implements the Streaming Buffer (C7): a small,
// UI-independent coalescer that batches per-token assistant deltas and
// flushes them on a fixed tick or synchronously before an
// ordering-sensitive event (spec.md §4.7).
//
// Not present in the teacher as a standalone component — the teacher's
// bubbletea TUI program (internal/tui) implicitly coalesces redraws via
// its own Update/View cycle, which the distilled spec places out of
// scope. This package extracts just the coalescing *policy* the
// teacher's fixed-tick batched redraw relies on, reimplemented over a
// plain time.Ticker and channel instead of a bubbletea program.
package streambuf

import (
	"sync"
	"time"
)

// DefaultTick is the spec's ~16ms coalescing cadence (spec.md §4.7).
const DefaultTick = 16 * time.Millisecond

// Flusher receives a coalesced batch of deltas for one message.
type Flusher interface {
	Flush(threadID, messageID, batched string)
}

// FlusherFunc adapts a function to Flusher.
type FlusherFunc func(threadID, messageID, batched string)

func (f FlusherFunc) Flush(threadID, messageID, batched string) { f(threadID, messageID, batched) }

// Coalescer buffers deltas per (threadID, messageID) key and flushes
// them either on its tick or synchronously via FlushNow, which callers
// must invoke before anything that depends on message ordering (e.g.
// inserting a tool_call part after in-flight text, per spec.md §4.4's
// text-before-tool ordering rule).
type Coalescer struct {
	mu      sync.Mutex
	buffers map[bufKey]*strBuilder
	flusher Flusher

	tick    time.Duration
	ticker  *time.Ticker
	stop    chan struct{}
	started bool
}

type bufKey struct {
	threadID  string
	messageID string
}

type strBuilder struct {
	data string
}

// New creates a Coalescer with the given flush cadence. A zero tick
// uses DefaultTick.
func New(flusher Flusher, tick time.Duration) *Coalescer {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Coalescer{
		buffers: make(map[bufKey]*strBuilder),
		flusher: flusher,
		tick:    tick,
		stop:    make(chan struct{}),
	}
}

// Start begins the background flush tick. Safe to call once; a second
// call is a no-op.
func (c *Coalescer) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.ticker = time.NewTicker(c.tick)
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-c.ticker.C:
				c.FlushAll()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts the background tick. Buffered-but-unflushed content is
// kept; it is delivered only by a later FlushNow or FlushAll.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.ticker.Stop()
	close(c.stop)
	c.started = false
}

// Push appends delta to the in-flight buffer for (threadID, messageID).
func (c *Coalescer) Push(threadID, messageID, delta string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := bufKey{threadID, messageID}
	b, ok := c.buffers[key]
	if !ok {
		b = &strBuilder{}
		c.buffers[key] = b
	}
	b.data += delta
}

// FlushNow synchronously flushes and clears the buffer for one message,
// for use before an ordering-sensitive event.
func (c *Coalescer) FlushNow(threadID, messageID string) {
	c.mu.Lock()
	key := bufKey{threadID, messageID}
	b, ok := c.buffers[key]
	if !ok || b.data == "" {
		c.mu.Unlock()
		return
	}
	batched := b.data
	delete(c.buffers, key)
	c.mu.Unlock()

	c.flusher.Flush(threadID, messageID, batched)
}

// FlushAll flushes every buffered message, used by the tick handler and
// by callers that need to drain everything (e.g. before cancellation).
func (c *Coalescer) FlushAll() {
	c.mu.Lock()
	keys := make([]bufKey, 0, len(c.buffers))
	batches := make([]string, 0, len(c.buffers))
	for k, b := range c.buffers {
		if b.data == "" {
			continue
		}
		keys = append(keys, k)
		batches = append(batches, b.data)
	}
	for _, k := range keys {
		delete(c.buffers, k)
	}
	c.mu.Unlock()

	for i, k := range keys {
		c.flusher.Flush(k.threadID, k.messageID, batches[i])
	}
}

// Clear discards all buffered content without flushing it, used on
// cancellation (spec.md §4.7: "clear() for cancellation").
func (c *Coalescer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffers = make(map[bufKey]*strBuilder)
}

// ClearMessage discards the buffer for a single message without
// flushing it.
func (c *Coalescer) ClearMessage(threadID, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buffers, bufKey{threadID, messageID})
}
