package server

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aegisline/coreengine/internal/engine"
)

// Hub broadcasts Thread Store events to every connected websocket
// client. Grounded on the teacher's cmd/ricochet WsHub, generalized from
// a package-level global into a struct the Handler owns, and from
// broadcasting ad hoc RPCMessage values into broadcasting engine.Event
// wrapped as a "thread_event" Message.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool

	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run processes register/unregister requests until ctx is cancelled.
// Connection bookkeeping stays single-threaded here so Broadcast (called
// from arbitrary Store-emitting goroutines) never races a client map
// mutation.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			log.Printf("client connected, total=%d", len(h.clients))
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
			log.Printf("client disconnected, total=%d", len(h.clients))
		case <-ctx.Done():
			return
		}
	}
}

// Register and Unregister feed the Run loop from the websocket
// upgrade/read-loop goroutines in main.go.
func (h *Hub) Register(conn *websocket.Conn)   { h.register <- conn }
func (h *Hub) Unregister(conn *websocket.Conn) { h.unregister <- conn }

// Notify implements engine.Subscriber: every Store mutation is
// broadcast verbatim as a "thread_event" Message to all connected
// clients. A client that wants full state re-reads via get_thread
// rather than the Hub trying to diff and resend deltas.
func (h *Hub) Notify(ev engine.Event) {
	h.Broadcast(Message{Type: "thread_event", Payload: Encode(ev)})
}

func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("broadcast error: %v", err)
		}
	}
}
