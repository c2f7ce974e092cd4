package server

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aegisline/coreengine/internal/agent"
	"github.com/aegisline/coreengine/internal/engine"
)

// ResponseWriter lets Handler reply over whichever transport delivered
// the request. Grounded on the teacher's server.ResponseWriter, kept
// identical since the abstraction (one connection vs. broadcast-to-all)
// still applies unchanged.
type ResponseWriter interface {
	Send(msg Message) error
}

// Handler processes one Message at a time against the engine's core
// collaborators. Grounded on the teacher's server.Handler, generalized
// from the teacher's session/live-mode/workflow surface down to the
// engine's own operation set: create_thread, submit, resolve, cancel,
// get_thread.
type Handler struct {
	Store *engine.Store
	Loop  *agent.Loop
	Hub   *Hub
	Ctx   context.Context
}

func NewHandler(ctx context.Context, store *engine.Store, loop *agent.Loop, hub *Hub) *Handler {
	return &Handler{Store: store, Loop: loop, Hub: hub, Ctx: ctx}
}

// HandleMessage dispatches one request to its handler, writing exactly
// one response (besides whatever Thread Event Stream traffic the Store
// emits as a side effect of running the Agent Loop).
func (h *Handler) HandleMessage(msg Message, writer ResponseWriter) {
	switch msg.Type {
	case "create_thread":
		id := h.Store.CreateThread()
		_ = writer.Send(Message{ID: msg.ID, Type: "thread_created", Payload: Encode(map[string]string{"thread_id": id})})

	case "get_thread":
		var payload struct {
			ThreadID string `json:"thread_id"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			_ = writer.Send(Message{ID: msg.ID, Error: err.Error()})
			return
		}
		thread, ok := h.Store.Thread(payload.ThreadID)
		if !ok {
			_ = writer.Send(Message{ID: msg.ID, Error: "unknown thread"})
			return
		}
		_ = writer.Send(Message{ID: msg.ID, Type: "thread", Payload: Encode(thread)})

	case "submit":
		var payload struct {
			ThreadID     string               `json:"thread_id"`
			Text         string               `json:"text"`
			ContextItems []engine.ContextItem `json:"context_items,omitempty"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			_ = writer.Send(Message{ID: msg.ID, Error: err.Error()})
			return
		}
		status, err := h.Loop.Submit(h.Ctx, payload.ThreadID, payload.Text, payload.ContextItems)
		if err != nil {
			log.Printf("submit error: %v", err)
			_ = writer.Send(Message{ID: msg.ID, Error: err.Error()})
			return
		}
		_ = writer.Send(Message{ID: msg.ID, Type: "status", Payload: Encode(map[string]string{"status": string(status)})})

	case "resolve":
		var payload struct {
			ThreadID   string `json:"thread_id"`
			ToolCallID string `json:"tool_call_id"`
			Approve    bool   `json:"approve"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			_ = writer.Send(Message{ID: msg.ID, Error: err.Error()})
			return
		}
		status, err := h.Loop.Resolve(h.Ctx, payload.ThreadID, payload.ToolCallID, payload.Approve)
		if err != nil {
			_ = writer.Send(Message{ID: msg.ID, Error: err.Error()})
			return
		}
		_ = writer.Send(Message{ID: msg.ID, Type: "status", Payload: Encode(map[string]string{"status": string(status)})})

	case "cancel":
		var payload struct {
			ThreadID string `json:"thread_id"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			_ = writer.Send(Message{ID: msg.ID, Error: err.Error()})
			return
		}
		h.Loop.Cancel(payload.ThreadID)
		_ = writer.Send(Message{ID: msg.ID, Type: "cancelled"})

	default:
		_ = writer.Send(Message{ID: msg.ID, Error: "unknown message type: " + msg.Type})
	}
}
