// Package server exposes the Thread Event Stream (spec.md §6) over a
// gorilla/websocket transport, grounded on the teacher's cmd/ricochet
// WsHub + internal/server/handler.go RPC-over-transport pattern,
// generalized from the teacher's VSCode-sidecar RPC surface (sessions,
// live mode, MCP hub, workflows) down to the engine's own operation set
// (threads, messages, approvals).
package server

import "encoding/json"

// Message is the wire envelope every request and response travels in.
// Grounded on the teacher's protocol.RPCMessage, kept local to this
// package now that the transport is purely Thread Event Stream traffic
// rather than a general VSCode-extension RPC bus.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Encode marshals v into a Payload, swallowing the error the way the
// teacher's protocol.EncodeRPC does — a payload that fails to marshal
// becomes an empty one rather than aborting the response.
func Encode(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
