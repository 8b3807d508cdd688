package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/onnwee/barrens-chat/backend/chat"
	"github.com/onnwee/barrens-chat/backend/telemetry"
)

// Outbound event types. The set is closed; clients can match on it
// exhaustively.
const (
	evtMessageNew       = "message:new"
	evtParticipantJoin  = "participant:joined"
	evtParticipantLeft  = "participant:left"
	evtParticipantsList = "participants:list"
	evtError            = "error"
)

// Inbound event types.
const evtMessageSend = "message:send"

// envelope is the wire frame in both directions: a type tag plus a payload.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// outEvent is the outbound counterpart before marshaling.
type outEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// errorPayload is the data of an error event.
type errorPayload struct {
	Code    chat.ErrorCode `json:"code"`
	Message string         `json:"message"`
}

// rosterPayload is the data of a participants:list event.
type rosterPayload struct {
	Participants []chat.Participant `json:"participants"`
	Count        int                `json:"count"`
}

// client is one websocket connection's send side. Frames are queued on send
// and written by the connection's writer goroutine; the hub never writes to
// the socket directly.
type client struct {
	send chan []byte
	once sync.Once
}

// enqueue hands a pre-marshaled frame to the client's writer. A full queue
// means the client is too slow to keep up; the frame is dropped for that
// client rather than stalling the room.
func (c *client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close releases the send channel exactly once.
func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks connected clients and fans events out to them. It implements
// chat.Broadcaster for the message router.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	log     *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{clients: make(map[*client]struct{}), log: log}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// unregister removes a client and closes its send queue. Safe to call more
// than once for the same client.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Shutdown drops every client, closing their send queues so each writer
// goroutine tears its socket down. Fire-and-forget; connections need not
// acknowledge.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// Broadcast sends a message:new event to every connected client, sender
// included. Implements chat.Broadcaster.
func (h *Hub) Broadcast(msg chat.ChatMessage) {
	telemetry.TimeFunc(telemetry.BroadcastDuration, func() {
		h.broadcast(evtMessageNew, msg, nil)
	})
}

// broadcast fans an event out to every client except the one given (nil
// means no exclusion). Marshaling happens once per event, not per client.
func (h *Hub) broadcast(typ string, data any, except *client) {
	frame, err := json.Marshal(outEvent{Type: typ, Data: data})
	if err != nil {
		h.log.Error("failed to marshal event", slog.Any("err", err), slog.String("type", typ))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c == except {
			continue
		}
		if !c.enqueue(frame) {
			h.log.Warn("dropping frame for slow client", slog.String("type", typ))
		}
	}
}

// sendTo delivers an event to a single client.
func (h *Hub) sendTo(c *client, typ string, data any) {
	frame, err := json.Marshal(outEvent{Type: typ, Data: data})
	if err != nil {
		h.log.Error("failed to marshal event", slog.Any("err", err), slog.String("type", typ))
		return
	}
	if !c.enqueue(frame) {
		h.log.Warn("dropping frame for slow client", slog.String("type", typ))
	}
}

// sendError delivers a sender-local error event.
func (h *Hub) sendError(c *client, code chat.ErrorCode, message string) {
	h.sendTo(c, evtError, errorPayload{Code: code, Message: message})
}
