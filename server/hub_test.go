package server

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/onnwee/barrens-chat/backend/chat"
)

func drain(t *testing.T, c *client) envelope {
	t.Helper()
	select {
	case frame := <-c.send:
		var env envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return env
	default:
		t.Fatal("no frame queued")
		return envelope{}
	}
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub := NewHub(slog.Default())
	a := &client{send: make(chan []byte, 4)}
	b := &client{send: make(chan []byte, 4)}
	hub.register(a)
	hub.register(b)

	hub.Broadcast(chat.ChatMessage{ID: "m1", Content: "hi", Kind: chat.KindText})

	for name, c := range map[string]*client{"a": a, "b": b} {
		env := drain(t, c)
		if env.Type != evtMessageNew {
			t.Errorf("client %s got %s, want message:new", name, env.Type)
		}
		var msg chat.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.ID != "m1" {
			t.Errorf("client %s got message %s, want m1", name, msg.ID)
		}
	}
}

func TestHubBroadcastExcept(t *testing.T) {
	hub := NewHub(slog.Default())
	a := &client{send: make(chan []byte, 4)}
	b := &client{send: make(chan []byte, 4)}
	hub.register(a)
	hub.register(b)

	hub.broadcast(evtParticipantJoin, chat.Participant{ID: "u2"}, a)

	if len(a.send) != 0 {
		t.Fatal("excluded client received the event")
	}
	if env := drain(t, b); env.Type != evtParticipantJoin {
		t.Fatalf("client b got %s, want participant:joined", env.Type)
	}
}

func TestHubSlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(slog.Default())
	slow := &client{send: make(chan []byte, 1)}
	fast := &client{send: make(chan []byte, 4)}
	hub.register(slow)
	hub.register(fast)

	// Fill the slow client's queue; further broadcasts must drop its frames
	// and still reach the fast client.
	hub.Broadcast(chat.ChatMessage{ID: "m1"})
	hub.Broadcast(chat.ChatMessage{ID: "m2"})

	if len(slow.send) != 1 {
		t.Fatalf("slow queue depth = %d, want 1", len(slow.send))
	}
	if len(fast.send) != 2 {
		t.Fatalf("fast queue depth = %d, want 2", len(fast.send))
	}
}

func TestHubUnregisterIdempotent(t *testing.T) {
	hub := NewHub(slog.Default())
	c := &client{send: make(chan []byte, 1)}
	hub.register(c)
	hub.unregister(c)
	hub.unregister(c) // must not panic on double close

	hub.Broadcast(chat.ChatMessage{ID: "m1"})
	if _, ok := <-c.send; ok {
		t.Fatal("unregistered client received a frame")
	}
}

func TestHubShutdownClosesAllClients(t *testing.T) {
	hub := NewHub(slog.Default())
	a := &client{send: make(chan []byte, 1)}
	b := &client{send: make(chan []byte, 1)}
	hub.register(a)
	hub.register(b)

	hub.Shutdown()

	for name, c := range map[string]*client{"a": a, "b": b} {
		if _, ok := <-c.send; ok {
			t.Errorf("client %s queue still open after shutdown", name)
		}
	}
	// A client disconnecting after shutdown must still clean up quietly.
	hub.unregister(a)
}

func TestHubSendError(t *testing.T) {
	hub := NewHub(slog.Default())
	c := &client{send: make(chan []byte, 1)}
	hub.register(c)

	hub.sendError(c, chat.CodeValidationError, "invalid message kind")

	env := drain(t, c)
	if env.Type != evtError {
		t.Fatalf("type = %s, want error", env.Type)
	}
	var payload errorPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Code != chat.CodeValidationError || payload.Message != "invalid message kind" {
		t.Fatalf("payload = %+v", payload)
	}
}
