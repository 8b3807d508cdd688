// Package testutil provides shared test helpers: a Postgres setup guarded by
// TEST_PG_DSN and in-memory fakes for the chat core's collaborators.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onnwee/barrens-chat/backend/chat"
)

// FakeStore is an in-memory chat.Store. Messages are held newest-last;
// pagination mirrors the Postgres store's cursor semantics. Error fields,
// when set, fail the matching call.
type FakeStore struct {
	mu       sync.Mutex
	messages []chat.ChatMessage
	personas []chat.Persona
	nextSeq  int

	CreateErr error
	ListErr   error
}

// NewFakeStore returns an empty fake store with the given personas active.
func NewFakeStore(personas ...chat.Persona) *FakeStore {
	return &FakeStore{personas: personas}
}

// CreateMessage records a message with a sequential id and a strictly
// increasing timestamp.
func (s *FakeStore) CreateMessage(_ context.Context, draft chat.MessageDraft) (chat.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return chat.ChatMessage{}, s.CreateErr
	}
	s.nextSeq++
	msg := chat.ChatMessage{
		ID:                fmt.Sprintf("msg-%d", s.nextSeq),
		Content:           draft.Content,
		Kind:              draft.Kind,
		AuthorUserID:      draft.AuthorUserID,
		AuthorDisplayName: draft.AuthorDisplayName,
		AvatarURL:         draft.AvatarURL,
		IsPersona:         draft.IsPersona,
		PersonaName:       draft.PersonaName,
		CreatedAt:         time.Unix(0, 0).Add(time.Duration(s.nextSeq) * time.Second).UTC(),
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

// ListMessages pages newest-first with the limit+1 lookahead, mirroring the
// Postgres store's clamp and cursor semantics.
func (s *FakeStore) ListMessages(_ context.Context, cursor string, limit int) (chat.MessagePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return chat.MessagePage{}, s.ListErr
	}
	if limit <= 0 {
		limit = 50
	} else if limit > 100 {
		limit = 100
	}

	var before time.Time
	if cursor != "" {
		t, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return chat.MessagePage{}, fmt.Errorf("%w: %v", chat.ErrInvalidCursor, err)
		}
		before = t
	}

	var newest []chat.ChatMessage
	for i := len(s.messages) - 1; i >= 0; i-- {
		m := s.messages[i]
		if cursor != "" && !m.CreatedAt.Before(before) {
			continue
		}
		newest = append(newest, m)
		if len(newest) > limit {
			break
		}
	}

	page := chat.MessagePage{Messages: newest}
	if len(newest) > limit {
		page.Messages = newest[:limit]
		page.NextCursor = page.Messages[limit-1].CreatedAt.Format(time.RFC3339Nano)
	}
	return page, nil
}

// RecentMessages returns the latest n in chronological order.
func (s *FakeStore) RecentMessages(_ context.Context, n int) ([]chat.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]chat.ChatMessage, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out, nil
}

// ListActivePersonas returns the personas the store was built with.
func (s *FakeStore) ListActivePersonas(_ context.Context) ([]chat.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := make([]chat.Persona, len(s.personas))
	copy(out, s.personas)
	return out, nil
}

// MessageCount reports how many messages were persisted.
func (s *FakeStore) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// LastMessage returns the most recently persisted message.
func (s *FakeStore) LastMessage() (chat.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return chat.ChatMessage{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// FakeGenerator is a chat.Generator returning canned responses in order.
// When the queue runs out it returns Fallback (empty means nothing to post).
type FakeGenerator struct {
	mu       sync.Mutex
	Queue    []string
	Fallback string
	Err      error
	Calls    int
}

// Generate pops the next canned response.
func (g *FakeGenerator) Generate(context.Context, chat.Persona, []chat.ChatMessage) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++
	if g.Err != nil {
		return "", g.Err
	}
	if len(g.Queue) > 0 {
		next := g.Queue[0]
		g.Queue = g.Queue[1:]
		return next, nil
	}
	return g.Fallback, nil
}

// RecordingBroadcaster is a chat.Broadcaster capturing every broadcast
// message for assertions.
type RecordingBroadcaster struct {
	mu       sync.Mutex
	Messages []chat.ChatMessage
}

// Broadcast records the message.
func (b *RecordingBroadcaster) Broadcast(msg chat.ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Messages = append(b.Messages, msg)
}

// Count reports how many messages were broadcast.
func (b *RecordingBroadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Messages)
}
