package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/onnwee/barrens-chat/backend/telemetry"
)

// ErrorCode is the closed set of failure codes surfaced to clients. Every
// code is sender-local; none is ever broadcast.
type ErrorCode string

const (
	CodeAuthFailed      ErrorCode = "AUTH_FAILED"
	CodeRateLimited     ErrorCode = "RATE_LIMITED"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeInternalError   ErrorCode = "INTERNAL_ERROR"
)

// RoutingError is a client-visible rejection of an inbound message.
type RoutingError struct {
	Code    ErrorCode
	Message string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Store is the persistence collaborator consumed by the core. Messages are
// immutable once created and never deleted here.
type Store interface {
	CreateMessage(ctx context.Context, draft MessageDraft) (ChatMessage, error)
	ListMessages(ctx context.Context, cursor string, limit int) (MessagePage, error)
	ListActivePersonas(ctx context.Context) ([]Persona, error)
	RecentMessages(ctx context.Context, n int) ([]ChatMessage, error)
}

// Broadcaster fans a message out to every connected participant, sender
// included. Fan-out is best-effort; a send to a participant that has since
// disconnected is a no-op for that recipient.
type Broadcaster interface {
	Broadcast(msg ChatMessage)
}

// Router validates, sanitizes, persists, and broadcasts chat messages. A
// single mutex serializes persist+broadcast so every recipient observes
// messages in the order they were persisted.
type Router struct {
	store Store
	hub   Broadcaster
	log   *slog.Logger

	mu sync.Mutex
}

// NewRouter wires a router to its storage and fan-out collaborators.
func NewRouter(store Store, hub Broadcaster, log *slog.Logger) *Router {
	return &Router{store: store, hub: hub, log: log}
}

// Submit routes one inbound human message. Validation order: rate limit,
// kind gate, content checks. On success the sanitized message is persisted
// and broadcast to the whole room, sender included. Rejections come back as
// *RoutingError and are for the sender only.
func (r *Router) Submit(ctx context.Context, sender Participant, limiter *RateLimiter, content string, kind Kind) (ChatMessage, error) {
	if !limiter.Admit() {
		telemetry.MessagesRejected.WithLabelValues("rate_limited").Inc()
		return ChatMessage{}, &RoutingError{Code: CodeRateLimited, Message: "Too many messages. Slow down!"}
	}
	if !kind.Valid() {
		telemetry.MessagesRejected.WithLabelValues("invalid_kind").Inc()
		return ChatMessage{}, &RoutingError{Code: CodeValidationError, Message: "invalid message kind"}
	}
	if err := ValidateContent(content); err != nil {
		telemetry.MessagesRejected.WithLabelValues("invalid_content").Inc()
		return ChatMessage{}, &RoutingError{Code: CodeValidationError, Message: err.Error()}
	}

	userID := sender.ID
	msg, err := r.commit(ctx, MessageDraft{
		Content:           Sanitize(content),
		Kind:              kind,
		AuthorUserID:      &userID,
		AuthorDisplayName: sender.DisplayName,
		AvatarURL:         sender.AvatarURL,
	})
	if err != nil {
		r.log.Error("failed to persist message",
			slog.Any("err", err),
			slog.String("user_id", sender.ID),
			slog.String("kind", string(kind)))
		telemetry.MessagesRejected.WithLabelValues("internal").Inc()
		return ChatMessage{}, &RoutingError{Code: CodeInternalError, Message: "failed to send message"}
	}
	return msg, nil
}

// Inject routes a scheduler-originated persona message. The rate limiter and
// kind gate do not apply, but persona content passes the same sanitization
// and length rules as human content before it is persisted and broadcast.
func (r *Router) Inject(ctx context.Context, personaName, content string) (ChatMessage, error) {
	sanitized := Sanitize(content)
	if err := ValidateContent(sanitized); err != nil {
		return ChatMessage{}, fmt.Errorf("persona %s: %w", personaName, err)
	}
	name := personaName
	msg, err := r.commit(ctx, MessageDraft{
		Content:           sanitized,
		Kind:              KindText,
		AuthorDisplayName: personaName,
		IsPersona:         true,
		PersonaName:       &name,
	})
	if err != nil {
		return ChatMessage{}, fmt.Errorf("persist persona message: %w", err)
	}
	return msg, nil
}

// commit persists the draft and broadcasts the result under one lock so the
// room observes messages in persisted order.
func (r *Router) commit(ctx context.Context, draft MessageDraft) (ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, err := r.store.CreateMessage(ctx, draft)
	if err != nil {
		return ChatMessage{}, err
	}
	telemetry.MessagesTotal.WithLabelValues(strings.ToLower(string(msg.Kind))).Inc()
	r.hub.Broadcast(msg)
	return msg, nil
}
