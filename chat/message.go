// Package chat implements the core of the single shared room: message kinds
// and validation, slash command parsing, the presence registry, per-connection
// rate limiting, message routing, and the persona scheduler. Transport and
// storage are consumed through narrow interfaces so the package stays free of
// HTTP and SQL concerns.
package chat

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// Kind classifies a chat message. The same closed set gates inbound
// validation and drives client-side rendering, so accepted and renderable
// kinds cannot drift apart.
type Kind string

const (
	KindText   Kind = "TEXT"
	KindEmote  Kind = "EMOTE"
	KindYell   Kind = "YELL"
	KindSystem Kind = "SYSTEM"
	KindRoll   Kind = "ROLL"
)

// Valid reports whether k is one of the recognized message kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindEmote, KindYell, KindSystem, KindRoll:
		return true
	}
	return false
}

// MaxMessageLength is the cap on message content after trimming.
const MaxMessageLength = 500

// Participant is any entity visible in the room roster, human or persona.
// Participants are ephemeral; the presence registry owns them while they are
// connected (humans) or active (personas).
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"username"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	IsPersona   bool   `json:"isPersona,omitempty"`
}

// ChatMessage is the persisted, immutable record of one room message.
// AuthorUserID is nil for persona-authored messages; PersonaName is nil for
// human-authored ones.
type ChatMessage struct {
	ID                string    `json:"id"`
	Content           string    `json:"content"`
	CreatedAt         time.Time `json:"createdAt"`
	AuthorUserID      *string   `json:"userId"`
	AuthorDisplayName string    `json:"username"`
	AvatarURL         string    `json:"avatarUrl,omitempty"`
	IsPersona         bool      `json:"isPersona"`
	PersonaName       *string   `json:"personaName"`
	Kind              Kind      `json:"kind"`
}

// MessageDraft carries the fields the router hands to the store; the store
// assigns ID and CreatedAt.
type MessageDraft struct {
	Content           string
	Kind              Kind
	AuthorUserID      *string
	AuthorDisplayName string
	AvatarURL         string
	IsPersona         bool
	PersonaName       *string
}

// Persona is a scripted non-human participant, supplied read-only by the
// persistence collaborator.
type Persona struct {
	ID           string
	Name         string
	Archetype    string
	SystemPrompt string
	IsActive     bool
}

// ErrInvalidCursor reports a history cursor that is not a createdAt value a
// previous page handed out. Stores wrap it so callers can match with
// errors.Is.
var ErrInvalidCursor = errors.New("invalid cursor")

// MessagePage is one page of history, newest first. NextCursor is the
// createdAt of the oldest returned message when older messages remain, else
// empty.
type MessagePage struct {
	Messages   []ChatMessage `json:"messages"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

// ValidateContent checks trimmed content against the empty and length rules.
// The two failure modes carry distinct messages so clients can tell them
// apart.
func ValidateContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("message content cannot be empty")
	}
	if len([]rune(trimmed)) > MaxMessageLength {
		return fmt.Errorf("message content exceeds %d characters", MaxMessageLength)
	}
	return nil
}

// stripPolicy removes every tag and attribute. Script and style bodies are
// dropped entirely rather than left behind as text.
var stripPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.SkipElementsContent("script", "style")
	return p
}()

// maxSanitizePasses bounds the strip/unescape loop. Text still carrying
// entities at the cap stays escaped, which is inert.
const maxSanitizePasses = 8

// Sanitize strips all markup from content, nested tags included, and returns
// the trimmed plain text. Stripping and entity-unescaping alternate until the
// text is stable, so escaped markup such as "&lt;script&gt;" can never
// round-trip into a live tag.
func Sanitize(content string) string {
	out := content
	for i := 0; i < maxSanitizePasses; i++ {
		unescaped := html.UnescapeString(stripPolicy.Sanitize(out))
		if unescaped == out {
			return strings.TrimSpace(unescaped)
		}
		out = unescaped
	}
	return strings.TrimSpace(stripPolicy.Sanitize(out))
}
