// Package persona generates chat messages for the room's scripted
// participants using the Gemini API. The chat core only sees the
// chat.Generator interface; swap in Disabled when no API key is configured.
package persona

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/onnwee/barrens-chat/backend/chat"
)

const (
	defaultModel    = "gemini-2.0-flash"
	maxOutputTokens = 150
)

// Gemini generates persona messages with the Gemini API, feeding recent room
// history as context and the persona's prompt as the system instruction.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a generator backed by the Gemini API.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("persona generator requires an API key")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate asks the model for the persona's next message given the recent
// chat. An empty result with nil error means nothing to post.
func (g *Gemini) Generate(ctx context.Context, p chat.Persona, recent []chat.ChatMessage) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(BuildPrompt(recent), genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.SystemPrompt, genai.RoleUser),
		MaxOutputTokens:   maxOutputTokens,
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content for %s: %w", p.Name, err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// BuildPrompt renders recent history as "[name]: text" lines followed by the
// posting instruction, or the room-just-opened variant when there is none.
func BuildPrompt(recent []chat.ChatMessage) string {
	if len(recent) == 0 {
		return "The chat room just opened. Post your first message."
	}
	var b strings.Builder
	b.WriteString("Here is the recent chat:\n")
	for _, m := range recent {
		name := m.AuthorDisplayName
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "[%s]: %s\n", name, m.Content)
	}
	b.WriteString("\nPost your next message.")
	return b.String()
}

// Disabled is a no-op generator used when no API key is configured. Personas
// stay visible in the roster but never post.
type Disabled struct{}

// Generate always reports nothing to post.
func (Disabled) Generate(context.Context, chat.Persona, []chat.ChatMessage) (string, error) {
	return "", nil
}
