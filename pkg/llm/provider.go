// Package llm wraps the hosted model APIs used for persona replies, token
// naming, and image analysis. Requests are plain (non-streaming) message
// completions; the bot only ever needs a short final text.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/CryptoRabble/glanker/pkg/config"
)

// Provider is a chat-completion backend.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single completion request.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Message is one conversation turn.
type Message struct {
	Role    string
	Content []Content
}

// Content block types.
const (
	ContentText  = "text"
	ContentImage = "image"
)

// Content is a single content block: text, or a base64 image for vision
// requests.
type Content struct {
	Type      string
	Text      string
	MediaType string // image only, e.g. "image/jpeg"
	Data      string // image only, base64 payload
}

// TextMessage builds a single-block user message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: []Content{{Type: ContentText, Text: text}}}
}

// Config holds provider settings loaded from the environment.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

// LoadConfig reads LLM_* env vars.
func LoadConfig() Config {
	return Config{
		Provider:  config.GetEnv("LLM_PROVIDER", "anthropic"),
		Model:     config.GetEnv("LLM_MODEL", defaultAnthropicModel),
		APIKey:    config.GetEnv("LLM_API_KEY", config.GetEnv("ANTHROPIC_API_KEY", "")),
		APIURL:    config.GetEnv("LLM_API_URL", ""),
		MaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 0),
	}
}

// NewProvider constructs the configured provider.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
