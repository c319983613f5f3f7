// Package llm holds the text completion backends used to write nudges.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyCompletion = errors.New("llm: empty completion")

// Message is one chat turn sent to a completion backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer turns a conversation into the next assistant line.
type Completer interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

// New builds the backend selected by LLM_PROVIDER.
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderTogether, "":
		return NewTogether(cfg.TogetherAPIKey, cfg.TogetherBaseURL, cfg.TogetherModel, cfg.LLMTimeout), nil
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "")
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}
