// Package ai produces the short conversational reply that accompanies every
// utterance. The reply is advisory: dispatch decisions are made by the rule
// engine, and the reply only contributes the child-input marker.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// FallbackReply is returned whenever a provider fails or answers empty.
	FallbackReply = "I understand. Let me help you with that."
	ChildReply    = "This seems like a child's input. Please ask an adult to use this system."
	Greeting      = "We are here to support and assist you."
)

type Assistant interface {
	Reply(ctx context.Context, message string) (string, error)
}

// SystemPrompt is the instruction shared by every remote provider.
func SystemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are a helpful female voice assistant for an Operations Hub. Your role is to:
1. Be warm, friendly, and professional
2. Always greet new users with %q
3. Help users report maintenance issues by extracting the problem type and the building name
4. If the user provides a problem and a building, respond positively about the issue being noted
5. If information is missing, ask for it politely
6. If the input sounds like a child (nonsense words, monsters, toys, mommy or daddy), respond: %q
7. Classify priority: P1 (leakage, fire, gas), P2 (AC, heating, electrical), P3 (lights, internet), P4 (other)
8. Keep responses conversational and under 30 words
9. Never mention ticket creation or generation, just acknowledge the issue

Current date: %s`, Greeting, ChildReply, now.Format("1/2/2006"))
}

type fallbackAssistant struct {
	next   Assistant
	logger zerolog.Logger
}

// WithFallback wraps a so that Reply never fails: provider errors and empty
// replies become FallbackReply.
func WithFallback(a Assistant, logger zerolog.Logger) Assistant {
	return fallbackAssistant{next: a, logger: logger}
}

func (f fallbackAssistant) Reply(ctx context.Context, message string) (string, error) {
	if f.next == nil {
		return FallbackReply, nil
	}
	reply, err := f.next.Reply(ctx, message)
	if err != nil {
		ev := f.logger.Warn().Err(err)
		var rl RateLimitError
		if errors.As(err, &rl) {
			ev = ev.Dur("retry_after", rl.RetryAfter)
		}
		ev.Msg("assistant failed, using fallback reply")
		return FallbackReply, nil
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		f.logger.Warn().Msg("assistant returned empty reply, using fallback")
		return FallbackReply, nil
	}
	return reply, nil
}

type Options struct {
	Provider  string
	BaseURL   string
	Model     string
	APIKey    string
	MaxTokens int
}

// New builds the assistant for a provider name: mock, openai or gemini.
func New(ctx context.Context, opts Options) (Assistant, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", "mock":
		return MockAssistant{}, nil
	case "openai":
		return &OpenAICompatAssistant{
			BaseURL:   opts.BaseURL,
			Model:     opts.Model,
			APIKey:    opts.APIKey,
			MaxTokens: opts.MaxTokens,
		}, nil
	case "gemini":
		model := opts.Model
		if model == "" || strings.HasPrefix(model, "gpt-") {
			model = DefaultGeminiModel
		}
		return NewGeminiAssistant(ctx, opts.APIKey, model, opts.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", opts.Provider)
	}
}
