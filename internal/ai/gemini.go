package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type GeminiAssistant struct {
	client    *genai.Client
	model     string
	maxTokens int
	now       func() time.Time
}

// NewGeminiAssistant uses the Gemini API when apiKey is set and Application
// Default Credentials otherwise.
func NewGeminiAssistant(ctx context.Context, apiKey, model string, maxTokens int) (*GeminiAssistant, error) {
	cfg := &genai.ClientConfig{}
	if apiKey != "" {
		cfg.APIKey = apiKey
		cfg.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiAssistant{client: client, model: model, maxTokens: maxTokens, now: time.Now}, nil
}

func (g *GeminiAssistant) Reply(ctx context.Context, message string) (string, error) {
	content := genai.NewContentFromText(message, genai.RoleUser)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt(g.now()), genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
	}
	if g.maxTokens > 0 {
		config.MaxOutputTokens = int32(g.maxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates from Gemini")
	}

	var result strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			result.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(result.String()), nil
}
