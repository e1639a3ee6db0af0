// Package speech turns reply text into spoken audio through a hosted
// text-to-speech provider.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrEmptyText     = errors.New("text is required")
	ErrNotConfigured = errors.New("speech synthesis is not configured")
)

// Synthesizer returns encoded audio for text. Callers treat any error as a
// signal to fall back to on-device synthesis.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultVoiceID = "9BWtsMINqrJLrRacOk9x"
	DefaultModel   = "eleven_multilingual_v2"
)

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

var DefaultVoiceSettings = VoiceSettings{
	Stability:       0.5,
	SimilarityBoost: 0.75,
	Style:           0,
	UseSpeakerBoost: true,
}

type ElevenLabs struct {
	BaseURL  string
	APIKey   string
	VoiceID  string
	Model    string
	Settings VoiceSettings
	Client   *http.Client
}

func NewElevenLabs(apiKey, voiceID, model, baseURL string) *ElevenLabs {
	e := &ElevenLabs{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		VoiceID:  voiceID,
		Model:    model,
		Settings: DefaultVoiceSettings,
		Client:   &http.Client{Timeout: 30 * time.Second},
	}
	if e.BaseURL == "" {
		e.BaseURL = DefaultBaseURL
	}
	if e.VoiceID == "" {
		e.VoiceID = DefaultVoiceID
	}
	if e.Model == "" {
		e.Model = DefaultModel
	}
	return e
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if strings.TrimSpace(e.APIKey) == "" {
		return nil, ErrNotConfigured
	}

	b, err := json.Marshal(ttsRequest{Text: text, ModelID: e.Model, VoiceSettings: e.Settings})
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(e.BaseURL, "/") + "/v1/text-to-speech/" + e.VoiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.APIKey)

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ElevenLabs API error: %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("ElevenLabs returned no audio")
	}
	return audio, nil
}

// MockSynthesizer never produces audio, so clients always take the
// on-device path. It still rejects empty text like the real provider.
type MockSynthesizer struct{}

func (MockSynthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return nil, ErrNotConfigured
}

// New picks a synthesizer by provider name: mock or elevenlabs.
func New(provider, apiKey, voiceID, model, baseURL string) (Synthesizer, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "mock", "none":
		return MockSynthesizer{}, nil
	case "elevenlabs":
		return NewElevenLabs(apiKey, voiceID, model, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", provider)
	}
}
