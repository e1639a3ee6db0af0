package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestElevenLabsSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/"+DefaultVoiceID {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "key" || r.Header.Get("Accept") != "audio/mpeg" {
			t.Errorf("unexpected headers %v", r.Header)
		}
		var req ttsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Text != "hello" || req.ModelID != DefaultModel || req.VoiceSettings != DefaultVoiceSettings {
			t.Errorf("unexpected body %+v", req)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte{0xff, 0xfb, 0x90})
	}))
	defer srv.Close()

	e := NewElevenLabs("key", "", "", srv.URL)
	audio, err := e.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(audio) != 3 {
		t.Fatalf("unexpected audio length %d", len(audio))
	}
}

func TestElevenLabsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewElevenLabs("key", "", "", srv.URL).Synthesize(context.Background(), "hello")
	if err == nil {
		t.Fatalf("expected provider error")
	}
}

func TestElevenLabsPreconditions(t *testing.T) {
	ctx := context.Background()
	if _, err := NewElevenLabs("key", "", "", "").Synthesize(ctx, "  "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if _, err := NewElevenLabs("", "", "", "").Synthesize(ctx, "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewSynthesizer(t *testing.T) {
	s, err := New("mock", "", "", "", "")
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("mock should report ErrNotConfigured, got %v", err)
	}
	if s, err := New("ElevenLabs", "k", "", "", ""); err != nil {
		t.Fatalf("elevenlabs: %v", err)
	} else if _, ok := s.(*ElevenLabs); !ok {
		t.Fatalf("expected *ElevenLabs, got %T", s)
	}
	if _, err := New("polly", "", "", "", ""); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
