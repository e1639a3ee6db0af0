package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/opshub/backend/internal/ai"
	"github.com/opshub/backend/internal/db"
	"github.com/opshub/backend/internal/dispatch"
	"github.com/opshub/backend/internal/events"
	"github.com/opshub/backend/internal/models"
	"github.com/opshub/backend/internal/service"
	"github.com/opshub/backend/internal/speech"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSpeech struct{ err error }

func (f fakeSpeech) Synthesize(_ context.Context, text string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(text) == "" {
		return nil, speech.ErrEmptyText
	}
	return []byte("audio:" + text), nil
}

type failingAssistant struct{}

func (failingAssistant) Reply(context.Context, string) (string, error) {
	return "", errors.New("provider down")
}

func newTestHandler(t *testing.T) (*Handler, *events.Broker) {
	t.Helper()
	ctx := context.Background()
	store, err := db.NewSQLite(ctx, filepath.Join(t.TempDir(), "opshub.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	broker := events.NewBroker()
	assistant := ai.MockAssistant{}
	synth := fakeSpeech{}
	d := &service.Dispatcher{
		Store:     store,
		Engine:    dispatch.Default(),
		Assistant: assistant,
		Speech:    synth,
		Notifier:  broker,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) },
	}
	return &Handler{
		Store:      store,
		Dispatcher: d,
		Assistant:  assistant,
		Speech:     synth,
		Broker:     broker,
		Validator:  validator.New(),
		Logger:     zerolog.Nop(),
	}, broker
}

func testRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/api/technicians", h.TechniciansList)
	r.POST("/api/technicians", h.TechnicianCreate)
	r.PATCH("/api/technicians/:id/status", h.TechnicianSetStatus)
	r.GET("/api/tickets", h.TicketsList)
	r.GET("/api/tickets/:id", h.TicketDetails)
	r.POST("/api/tickets/:id/close", h.TicketClose)
	r.POST("/api/utterances", h.UtteranceCreate)
	r.POST("/api/evaluate", h.Evaluate)
	r.POST("/api/chat", h.Chat)
	r.POST("/api/speech", h.SpeechCreate)
	r.GET("/api/events", h.Events)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestUtteranceInteractiveFlow(t *testing.T) {
	h, _ := newTestHandler(t)
	r := testRouter(h)

	if w := doJSON(t, r, http.MethodPost, "/api/technicians", `{"name":"Maria"}`); w.Code != http.StatusCreated {
		t.Fatalf("create technician: %d %s", w.Code, w.Body.String())
	}

	w := doJSON(t, r, http.MethodPost, "/api/utterances", `{"transcript":"There is a water leak in building A","mode":"interactive","listener":"lobby"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	resp := decode[UtteranceResponse](t, w)
	if resp.Decision.Outcome != dispatch.OutcomeCreateTicket || resp.Ticket == nil {
		t.Fatalf("expected ticket, got %s", w.Body.String())
	}
	if resp.Ticket.Priority != models.PriorityP1 || resp.Ticket.TechnicianName != "Maria" {
		t.Fatalf("unexpected ticket %+v", resp.Ticket)
	}
	if resp.Acknowledgment != "Ticket created successfully with priority P1. Technician Maria has been assigned." {
		t.Fatalf("unexpected acknowledgment %q", resp.Acknowledgment)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil || !strings.HasPrefix(string(audio), "audio:") {
		t.Fatalf("expected base64 audio, got %q", resp.AudioContent)
	}

	w = doJSON(t, r, http.MethodGet, "/api/tickets/"+resp.Ticket.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("get ticket: %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/technicians?status=busy", "")
	list := decode[struct{ Items []models.Technician }](t, w)
	if len(list.Items) != 1 || list.Items[0].Name != "Maria" {
		t.Fatalf("expected Maria busy, got %+v", list.Items)
	}

	w = doJSON(t, r, http.MethodPost, "/api/tickets/"+resp.Ticket.ID+"/close", "")
	if w.Code != http.StatusOK {
		t.Fatalf("close: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/api/tickets/"+resp.Ticket.ID+"/close", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second close, got %d", w.Code)
	}
}

func TestUtteranceValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	r := testRouter(h)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"not json", `nope`, "INVALID_REQUEST"},
		{"missing transcript", `{"mode":"silent"}`, "VALIDATION_ERROR"},
		{"bad mode", `{"transcript":"leak in building A","mode":"loud"}`, "VALIDATION_ERROR"},
		{"blank transcript", `{"transcript":"   "}`, "VALIDATION_ERROR"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/utterances", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			resp := decode[ErrorResponse](t, w)
			if resp.Error.Code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, resp.Error.Code)
			}
		})
	}
}

func TestUtteranceSilentSuppressed(t *testing.T) {
	h, _ := newTestHandler(t)
	r := testRouter(h)

	w := doJSON(t, r, http.MethodPost, "/api/utterances", `{"transcript":"my toy is broken in building A"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode[UtteranceResponse](t, w)
	if resp.Decision.Outcome != dispatch.OutcomeSuppressed || resp.Reply != "" || resp.Ticket != nil {
		t.Fatalf("unexpected response %s", w.Body.String())
	}
}

func TestEvaluate(t *testing.T) {
	h, _ := newTestHandler(t)
	r := testRouter(h)

	w := doJSON(t, r, http.MethodPost, "/api/evaluate", `{"transcript":"the wifi is down in building D"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	d := decode[dispatch.Decision](t, w)
	if d.Outcome != dispatch.OutcomeCreateTicket || d.Priority != models.PriorityP3 || d.Building != "Building D" {
		t.Fatalf("unexpected decision %+v", d)
	}
	tickets, _ := h.Store.ListTickets(context.Background(), models.TicketFilter{})
	if len(tickets) != 0 {
		t.Fatalf("evaluate must not write")
	}
}

func TestChatAlwaysAnswers(t *testing.T) {
	h, _ := newTestHandler(t)
	h.Assistant = failingAssistant{}
	r := testRouter(h)

	for _, body := range []string{`{"message":"hello"}`, `garbage`} {
		w := doJSON(t, r, http.MethodPost, "/api/chat", body)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		if resp := decode[ChatResponse](t, w); resp.Response != ai.FallbackReply {
			t.Fatalf("expected fallback, got %q", resp.Response)
		}
	}
}

func TestSpeech(t *testing.T) {
	h, _ := newTestHandler(t)
	r := testRouter(h)

	w := doJSON(t, r, http.MethodPost, "/api/speech", `{"text":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp := decode[SpeechResponse](t, w); resp.AudioContent != base64.StdEncoding.EncodeToString([]byte("audio:hello")) {
		t.Fatalf("unexpected audio %q", resp.AudioContent)
	}

	w = doJSON(t, r, http.MethodPost, "/api/speech", `{"text":""}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty text, got %d", w.Code)
	}
	if resp := decode[SpeechError](t, w); resp.Error == "" {
		t.Fatalf("expected error message")
	}

	h.Speech = speech.MockSynthesizer{}
	w = doJSON(t, r, http.MethodPost, "/api/speech", `{"text":"hello"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when unconfigured, got %d", w.Code)
	}
}

func TestTicketsListValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	r := testRouter(h)

	if w := doJSON(t, r, http.MethodGet, "/api/tickets?priority=P9", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad priority, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/tickets?status=pending", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/tickets/missing", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w := doJSON(t, r, http.MethodGet, "/api/tickets?priority=p1&limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestTicketsListReportsAppliedPage(t *testing.T) {
	h, _ := newTestHandler(t)
	r := testRouter(h)

	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"?limit=500&offset=-4", 50, 0},
		{"?limit=20&offset=40", 20, 40},
	}
	for _, tc := range tests {
		w := doJSON(t, r, http.MethodGet, "/api/tickets"+tc.query, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", tc.query, w.Code)
		}
		page := decode[struct {
			Limit  int `json:"limit"`
			Offset int `json:"offset"`
		}](t, w)
		if page.Limit != tc.wantLimit || page.Offset != tc.wantOffset {
			t.Fatalf("%q: got limit=%d offset=%d", tc.query, page.Limit, page.Offset)
		}
	}
}

func TestTechnicianStatus(t *testing.T) {
	h, _ := newTestHandler(t)
	r := testRouter(h)

	w := doJSON(t, r, http.MethodPost, "/api/technicians", `{"name":"Alex"}`)
	tech := decode[models.Technician](t, w)

	if w := doJSON(t, r, http.MethodPatch, "/api/technicians/"+tech.ID+"/status", `{"status":"asleep"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPatch, "/api/technicians/nope/status", `{"status":"busy"}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodPatch, "/api/technicians/"+tech.ID+"/status", `{"status":"offline"}`)
	if w.Code != http.StatusOK || decode[models.Technician](t, w).Status != models.TechnicianOffline {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodGet, "/api/technicians?status=sleeping", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status filter, got %d", w.Code)
	}
}

func TestEventsStream(t *testing.T) {
	h, broker := newTestHandler(t)
	srv := httptest.NewServer(testRouter(h))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && name != "":
				return name, data
			}
		}
	}

	if name, _ := readEvent(); name != "ready" {
		t.Fatalf("expected ready event, got %q", name)
	}
	for broker.Subscribers() == 0 {
		time.Sleep(10 * time.Millisecond)
	}
	_ = broker.Publish(ctx, events.Change{Table: events.TableTickets, Op: events.OpInsert, ID: "t-1"})

	name, data := readEvent()
	if name != "change" {
		t.Fatalf("expected change event, got %q", name)
	}
	var c events.Change
	if err := json.NewDecoder(bytes.NewBufferString(data)).Decode(&c); err != nil || c.ID != "t-1" {
		t.Fatalf("unexpected change payload %q", data)
	}
}
