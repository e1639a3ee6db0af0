package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opshub/backend/internal/ai"
	"github.com/opshub/backend/internal/service"
	"github.com/opshub/backend/internal/speech"
)

type UtteranceRequest struct {
	Transcript string `json:"transcript" validate:"required"`
	Mode       string `json:"mode" validate:"omitempty,oneof=silent interactive"`
	Listener   string `json:"listener" validate:"max=120"`
}

type UtteranceResponse struct {
	service.Result
	AudioContent string `json:"audio_content,omitempty"`
}

// @Summary Submit a transcript
// @Description Runs the dispatch pipeline. Silent mode only reports the decision; interactive mode adds a reply, an acknowledgment and audio.
// @Tags utterances
// @Accept json
// @Produce json
// @Param body body UtteranceRequest true "Transcript"
// @Success 200 {object} UtteranceResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/utterances [post]
func (h *Handler) UtteranceCreate(c *gin.Context) {
	var req UtteranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	mode := service.Mode(req.Mode)
	if mode == "" {
		mode = service.ModeSilent
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	res, err := h.Dispatcher.HandleUtterance(ctx, service.Utterance{
		Transcript: req.Transcript,
		Mode:       mode,
		Listener:   req.Listener,
	})
	if errors.Is(err, service.ErrEmptyTranscript) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Transcript is empty", nil)
		return
	}
	if err != nil {
		h.writeStoreError(c, err, "ticket")
		return
	}

	resp := UtteranceResponse{Result: res}
	if len(res.Audio) > 0 {
		resp.AudioContent = base64.StdEncoding.EncodeToString(res.Audio)
	}
	c.JSON(http.StatusOK, resp)
}

type EvaluateRequest struct {
	Transcript string `json:"transcript" validate:"required"`
	Reply      string `json:"reply"`
}

// @Summary Evaluate a transcript
// @Description Runs the rules only. Nothing is stored.
// @Tags utterances
// @Accept json
// @Produce json
// @Param body body EvaluateRequest true "Transcript"
// @Success 200 {object} dispatch.Decision
// @Failure 400 {object} ErrorResponse
// @Router /api/evaluate [post]
func (h *Handler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.Dispatcher.Evaluate(req.Transcript, req.Reply))
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

// @Summary Conversational reply
// @Description Always answers 200. Provider failures and bad payloads yield the fixed acknowledgment.
// @Tags assistant
// @Accept json
// @Produce json
// @Param body body ChatRequest true "Message"
// @Success 200 {object} ChatResponse
// @Router /api/chat [post]
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Logger.Warn().Err(err).Msg("chat payload rejected")
		c.JSON(http.StatusOK, ChatResponse{Response: ai.FallbackReply})
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	reply, _ := ai.WithFallback(h.Assistant, h.Logger).Reply(ctx, req.Message)
	c.JSON(http.StatusOK, ChatResponse{Response: reply})
}

type SpeechRequest struct {
	Text string `json:"text"`
}

type SpeechResponse struct {
	AudioContent string `json:"audioContent"`
}

type SpeechError struct {
	Error string `json:"error"`
}

// @Summary Synthesize speech
// @Description Returns base64 audio/mpeg. Any failure is a 400 so the client can use its own voice.
// @Tags speech
// @Accept json
// @Produce json
// @Param body body SpeechRequest true "Text"
// @Success 200 {object} SpeechResponse
// @Failure 400 {object} SpeechError
// @Router /api/speech [post]
func (h *Handler) SpeechCreate(c *gin.Context) {
	var req SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, SpeechError{Error: "Text is required"})
		return
	}
	if h.Speech == nil {
		c.JSON(http.StatusBadRequest, SpeechError{Error: speech.ErrNotConfigured.Error()})
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	audio, err := h.Speech.Synthesize(ctx, req.Text)
	if err != nil {
		if !errors.Is(err, speech.ErrEmptyText) && !errors.Is(err, speech.ErrNotConfigured) {
			h.Logger.Warn().Err(err).Msg("speech synthesis failed")
		}
		c.JSON(http.StatusBadRequest, SpeechError{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SpeechResponse{AudioContent: base64.StdEncoding.EncodeToString(audio)})
}
