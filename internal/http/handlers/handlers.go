package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/opshub/backend/internal/ai"
	"github.com/opshub/backend/internal/db"
	"github.com/opshub/backend/internal/events"
	"github.com/opshub/backend/internal/http/middleware"
	"github.com/opshub/backend/internal/service"
	"github.com/opshub/backend/internal/speech"
)

type Handler struct {
	Store      db.Repository
	Dispatcher *service.Dispatcher
	Assistant  ai.Assistant
	Speech     speech.Synthesizer
	Broker     *events.Broker
	Validator  *validator.Validate
	Logger     zerolog.Logger

	RequestTimeout time.Duration
	PingInterval   time.Duration
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} ErrorResponse
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// writeStoreError maps repository sentinels onto the error envelope.
func (h *Handler) writeStoreError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
	case errors.Is(err, db.ErrTicketClosed):
		writeError(c, http.StatusConflict, "TICKET_CLOSED", "Ticket is already closed", nil)
	default:
		h.Logger.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg(what + " store error")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to access "+what, err.Error())
	}
}

// requestContext bounds provider calls and tags published changes with the
// request id.
func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := events.WithCorrelationID(c.Request.Context(), middleware.GetRequestID(c))
	if h.RequestTimeout > 0 {
		return context.WithTimeout(ctx, h.RequestTimeout)
	}
	return context.WithCancel(ctx)
}
