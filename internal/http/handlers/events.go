package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultPingInterval = 25 * time.Second

// @Summary Change stream
// @Description Server-sent events. Each "change" event names a table, an operation and a row id; clients refetch on receipt. A "ping" event is sent periodically.
// @Tags events
// @Produce text/event-stream
// @Success 200 {string} string
// @Router /api/events [get]
func (h *Handler) Events(c *gin.Context) {
	if h.Broker == nil {
		writeError(c, http.StatusServiceUnavailable, "EVENTS_UNAVAILABLE", "Change stream is not enabled", nil)
		return
	}
	changes, cancel := h.Broker.Subscribe()
	defer cancel()

	interval := h.PingInterval
	if interval <= 0 {
		interval = defaultPingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"at": time.Now().UTC()})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case change, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("change", change)
			return true
		case t := <-ticker.C:
			c.SSEvent("ping", gin.H{"at": t.UTC()})
			return true
		}
	})
}
