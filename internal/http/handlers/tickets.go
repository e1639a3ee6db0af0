package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opshub/backend/internal/db"
	"github.com/opshub/backend/internal/models"
)

// @Summary List tickets
// @Description Newest first.
// @Tags tickets
// @Produce json
// @Param status query string false "open or closed"
// @Param priority query string false "P1..P4"
// @Param building query string false "Building name, case-insensitive"
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Router /api/tickets [get]
func (h *Handler) TicketsList(c *gin.Context) {
	f := models.TicketFilter{
		Status:   models.TicketStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		Priority: models.Priority(strings.ToUpper(strings.TrimSpace(c.Query("priority")))),
		Building: strings.TrimSpace(c.Query("building")),
	}
	if f.Status != "" && f.Status != models.TicketOpen && f.Status != models.TicketClosed {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid status", string(f.Status))
		return
	}
	if f.Priority != "" && !f.Priority.Valid() {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid priority", string(f.Priority))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	f.Limit, f.Offset = db.NormalizePage(limit, offset)

	items, err := h.Store.ListTickets(c.Request.Context(), f)
	if err != nil {
		h.writeStoreError(c, err, "tickets")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": f.Limit, "offset": f.Offset})
}

// @Summary Ticket details
// @Tags tickets
// @Produce json
// @Param id path string true "Ticket ID"
// @Success 200 {object} models.Ticket
// @Failure 404 {object} ErrorResponse
// @Router /api/tickets/{id} [get]
func (h *Handler) TicketDetails(c *gin.Context) {
	ticket, err := h.Store.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err, "ticket")
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// @Summary Close a ticket
// @Description Frees the technician when this was their last open ticket.
// @Tags tickets
// @Produce json
// @Param X-Admin-Key header string false "Admin key"
// @Param id path string true "Ticket ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/tickets/{id}/close [post]
func (h *Handler) TicketClose(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	ticket, released, err := h.Dispatcher.CloseTicket(ctx, c.Param("id"))
	if err != nil {
		h.writeStoreError(c, err, "ticket")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket, "released_technician": released})
}
