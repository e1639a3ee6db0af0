package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/opshub/backend/internal/models"
	"github.com/opshub/backend/internal/service"
)

// @Summary List technicians
// @Tags technicians
// @Produce json
// @Param status query string false "available, busy or offline"
// @Success 200 {object} map[string]any
// @Failure 400 {object} ErrorResponse
// @Router /api/technicians [get]
func (h *Handler) TechniciansList(c *gin.Context) {
	status := models.TechnicianStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	if status != "" && !status.Valid() {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid status", string(status))
		return
	}
	items, err := h.Store.ListTechnicians(c.Request.Context(), status)
	if err != nil {
		h.writeStoreError(c, err, "technicians")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

type CreateTechnicianRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// @Summary Add a technician
// @Tags technicians
// @Accept json
// @Produce json
// @Param X-Admin-Key header string false "Admin key"
// @Param body body CreateTechnicianRequest true "Technician"
// @Success 201 {object} models.Technician
// @Failure 400 {object} ErrorResponse
// @Router /api/technicians [post]
func (h *Handler) TechnicianCreate(c *gin.Context) {
	var req CreateTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	tech, err := h.Dispatcher.AddTechnician(ctx, req.Name)
	if errors.Is(err, service.ErrEmptyName) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Name is required", nil)
		return
	}
	if err != nil {
		h.writeStoreError(c, err, "technician")
		return
	}
	c.JSON(http.StatusCreated, tech)
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available busy offline"`
}

// @Summary Set technician status
// @Tags technicians
// @Accept json
// @Produce json
// @Param X-Admin-Key header string false "Admin key"
// @Param id path string true "Technician ID"
// @Param body body SetStatusRequest true "Status"
// @Success 200 {object} models.Technician
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/technicians/{id}/status [patch]
func (h *Handler) TechnicianSetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	ctx, cancel := h.requestContext(c)
	defer cancel()
	tech, err := h.Dispatcher.SetTechnicianStatus(ctx, c.Param("id"), models.TechnicianStatus(req.Status))
	if err != nil {
		h.writeStoreError(c, err, "technician")
		return
	}
	c.JSON(http.StatusOK, tech)
}
