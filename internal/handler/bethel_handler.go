package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	"github.com/noah-isme/smallgroups-admin-api/pkg/response"
)

type bethelService interface {
	List(ctx context.Context, onlyActive bool) ([]models.Bethel, error)
	Create(ctx context.Context, req models.BethelRequest, actorID string) (*models.Bethel, error)
	Update(ctx context.Context, id int64, req models.BethelRequest) (*models.Bethel, error)
	ToggleActive(ctx context.Context, id int64) (*models.Bethel, error)
	Delete(ctx context.Context, id int64, actorID string, meta models.LoginRequest) error
	Staff(ctx context.Context, bethelID int64) ([]models.BethelStaff, error)
	AssignRole(ctx context.Context, bethelID int64, req models.StaffRequest) (*models.BethelStaff, error)
	AddGuide(ctx context.Context, bethelID int64, req models.StaffRequest) (*models.BethelStaff, error)
	ToggleStaffActive(ctx context.Context, staffID int64) (*models.BethelStaff, error)
	UpdateExcuse(ctx context.Context, staffID int64, excuse *string) (*models.BethelStaff, error)
	RemoveStaff(ctx context.Context, staffID int64) error
	RecordAttendance(ctx context.Context, bethelID int64, req models.BethelAttendanceRequest, claims *models.JWTClaims) (*models.BethelAttendanceRow, error)
}

// BethelHandler exposes Bethel retreats, their staff and attendance.
type BethelHandler struct {
	service bethelService
}

// NewBethelHandler constructs the handler.
func NewBethelHandler(svc bethelService) *BethelHandler {
	return &BethelHandler{service: svc}
}

// List godoc
// @Summary List Bethels
// @Tags Bethels
// @Produce json
// @Param active query bool false "Only active Bethels"
// @Success 200 {object} response.Envelope
// @Router /bethels [get]
func (h *BethelHandler) List(c *gin.Context) {
	bethels, err := h.service.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bethels, nil)
}

// Create godoc
// @Summary Create Bethel
// @Tags Bethels
// @Accept json
// @Produce json
// @Param payload body models.BethelRequest true "Bethel"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /bethels [post]
func (h *BethelHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.BethelRequest
	if !bindJSON(c, &req) {
		return
	}
	bethel, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bethel)
}

// Update godoc
// @Summary Update Bethel
// @Tags Bethels
// @Accept json
// @Produce json
// @Param id path int true "Bethel ID"
// @Param payload body models.BethelRequest true "Bethel"
// @Success 200 {object} response.Envelope
// @Router /bethels/{id} [put]
func (h *BethelHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.BethelRequest
	if !bindJSON(c, &req) {
		return
	}
	bethel, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bethel, nil)
}

// ToggleActive godoc
// @Summary Activate or deactivate Bethel
// @Tags Bethels
// @Produce json
// @Param id path int true "Bethel ID"
// @Success 200 {object} response.Envelope
// @Router /bethels/{id}/active [patch]
func (h *BethelHandler) ToggleActive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	bethel, err := h.service.ToggleActive(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bethel, nil)
}

// Delete godoc
// @Summary Delete Bethel
// @Tags Bethels
// @Param id path int true "Bethel ID"
// @Success 204 {object} response.Envelope
// @Router /bethels/{id} [delete]
func (h *BethelHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id, claims.UserID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Staff godoc
// @Summary Staff of a Bethel
// @Tags Bethels
// @Produce json
// @Param id path int true "Bethel ID"
// @Success 200 {object} response.Envelope
// @Router /bethels/{id}/staff [get]
func (h *BethelHandler) Staff(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	staff, err := h.service.Staff(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, nil)
}

// AssignRole godoc
// @Summary Assign a coordinator or spiritual guide
// @Description Replaces the current holder of the role for the group type
// @Tags Bethels
// @Accept json
// @Produce json
// @Param id path int true "Bethel ID"
// @Param payload body models.StaffRequest true "Staff"
// @Success 200 {object} response.Envelope
// @Router /bethels/{id}/staff [post]
func (h *BethelHandler) AssignRole(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.StaffRequest
	if !bindJSON(c, &req) {
		return
	}
	staff, err := h.service.AssignRole(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, nil)
}

// AddGuide godoc
// @Summary Add a guide
// @Tags Bethels
// @Accept json
// @Produce json
// @Param id path int true "Bethel ID"
// @Param payload body models.StaffRequest true "Guide"
// @Success 201 {object} response.Envelope
// @Router /bethels/{id}/guides [post]
func (h *BethelHandler) AddGuide(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.StaffRequest
	if !bindJSON(c, &req) {
		return
	}
	staff, err := h.service.AddGuide(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, staff)
}

// ToggleStaffActive godoc
// @Summary Activate or deactivate a staff entry
// @Tags Bethels
// @Produce json
// @Param staffId path int true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /bethels/staff/{staffId}/active [patch]
func (h *BethelHandler) ToggleStaffActive(c *gin.Context) {
	id, ok := pathID(c, "staffId")
	if !ok {
		return
	}
	staff, err := h.service.ToggleStaffActive(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, nil)
}

// UpdateExcuse godoc
// @Summary Set or clear a staff excuse
// @Tags Bethels
// @Accept json
// @Produce json
// @Param staffId path int true "Staff ID"
// @Success 200 {object} response.Envelope
// @Router /bethels/staff/{staffId}/excuse [patch]
func (h *BethelHandler) UpdateExcuse(c *gin.Context) {
	id, ok := pathID(c, "staffId")
	if !ok {
		return
	}
	var payload struct {
		Excuse *string `json:"excuse"`
	}
	if !bindJSON(c, &payload) {
		return
	}
	staff, err := h.service.UpdateExcuse(c.Request.Context(), id, payload.Excuse)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, staff, nil)
}

// RemoveStaff godoc
// @Summary Remove a staff entry
// @Tags Bethels
// @Param staffId path int true "Staff ID"
// @Success 204 {object} response.Envelope
// @Router /bethels/staff/{staffId} [delete]
func (h *BethelHandler) RemoveStaff(c *gin.Context) {
	id, ok := pathID(c, "staffId")
	if !ok {
		return
	}
	if err := h.service.RemoveStaff(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RecordAttendance godoc
// @Summary Record a group's Bethel attendance for a date
// @Tags Bethels
// @Accept json
// @Produce json
// @Param id path int true "Bethel ID"
// @Param payload body models.BethelAttendanceRequest true "Attendance"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /bethels/{id}/attendance [post]
func (h *BethelHandler) RecordAttendance(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.BethelAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	row, err := h.service.RecordAttendance(c.Request.Context(), id, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, row, nil)
}
