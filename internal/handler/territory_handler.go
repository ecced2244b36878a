package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	"github.com/noah-isme/smallgroups-admin-api/internal/service"
	"github.com/noah-isme/smallgroups-admin-api/pkg/response"
)

// TerritoryHandler exposes territory administration.
type TerritoryHandler struct {
	service *service.TerritoryService
}

// NewTerritoryHandler constructs the handler.
func NewTerritoryHandler(svc *service.TerritoryService) *TerritoryHandler {
	return &TerritoryHandler{service: svc}
}

// List godoc
// @Summary List territories
// @Tags Territories
// @Produce json
// @Param active query bool false "Only active territories"
// @Success 200 {object} response.Envelope
// @Router /territories [get]
func (h *TerritoryHandler) List(c *gin.Context) {
	territories, err := h.service.List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, territories, nil)
}

// Create godoc
// @Summary Create territory
// @Tags Territories
// @Accept json
// @Produce json
// @Param payload body models.TerritoryRequest true "Territory"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /territories [post]
func (h *TerritoryHandler) Create(c *gin.Context) {
	var req models.TerritoryRequest
	if !bindJSON(c, &req) {
		return
	}
	territory, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, territory)
}

// Update godoc
// @Summary Update territory
// @Tags Territories
// @Accept json
// @Produce json
// @Param id path int true "Territory ID"
// @Param payload body models.TerritoryRequest true "Territory"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /territories/{id} [put]
func (h *TerritoryHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.TerritoryRequest
	if !bindJSON(c, &req) {
		return
	}
	territory, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, territory, nil)
}

// ToggleActive godoc
// @Summary Activate or deactivate territory
// @Tags Territories
// @Produce json
// @Param id path int true "Territory ID"
// @Success 200 {object} response.Envelope
// @Router /territories/{id}/active [patch]
func (h *TerritoryHandler) ToggleActive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	territory, err := h.service.ToggleActive(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, territory, nil)
}

// Delete godoc
// @Summary Delete territory
// @Tags Territories
// @Param id path int true "Territory ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /territories/{id} [delete]
func (h *TerritoryHandler) Delete(c *gin.Context) {
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

// Distribution godoc
// @Summary Leaders and pastors per territory
// @Tags Territories
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /territories/distribution [get]
func (h *TerritoryHandler) Distribution(c *gin.Context) {
	rows, err := h.service.Distribution(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
