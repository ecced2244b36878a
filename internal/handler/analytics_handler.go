package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smallgroups-admin-api/internal/analytics"
	"github.com/noah-isme/smallgroups-admin-api/internal/dto"
	"github.com/noah-isme/smallgroups-admin-api/internal/middleware"
	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
	"github.com/noah-isme/smallgroups-admin-api/pkg/response"
)

type analyticsService interface {
	Attendance(ctx context.Context, claims *models.JWTClaims, q dto.AnalyticsQuery) (*dto.AttendanceAnalyticsResponse, bool, error)
	Bethel(ctx context.Context, claims *models.JWTClaims, q dto.AnalyticsQuery) (*dto.BethelAnalyticsResponse, bool, error)
	SystemMetrics() models.SystemMetrics
}

// AnalyticsHandler exposes dashboard-ready analytics endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Attendance godoc
// @Summary Attendance analytics
// @Description Time series, per group and per leader attendance within the caller's scope
// @Tags Analytics
// @Produce json
// @Param granularity query string false "week, month, quarter or year"
// @Param date_from query string false "YYYY-MM-DD, defaults to the first day of the month"
// @Param date_to query string false "YYYY-MM-DD, defaults to today"
// @Param territory_ids query string false "Comma separated territory ids"
// @Param group_ids query string false "Comma separated group ids"
// @Param top query int false "Top groups and leaders (5 or 8)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /analytics/attendance [get]
func (h *AnalyticsHandler) Attendance(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	query, err := parseAnalyticsQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	result, cacheHit, err := h.analytics.Attendance(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c, start))
}

// Bethel godoc
// @Summary Bethel analytics
// @Description KPIs, per date, per group and bucketed series of Bethel attendance
// @Tags Analytics
// @Produce json
// @Param granularity query string false "week, month, quarter or year"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD"
// @Param territory_ids query string false "Comma separated territory ids"
// @Param group_ids query string false "Comma separated group ids"
// @Param bethel_id query int false "Bethel ID"
// @Param top query int false "Top groups (5 or 8)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /analytics/bethel [get]
func (h *AnalyticsHandler) Bethel(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	query, err := parseAnalyticsQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	result, cacheHit, err := h.analytics.Bethel(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c, start))
}

// System godoc
// @Summary System metrics snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), nil)
}

func parseAnalyticsQuery(c *gin.Context) (dto.AnalyticsQuery, error) {
	query := dto.AnalyticsQuery{
		Granularity: analytics.Granularity(strings.ToLower(strings.TrimSpace(c.Query("granularity")))),
		DateFrom:    strings.TrimSpace(c.Query("date_from")),
		DateTo:      strings.TrimSpace(c.Query("date_to")),
	}
	var err error
	if query.TerritoryIDs, err = parseIDList(c.Query("territory_ids")); err != nil {
		return query, err
	}
	if query.GroupIDs, err = parseIDList(c.Query("group_ids")); err != nil {
		return query, err
	}
	if raw := c.Query("bethel_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return query, appErrors.Clone(appErrors.ErrValidation, "invalid bethel_id")
		}
		query.BethelID = id
	}
	if raw := c.Query("top"); raw != "" {
		top, err := strconv.Atoi(raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, "invalid top")
		}
		query.Top = top
	}
	return query, nil
}
