package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	"github.com/noah-isme/smallgroups-admin-api/pkg/response"
)

type leaderService interface {
	Group(ctx context.Context, leaderID string) (*models.Group, error)
	Home(ctx context.Context, leaderID, date string) (*models.LeaderHome, error)
	Members(ctx context.Context, leaderID string) ([]models.Person, error)
	UpdateMeeting(ctx context.Context, leaderID string, meetingID int64, req models.UpdateMeetingRequest) (*models.MeetingView, error)
	Attendance(ctx context.Context, leaderID string, meetingID int64) ([]models.AttendanceEntry, error)
	MarkPresent(ctx context.Context, leaderID string, meetingID int64, req models.MarkPresentRequest) (*models.AttendanceMark, error)
	AddVisitor(ctx context.Context, leaderID string, meetingID int64, req models.AddVisitorRequest) (*models.VisitorResult, error)
	ToggleNew(ctx context.Context, leaderID string, markID int64, req models.ToggleNewRequest) (*models.AttendanceMark, error)
	DeleteMark(ctx context.Context, leaderID string, markID int64) error
}

// LeaderHandler serves the weekly meeting workflow of group leaders.
type LeaderHandler struct {
	service leaderService
}

// NewLeaderHandler constructs the handler.
func NewLeaderHandler(svc leaderService) *LeaderHandler {
	return &LeaderHandler{service: svc}
}

// Group godoc
// @Summary Leader's group
// @Tags Leader
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leader/group [get]
func (h *LeaderHandler) Group(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	group, err := h.service.Group(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, group, nil)
}

// Members godoc
// @Summary Members of the leader's group
// @Tags Leader
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leader/members [get]
func (h *LeaderHandler) Members(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	members, err := h.service.Members(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}

// Meeting godoc
// @Summary Open the meeting of a date
// @Description Returns the group, the meeting of the date (created on first access), members and marks
// @Tags Leader
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD). Defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leader/meetings [get]
func (h *LeaderHandler) Meeting(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	home, err := h.service.Home(c.Request.Context(), claims.UserID, c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, home, nil)
}

// UpdateMeeting godoc
// @Summary Update meeting details
// @Tags Leader
// @Accept json
// @Produce json
// @Param id path int true "Meeting ID"
// @Param payload body models.UpdateMeetingRequest true "Meeting details"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /leader/meetings/{id} [put]
func (h *LeaderHandler) UpdateMeeting(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateMeetingRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.UpdateMeeting(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Attendance godoc
// @Summary Marks of a meeting
// @Tags Leader
// @Produce json
// @Param id path int true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Router /leader/meetings/{id}/attendance [get]
func (h *LeaderHandler) Attendance(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	entries, err := h.service.Attendance(c.Request.Context(), claims.UserID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// MarkPresent godoc
// @Summary Mark a member present
// @Tags Leader
// @Accept json
// @Produce json
// @Param id path int true "Meeting ID"
// @Param payload body models.MarkPresentRequest true "Person"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leader/meetings/{id}/attendance [post]
func (h *LeaderHandler) MarkPresent(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.MarkPresentRequest
	if !bindJSON(c, &req) {
		return
	}
	mark, err := h.service.MarkPresent(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, mark)
}

// AddVisitor godoc
// @Summary Register a visitor and mark them present
// @Tags Leader
// @Accept json
// @Produce json
// @Param id path int true "Meeting ID"
// @Param payload body models.AddVisitorRequest true "Visitor"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leader/meetings/{id}/visitors [post]
func (h *LeaderHandler) AddVisitor(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.AddVisitorRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.service.AddVisitor(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ToggleNew godoc
// @Summary Flag a mark as new attendance
// @Tags Leader
// @Accept json
// @Produce json
// @Param id path int true "Attendance ID"
// @Param payload body models.ToggleNewRequest true "Flag"
// @Success 200 {object} response.Envelope
// @Router /leader/attendance/{id}/new [patch]
func (h *LeaderHandler) ToggleNew(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req models.ToggleNewRequest
	if !bindJSON(c, &req) {
		return
	}
	mark, err := h.service.ToggleNew(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mark, nil)
}

// DeleteMark godoc
// @Summary Remove a mark
// @Tags Leader
// @Param id path int true "Attendance ID"
// @Success 204 {object} response.Envelope
// @Router /leader/attendance/{id} [delete]
func (h *LeaderHandler) DeleteMark(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteMark(c.Request.Context(), claims.UserID, id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
