package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

type fakeLeaderService struct {
	leaderService

	leaderID  string
	meetingID int64
	date      string
	markReq   models.MarkPresentRequest
	deleted   int64
	markErr   error
}

func (f *fakeLeaderService) Home(ctx context.Context, leaderID, date string) (*models.LeaderHome, error) {
	f.leaderID, f.date = leaderID, date
	return &models.LeaderHome{Group: models.Group{ID: 10, Name: "GE-N-Ana"}}, nil
}

func (f *fakeLeaderService) MarkPresent(ctx context.Context, leaderID string, meetingID int64, req models.MarkPresentRequest) (*models.AttendanceMark, error) {
	f.leaderID, f.meetingID, f.markReq = leaderID, meetingID, req
	if f.markErr != nil {
		return nil, f.markErr
	}
	return &models.AttendanceMark{ID: 5, MeetingID: meetingID, PersonID: &req.PersonID}, nil
}

func (f *fakeLeaderService) DeleteMark(ctx context.Context, leaderID string, markID int64) error {
	f.leaderID, f.deleted = leaderID, markID
	return nil
}

func TestLeaderHandlerMeetingUsesDateQuery(t *testing.T) {
	svc := &fakeLeaderService{}
	handler := NewLeaderHandler(svc)

	c, w := newGinContext(http.MethodGet, "/leader/meetings?date=2024-03-04", nil)
	withClaims(c, "leader-1", models.RoleLeader)
	handler.Meeting(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "leader-1", svc.leaderID)
	assert.Equal(t, "2024-03-04", svc.date)
	assert.Contains(t, string(decode(t, w).Data), `"GE-N-Ana"`)
}

func TestLeaderHandlerMarkPresent(t *testing.T) {
	svc := &fakeLeaderService{}
	handler := NewLeaderHandler(svc)

	c, w := newGinContext(http.MethodPost, "/leader/meetings/7/attendance", map[string]string{"person_id": "p-1"})
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	withClaims(c, "leader-1", models.RoleLeader)
	handler.MarkPresent(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(7), svc.meetingID)
	assert.Equal(t, "p-1", svc.markReq.PersonID)
}

func TestLeaderHandlerMarkPresentConflict(t *testing.T) {
	handler := NewLeaderHandler(&fakeLeaderService{markErr: appErrors.ErrAlreadyMarked})

	c, w := newGinContext(http.MethodPost, "/leader/meetings/7/attendance", map[string]string{"person_id": "p-1"})
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	withClaims(c, "leader-1", models.RoleLeader)
	handler.MarkPresent(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLeaderHandlerRejectsBadInput(t *testing.T) {
	svc := &fakeLeaderService{}
	handler := NewLeaderHandler(svc)

	c, w := newGinContext(http.MethodPost, "/leader/meetings/x/attendance", map[string]string{"person_id": "p-1"})
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	withClaims(c, "leader-1", models.RoleLeader)
	handler.MarkPresent(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodPost, "/leader/meetings/7/attendance", nil)
	c.Params = gin.Params{{Key: "id", Value: "7"}}
	withClaims(c, "leader-1", models.RoleLeader)
	handler.MarkPresent(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.meetingID)
}

func TestLeaderHandlerDeleteMark(t *testing.T) {
	svc := &fakeLeaderService{}
	handler := NewLeaderHandler(svc)

	c, _ := newGinContext(http.MethodDelete, "/leader/attendance/5", nil)
	c.Params = gin.Params{{Key: "id", Value: "5"}}
	withClaims(c, "leader-1", models.RoleLeader)
	handler.DeleteMark(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, int64(5), svc.deleted)
}
