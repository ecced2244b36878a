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

type fakeBethelService struct {
	bethelService

	onlyActive bool
	req        models.BethelAttendanceRequest
	claims     *models.JWTClaims
	excuse     *string
	err        error
}

func (f *fakeBethelService) List(ctx context.Context, onlyActive bool) ([]models.Bethel, error) {
	f.onlyActive = onlyActive
	return []models.Bethel{{ID: 1, Name: "Bethel May"}}, nil
}

func (f *fakeBethelService) RecordAttendance(ctx context.Context, bethelID int64, req models.BethelAttendanceRequest, claims *models.JWTClaims) (*models.BethelAttendanceRow, error) {
	f.req, f.claims = req, claims
	if f.err != nil {
		return nil, f.err
	}
	return &models.BethelAttendanceRow{ID: 9, BethelID: bethelID, GroupID: req.GroupID, Date: req.Date, RealAttendance: req.RealAttendance}, nil
}

func (f *fakeBethelService) UpdateExcuse(ctx context.Context, staffID int64, excuse *string) (*models.BethelStaff, error) {
	f.excuse = excuse
	return &models.BethelStaff{ID: staffID, Excuse: excuse}, nil
}

func TestBethelHandlerListActiveOnly(t *testing.T) {
	svc := &fakeBethelService{}
	handler := NewBethelHandler(svc)

	c, w := newGinContext(http.MethodGet, "/bethels?active=true", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.onlyActive)
}

func TestBethelHandlerRecordAttendance(t *testing.T) {
	svc := &fakeBethelService{}
	handler := NewBethelHandler(svc)

	body := map[string]interface{}{"group_id": 10, "date": "2024-05-04", "real_attendance": 12, "prospects": 15}
	c, w := newGinContext(http.MethodPost, "/bethels/3/attendance", body)
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	withClaims(c, "leader-1", models.RoleLeader)
	handler.RecordAttendance(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(10), svc.req.GroupID)
	assert.Equal(t, 15, svc.req.Prospects)
	assert.Equal(t, "leader-1", svc.claims.UserID)
	assert.Contains(t, string(decode(t, w).Data), `"bethel_id":3`)
}

func TestBethelHandlerRecordAttendanceForbidden(t *testing.T) {
	handler := NewBethelHandler(&fakeBethelService{err: appErrors.Clone(appErrors.ErrForbidden, "not your group")})

	c, w := newGinContext(http.MethodPost, "/bethels/3/attendance", map[string]interface{}{"group_id": 11, "date": "2024-05-04"})
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	withClaims(c, "leader-1", models.RoleLeader)
	handler.RecordAttendance(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBethelHandlerUpdateExcuseClears(t *testing.T) {
	svc := &fakeBethelService{excuse: new(string)}
	handler := NewBethelHandler(svc)

	c, w := newGinContext(http.MethodPatch, "/bethels/staff/4/excuse", map[string]interface{}{"excuse": nil})
	c.Params = gin.Params{{Key: "staffId", Value: "4"}}
	handler.UpdateExcuse(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, svc.excuse)
}
