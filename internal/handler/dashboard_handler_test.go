package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smallgroups-admin-api/internal/dto"
)

type fakeDashboard struct {
	resp *dto.AdminDashboardResponse
	hit  bool
	err  error
}

func (f fakeDashboard) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	return f.resp, f.hit, f.err
}

func TestDashboardHandlerAdmin(t *testing.T) {
	resp := &dto.AdminDashboardResponse{Counts: dto.DashboardCounts{Leaders: 4, Groups: 3}}
	handler := NewDashboardHandler(fakeDashboard{resp: resp, hit: true})

	c, w := newGinContext(http.MethodGet, "/dashboard", nil)
	handler.Admin(c)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Contains(t, string(env.Data), `"leaders":4`)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")
}

func TestDashboardHandlerError(t *testing.T) {
	handler := NewDashboardHandler(fakeDashboard{err: errors.New("boom")})

	c, w := newGinContext(http.MethodGet, "/dashboard", nil)
	handler.Admin(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	c, w = newGinContext(http.MethodGet, "/dashboard", nil)
	NewDashboardHandler(nil).Admin(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
