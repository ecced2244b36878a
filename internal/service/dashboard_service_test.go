package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/internal/dto"
	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

type fakeRoleCounter struct {
	counts []models.RoleCount
	err    error
	calls  int
}

func (f *fakeRoleCounter) CountByRole(ctx context.Context) ([]models.RoleCount, error) {
	f.calls++
	return f.counts, f.err
}

type fixedCount int

func (f fixedCount) Count(ctx context.Context) (int, error) { return int(f), nil }

type fakeDistribution []models.TerritoryDistribution

func (f fakeDistribution) Distribution(ctx context.Context) ([]models.TerritoryDistribution, error) {
	return f, nil
}

type fakeBethelOverview struct {
	bethels []models.Bethel
	staff   []models.StaffRoleCount
}

func (f fakeBethelOverview) List(ctx context.Context, onlyActive bool) ([]models.Bethel, error) {
	return f.bethels, nil
}

func (f fakeBethelOverview) CountStaffByRole(ctx context.Context) ([]models.StaffRoleCount, error) {
	return f.staff, nil
}

func newTestDashboardService(roles *fakeRoleCounter, cache *CacheService) *DashboardService {
	svc := NewDashboardService(DashboardServiceParams{
		Roles:        roles,
		Territories:  fixedCount(3),
		Distribution: fakeDistribution{{TerritoryName: "Norte", Leaders: 4, Pastors: 1, Total: 5}},
		Groups:       fakeScopeGroups{{ID: 10, Name: "GE-N-Ana", TerritoryID: 1}},
		GroupCounter: fixedCount(1),
		Bethels: fakeBethelOverview{
			bethels: []models.Bethel{
				{ID: 1, Name: "A", Year: ptr(2023), StartsOn: ptr("2023-05-01")},
				{ID: 2, Name: "B", Year: ptr(2024), StartsOn: ptr("2024-06-01"), Active: true},
				{ID: 3, Name: "C", Active: true},
				{ID: 4, Name: "D", Year: ptr(2024), StartsOn: ptr("2024-03-10")},
			},
			staff: []models.StaffRoleCount{{RoleType: models.StaffRoleCoordinator, Total: 2}, {RoleType: models.StaffRoleGuide, Total: 5}},
		},
		Meetings: &fakeMeetingRange{meetings: []models.Meeting{{ID: 1, GroupID: 10, Date: "2024-03-05"}}},
		Marks:    fakeMarks{{ID: 1, MeetingID: 1, PersonID: ptr("p1")}},
		Cache:    cache,
		Logger:   zap.NewNop(),
	})
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestDashboardServiceAdmin(t *testing.T) {
	roles := &fakeRoleCounter{counts: []models.RoleCount{{Role: models.RoleAdmin, Total: 1}, {Role: models.RoleLeader, Total: 9}, {Role: models.RolePastor, Total: 2}}}
	svc := newTestDashboardService(roles, nil)
	defer svc.Close()

	summary, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Equal(t, dto.DashboardCounts{Leaders: 9, Pastors: 2, Admins: 1, Territories: 3, Groups: 1}, summary.Counts)
	assert.Len(t, summary.Distribution, 1)

	assert.Equal(t, 4, summary.Bethels.Total)
	assert.Equal(t, 2, summary.Bethels.Active)
	assert.Equal(t, 1, summary.Bethels.Upcoming)
	assert.Equal(t, 7, summary.Bethels.Staff)
	assert.Equal(t, []dto.BethelYearCount{{Year: "2024", Total: 2}, {Year: "2023", Total: 1}, {Year: unknownYear, Total: 1}}, summary.Bethels.ByYear)

	require.Len(t, summary.Growth, 12)
	assert.Equal(t, "M_2023-04", summary.Growth[0].Bucket)
	assert.Equal(t, 1, summary.Growth[11].Attendance)
}

func TestDashboardServiceCachesSummary(t *testing.T) {
	roles := &fakeRoleCounter{}
	cache := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc := newTestDashboardService(roles, cache)
	defer svc.Close()
	ctx := context.Background()

	_, hit, err := svc.Admin(ctx)
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = svc.Admin(ctx)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, roles.calls)
}

func TestDashboardServicePropagatesReadFailure(t *testing.T) {
	roles := &fakeRoleCounter{err: errors.New("timeout")}
	svc := newTestDashboardService(roles, nil)
	defer svc.Close()

	_, _, err := svc.Admin(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
