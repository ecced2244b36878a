package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

type fakeBethelRepo struct {
	bethels  map[int64]*models.Bethel
	staff    map[int64]*models.BethelStaff
	rows     []models.BethelAttendanceRow
	deleted  []int64
	nextID   int64
	creates  int
	replaces int
}

func newFakeBethelRepo() *fakeBethelRepo {
	return &fakeBethelRepo{
		bethels: map[int64]*models.Bethel{3: {ID: 3, Name: "Bethel 2024", Active: true}},
		staff:   map[int64]*models.BethelStaff{},
		nextID:  10,
	}
}

func (f *fakeBethelRepo) List(ctx context.Context, onlyActive bool) ([]models.Bethel, error) {
	out := []models.Bethel{}
	for _, b := range f.bethels {
		if onlyActive && !b.Active {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBethelRepo) FindByID(ctx context.Context, id int64) (*models.Bethel, error) {
	if b, ok := f.bethels[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeBethelRepo) Create(ctx context.Context, bethel *models.Bethel) error {
	bethel.ID = f.nextID
	f.nextID++
	copied := *bethel
	f.bethels[bethel.ID] = &copied
	return nil
}

func (f *fakeBethelRepo) Update(ctx context.Context, bethel *models.Bethel) error {
	if _, ok := f.bethels[bethel.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *bethel
	f.bethels[bethel.ID] = &copied
	return nil
}

func (f *fakeBethelRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.bethels[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.bethels, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBethelRepo) ListStaff(ctx context.Context, bethelID int64) ([]models.BethelStaff, error) {
	out := []models.BethelStaff{}
	for _, s := range f.staff {
		if s.BethelID == bethelID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeBethelRepo) FindStaff(ctx context.Context, id int64) (*models.BethelStaff, error) {
	if s, ok := f.staff[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeBethelRepo) FindStaffByRole(ctx context.Context, bethelID int64, role models.StaffRole, groupType string) (*models.BethelStaff, error) {
	for _, s := range f.staff {
		if s.BethelID == bethelID && s.RoleType == role && s.GroupType == groupType {
			copied := *s
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeBethelRepo) CreateStaff(ctx context.Context, staff *models.BethelStaff) error {
	staff.ID = f.nextID
	f.nextID++
	f.creates++
	copied := *staff
	f.staff[staff.ID] = &copied
	return nil
}

func (f *fakeBethelRepo) UpdateStaff(ctx context.Context, staff *models.BethelStaff) error {
	if _, ok := f.staff[staff.ID]; !ok {
		return sql.ErrNoRows
	}
	f.replaces++
	copied := *staff
	f.staff[staff.ID] = &copied
	return nil
}

func (f *fakeBethelRepo) DeleteStaff(ctx context.Context, id int64) error {
	if _, ok := f.staff[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.staff, id)
	return nil
}

func (f *fakeBethelRepo) UpsertAttendance(ctx context.Context, row *models.BethelAttendanceRow) error {
	row.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, *row)
	return nil
}

func newTestBethelService(repo *fakeBethelRepo, audits *fakeAuditRecorder) *BethelService {
	groups := fakeLeaderGroups{"leader-1": {ID: 7, TerritoryID: 4}}
	var recorder auditRecorder
	if audits != nil {
		recorder = audits
	}
	return NewBethelService(repo, groups, recorder, nil, nil, nil)
}

func TestBethelServiceCreateDerivesYear(t *testing.T) {
	repo := newFakeBethelRepo()
	svc := newTestBethelService(repo, nil)

	bethel, err := svc.Create(context.Background(), models.BethelRequest{Name: " Bethel Otoño ", StartsOn: ptr("2025-10-03")}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "Bethel Otoño", bethel.Name)
	assert.True(t, bethel.Active)
	require.NotNil(t, bethel.Year)
	assert.Equal(t, 2025, *bethel.Year)
	assert.Equal(t, "admin-1", *bethel.CreatedBy)
}

func TestBethelServiceToggleAndDelete(t *testing.T) {
	repo := newFakeBethelRepo()
	audits := &fakeAuditRecorder{}
	svc := newTestBethelService(repo, audits)
	ctx := context.Background()

	bethel, err := svc.ToggleActive(ctx, 3)
	require.NoError(t, err)
	assert.False(t, bethel.Active)

	require.NoError(t, svc.Delete(ctx, 3, "admin-1", models.LoginRequest{IP: "10.0.0.1"}))
	require.Len(t, audits.logs, 1)
	assert.Equal(t, models.AuditActionBethelDelete, audits.logs[0].Action)
	assert.Equal(t, "3", *audits.logs[0].ResourceID)

	err = svc.Delete(ctx, 3, "admin-1", models.LoginRequest{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBethelServiceAssignRoleReplacesHolder(t *testing.T) {
	repo := newFakeBethelRepo()
	svc := newTestBethelService(repo, nil)
	ctx := context.Background()

	first, err := svc.AssignRole(ctx, 3, models.StaffRequest{RoleType: models.StaffRoleCoordinator, GroupType: "women", UserID: ptr("u-1")})
	require.NoError(t, err)

	second, err := svc.AssignRole(ctx, 3, models.StaffRequest{RoleType: models.StaffRoleCoordinator, GroupType: "women", ExternalName: ptr("Rosa")})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.creates)
	assert.Equal(t, 1, repo.replaces)
	assert.Nil(t, repo.staff[first.ID].UserID)
	assert.Equal(t, "Rosa", *repo.staff[first.ID].ExternalName)

	_, err = svc.AssignRole(ctx, 3, models.StaffRequest{RoleType: models.StaffRoleCoordinator, GroupType: "men", UserID: ptr("u-2")})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.creates)
}

func TestBethelServiceAssignRoleRejectsGuide(t *testing.T) {
	svc := newTestBethelService(newFakeBethelRepo(), nil)

	_, err := svc.AssignRole(context.Background(), 3, models.StaffRequest{RoleType: models.StaffRoleGuide, GroupType: "women", UserID: ptr("u-1")})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBethelServiceGuidesRequireName(t *testing.T) {
	repo := newFakeBethelRepo()
	svc := newTestBethelService(repo, nil)
	ctx := context.Background()

	_, err := svc.AddGuide(ctx, 3, models.StaffRequest{GroupType: "mixed", ExternalName: ptr("  ")})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	for _, name := range []string{"Pedro", "Juan"} {
		guide, err := svc.AddGuide(ctx, 3, models.StaffRequest{GroupType: "mixed", ExternalName: ptr(name)})
		require.NoError(t, err)
		assert.Equal(t, models.StaffRoleGuide, guide.RoleType)
	}
	staff, err := svc.Staff(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, staff, 2)
}

func TestBethelServiceStaffFlags(t *testing.T) {
	repo := newFakeBethelRepo()
	svc := newTestBethelService(repo, nil)
	ctx := context.Background()

	guide, err := svc.AddGuide(ctx, 3, models.StaffRequest{GroupType: "men", UserID: ptr("u-9")})
	require.NoError(t, err)

	toggled, err := svc.ToggleStaffActive(ctx, guide.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	excused, err := svc.UpdateExcuse(ctx, guide.ID, ptr(" viaje "))
	require.NoError(t, err)
	assert.Equal(t, "viaje", *excused.Excuse)

	require.NoError(t, svc.RemoveStaff(ctx, guide.ID))
	err = svc.RemoveStaff(ctx, guide.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBethelServiceRecordAttendance(t *testing.T) {
	repo := newFakeBethelRepo()
	svc := newTestBethelService(repo, nil)
	ctx := context.Background()
	req := models.BethelAttendanceRequest{GroupID: 7, Date: "2024-05-04", RealAttendance: 12, Prospects: 15}

	row, err := svc.RecordAttendance(ctx, 3, req, &models.JWTClaims{UserID: "leader-1", Role: models.RoleLeader})
	require.NoError(t, err)
	assert.Equal(t, int64(3), row.BethelID)
	assert.Equal(t, 12, repo.rows[0].RealAttendance)

	req.GroupID = 8
	_, err = svc.RecordAttendance(ctx, 3, req, &models.JWTClaims{UserID: "leader-1", Role: models.RoleLeader})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.RecordAttendance(ctx, 3, req, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, repo.rows, 2)
}
