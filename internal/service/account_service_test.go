package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

type fakeAccountRepo struct {
	users     map[string]*models.User
	created   []*models.CreateAccountParams
	updated   []*int64
	audits    []*models.AuditLog
	listCalls []models.AccountFilter
}

func newFakeAccountRepo(users ...*models.User) *fakeAccountRepo {
	repo := &fakeAccountRepo{users: map[string]*models.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeAccountRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccountRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccountRepo) CreateAccount(ctx context.Context, params *models.CreateAccountParams) error {
	params.User.ID = "new-id"
	params.User.CreatedAt = time.Now()
	f.created = append(f.created, params)
	return nil
}

func (f *fakeAccountRepo) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	f.listCalls = append(f.listCalls, filter)
	return []models.Account{{ID: "u1"}}, 1, nil
}

func (f *fakeAccountRepo) UpdateAccount(ctx context.Context, user *models.User, territoryID *int64) error {
	f.users[user.ID] = user
	f.updated = append(f.updated, territoryID)
	return nil
}

func (f *fakeAccountRepo) SetActive(ctx context.Context, id string, active bool) error {
	if _, ok := f.users[id]; !ok {
		return sql.ErrNoRows
	}
	f.users[id].Active = active
	return nil
}

func (f *fakeAccountRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.audits = append(f.audits, log)
	return nil
}

type fakeTerritoryFinder map[int64]models.Territory

func (f fakeTerritoryFinder) FindByID(ctx context.Context, id int64) (*models.Territory, error) {
	t, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &t, nil
}

type recordingInvalidator struct{ patterns []string }

func (r *recordingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func newTestAccountService(repo *fakeAccountRepo, cache *recordingInvalidator) *AccountService {
	var inv cacheInvalidator
	if cache != nil {
		inv = cache
	}
	svc := NewAccountService(repo, fakeTerritoryFinder{4: {ID: 4, Name: "norte sur"}}, inv, nil, nil)
	svc.hashCost = bcrypt.MinCost
	return svc
}

func TestLeaderGroupName(t *testing.T) {
	assert.Equal(t, "GE-NS-Ana", LeaderGroupName("norte sur", "  Ana María López "))
	assert.Equal(t, "GE-ÁC-José", LeaderGroupName("ávila centro", "José"))
	assert.Empty(t, LeaderGroupName("", "Ana"))
	assert.Empty(t, LeaderGroupName("Norte", " "))
}

func TestAccountServiceCreateLeaderGeneratesGroup(t *testing.T) {
	repo := newFakeAccountRepo()
	cache := &recordingInvalidator{}
	svc := newTestAccountService(repo, cache)
	territory := int64(4)

	account, err := svc.Create(context.Background(), models.CreateAccountRequest{
		Email: " Ana@Example.com ", Password: "secret1", FullName: "Ana López", Role: models.RoleLeader, TerritoryID: &territory,
	}, "admin-1", models.LoginRequest{})
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	params := repo.created[0]
	assert.Equal(t, "ana@example.com", params.User.Email)
	assert.Equal(t, "GE-NS-Ana", params.GroupName)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(params.User.PasswordHash), []byte("secret1")))
	assert.Equal(t, "new-id", account.ID)
	require.NotNil(t, account.TerritoryName)
	assert.Equal(t, "norte sur", *account.TerritoryName)
	assert.Equal(t, []string{dashboardCachePattern}, cache.patterns)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionAccountCreate, repo.audits[0].Action)
}

func TestAccountServiceCreateKeepsExplicitGroupName(t *testing.T) {
	repo := newFakeAccountRepo()
	svc := newTestAccountService(repo, nil)
	territory := int64(4)

	_, err := svc.Create(context.Background(), models.CreateAccountRequest{
		Email: "b@example.com", Password: "secret1", FullName: "Beto", Role: models.RoleLeader, TerritoryID: &territory, GroupName: "Jóvenes",
	}, "admin-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Jóvenes", repo.created[0].GroupName)
}

func TestAccountServiceCreateValidation(t *testing.T) {
	territory := int64(4)
	missing := int64(99)
	repo := newFakeAccountRepo(&models.User{ID: "u1", Email: "taken@example.com"})
	svc := newTestAccountService(repo, nil)

	cases := []struct {
		name string
		req  models.CreateAccountRequest
		code string
	}{
		{"short password", models.CreateAccountRequest{Email: "a@example.com", Password: "123", FullName: "A", Role: models.RoleLeader, TerritoryID: &territory}, appErrors.ErrValidation.Code},
		{"bad role", models.CreateAccountRequest{Email: "a@example.com", Password: "123456", FullName: "A", Role: "student", TerritoryID: &territory}, appErrors.ErrValidation.Code},
		{"pastor without territory", models.CreateAccountRequest{Email: "a@example.com", Password: "123456", FullName: "A", Role: models.RolePastor}, appErrors.ErrValidation.Code},
		{"unknown territory", models.CreateAccountRequest{Email: "a@example.com", Password: "123456", FullName: "A", Role: models.RolePastor, TerritoryID: &missing}, appErrors.ErrValidation.Code},
		{"duplicate email", models.CreateAccountRequest{Email: "taken@example.com", Password: "123456", FullName: "A", Role: models.RoleAdmin}, appErrors.ErrConflict.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req, "admin-1", models.LoginRequest{})
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, repo.created)
}

func TestAccountServiceCreateAdminSkipsTerritory(t *testing.T) {
	repo := newFakeAccountRepo()
	svc := newTestAccountService(repo, nil)

	account, err := svc.Create(context.Background(), models.CreateAccountRequest{
		Email: "root@example.com", Password: "secret1", FullName: "Root", Role: models.RoleAdmin,
	}, "admin-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Nil(t, account.TerritoryID)
	assert.Empty(t, repo.created[0].GroupName)
}

func TestAccountServiceListRequiresRole(t *testing.T) {
	repo := newFakeAccountRepo()
	svc := newTestAccountService(repo, nil)

	_, _, err := svc.List(context.Background(), models.AccountFilter{Role: models.RoleAdmin})
	require.Error(t, err)

	accounts, pagination, err := svc.List(context.Background(), models.AccountFilter{Role: models.RolePastor, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	assert.Equal(t, 20, pagination.PageSize)
}

func TestAccountServiceUpdateAndToggle(t *testing.T) {
	repo := newFakeAccountRepo(&models.User{ID: "u1", Email: "a@example.com", FullName: "Ana", Role: models.RoleLeader, Active: true})
	svc := newTestAccountService(repo, nil)

	name := " Ana María "
	territory := int64(4)
	user, err := svc.Update(context.Background(), "u1", models.UpdateAccountRequest{FullName: &name, TerritoryID: &territory}, "admin-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", user.FullName)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, &territory, repo.updated[0])

	user, err = svc.ToggleActive(context.Background(), "u1", "admin-1", models.LoginRequest{})
	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.False(t, repo.users["u1"].Active)

	_, err = svc.ToggleActive(context.Background(), "ghost", "admin-1", models.LoginRequest{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.ToggleActive(context.Background(), "admin-1", "admin-1", models.LoginRequest{})
	assert.Error(t, err)
}
