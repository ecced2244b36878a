package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

type accountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAccount(ctx context.Context, params *models.CreateAccountParams) error
	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error)
	UpdateAccount(ctx context.Context, user *models.User, territoryID *int64) error
	SetActive(ctx context.Context, id string, active bool) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type territoryFinder interface {
	FindByID(ctx context.Context, id int64) (*models.Territory, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// AccountService lets admins create and manage leader, pastor and admin profiles.
type AccountService struct {
	repo        accountRepository
	territories territoryFinder
	cache       cacheInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	hashCost    int
}

// NewAccountService creates an AccountService.
func NewAccountService(repo accountRepository, territories territoryFinder, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AccountService{repo: repo, territories: territories, cache: cache, validator: validate, logger: logger, hashCost: bcrypt.DefaultCost}
}

// LeaderGroupName builds the default group name of a leader: GE, the initials
// of the territory and the first name of the leader.
func LeaderGroupName(territoryName, fullName string) string {
	var initials strings.Builder
	for _, word := range strings.Fields(territoryName) {
		r, _ := utf8.DecodeRuneInString(word)
		initials.WriteRune(unicode.ToUpper(r))
	}
	fields := strings.Fields(fullName)
	if initials.Len() == 0 || len(fields) == 0 {
		return ""
	}
	return "GE-" + initials.String() + "-" + fields[0]
}

// Create registers a new account. Leaders and pastors need a territory, and a
// leader also receives the group they will lead.
func (s *AccountService) Create(ctx context.Context, req models.CreateAccountRequest, actorID string, meta models.LoginRequest) (*models.Account, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}
	if req.Role != models.RoleAdmin && req.TerritoryID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "territory is required for leaders and pastors")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	params := &models.CreateAccountParams{
		User: models.User{
			Email:    req.Email,
			FullName: req.FullName,
			Role:     req.Role,
			Active:   true,
		},
	}

	account := &models.Account{Email: req.Email, FullName: req.FullName, Role: req.Role, Active: true}

	if req.Role != models.RoleAdmin {
		territory, err := s.territories.FindByID(ctx, *req.TerritoryID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "territory does not exist")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load territory")
		}
		params.TerritoryID = &territory.ID
		account.TerritoryID = &territory.ID
		account.TerritoryName = &territory.Name

		if req.Role == models.RoleLeader {
			name := strings.TrimSpace(req.GroupName)
			if name == "" {
				name = LeaderGroupName(territory.Name, req.FullName)
			}
			params.GroupName = name
			account.GroupName = &name
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	params.User.PasswordHash = string(hash)

	if err := s.repo.CreateAccount(ctx, params); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}
	account.ID = params.User.ID
	account.CreatedAt = params.User.CreatedAt

	s.audit(ctx, actorID, models.AuditActionAccountCreate, account.ID, meta)
	s.invalidate(ctx)
	return account, nil
}

// List returns leaders or pastors with pagination metadata.
func (s *AccountService) List(ctx context.Context, filter models.AccountFilter) ([]models.Account, *models.Pagination, error) {
	if filter.Role != models.RoleLeader && filter.Role != models.RolePastor {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "role must be leader or pastor")
	}
	accounts, total, err := s.repo.ListAccounts(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return accounts, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update edits the name, active flag and territory of an account.
func (s *AccountService) Update(ctx context.Context, id string, req models.UpdateAccountRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	territoryID := req.TerritoryID
	if territoryID != nil && user.Role == models.RoleAdmin {
		territoryID = nil
	}

	if err := s.repo.UpdateAccount(ctx, user, territoryID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}
	s.audit(ctx, actorID, models.AuditActionAccountUpdate, id, meta)
	s.invalidate(ctx)
	return user, nil
}

// ToggleActive flips the active flag of an account.
func (s *AccountService) ToggleActive(ctx context.Context, id string, actorID string, meta models.LoginRequest) (*models.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.ID == actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot deactivate your own account")
	}
	user.Active = !user.Active
	if err := s.repo.SetActive(ctx, id, user.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update account")
	}
	s.audit(ctx, actorID, models.AuditActionAccountUpdate, id, meta)
	s.invalidate(ctx)
	return user, nil
}

func (s *AccountService) load(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return user, nil
}

func (s *AccountService) audit(ctx context.Context, actorID, action, resourceID string, meta models.LoginRequest) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "account",
		ResourceID: &resourceID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record account audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *AccountService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
