package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

type groupRepository interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, error)
	FindByID(ctx context.Context, id int64) (*models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	AssignLeader(ctx context.Context, groupID int64, leaderID string) error
}

type profileFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// GroupService manages small groups and their leaders.
type GroupService struct {
	repo      groupRepository
	profiles  profileFinder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGroupService constructs a GroupService.
func NewGroupService(repo groupRepository, profiles profileFinder, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GroupService{repo: repo, profiles: profiles, cache: cache, validator: validate, logger: logger}
}

// List returns groups, optionally restricted to territories.
func (s *GroupService) List(ctx context.Context, territoryIDs []int64) ([]models.Group, error) {
	groups, err := s.repo.List(ctx, models.GroupFilter{TerritoryIDs: territoryIDs})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list groups")
	}
	return groups, nil
}

// Create adds a group, optionally assigning its leader.
func (s *GroupService) Create(ctx context.Context, req models.CreateGroupRequest) (*models.Group, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid group payload")
	}
	if req.LeaderUserID != nil && *req.LeaderUserID != "" {
		if err := s.ensureLeader(ctx, *req.LeaderUserID); err != nil {
			return nil, err
		}
	} else {
		req.LeaderUserID = nil
	}

	group := &models.Group{Name: req.Name, TerritoryID: req.TerritoryID, LeaderUserID: req.LeaderUserID, Zone: req.Zone}
	if err := s.repo.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create group")
	}
	s.invalidate(ctx)
	return group, nil
}

// AssignLeader moves a group to another leader.
func (s *GroupService) AssignLeader(ctx context.Context, groupID int64, req models.AssignLeaderRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leader payload")
	}
	if err := s.ensureLeader(ctx, req.LeaderUserID); err != nil {
		return nil, err
	}
	if err := s.repo.AssignLeader(ctx, groupID, req.LeaderUserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign leader")
	}
	group, err := s.repo.FindByID(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	s.invalidate(ctx)
	return group, nil
}

func (s *GroupService) ensureLeader(ctx context.Context, userID string) error {
	user, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "leader does not exist")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leader")
	}
	if user.Role != models.RoleLeader {
		return appErrors.Clone(appErrors.ErrValidation, "user is not a leader")
	}
	return nil
}

func (s *GroupService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, analyticsCachePattern); err != nil {
		s.logger.Warn("failed to invalidate analytics cache", zap.Error(err))
	}
}
