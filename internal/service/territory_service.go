package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

type territoryRepository interface {
	List(ctx context.Context, onlyActive bool) ([]models.Territory, error)
	FindByID(ctx context.Context, id int64) (*models.Territory, error)
	Create(ctx context.Context, territory *models.Territory) error
	Update(ctx context.Context, territory *models.Territory) error
	Delete(ctx context.Context, id int64) error
	Distribution(ctx context.Context) ([]models.TerritoryDistribution, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// TerritoryService manages territories.
type TerritoryService struct {
	repo      territoryRepository
	audits    auditRecorder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTerritoryService constructs a TerritoryService.
func NewTerritoryService(repo territoryRepository, audits auditRecorder, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *TerritoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TerritoryService{repo: repo, audits: audits, cache: cache, validator: validate, logger: logger}
}

// List returns territories.
func (s *TerritoryService) List(ctx context.Context, onlyActive bool) ([]models.Territory, error) {
	territories, err := s.repo.List(ctx, onlyActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list territories")
	}
	return territories, nil
}

// Create adds an active territory.
func (s *TerritoryService) Create(ctx context.Context, req models.TerritoryRequest) (*models.Territory, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid territory payload")
	}
	territory := &models.Territory{Name: req.Name, Active: true, PastorID: req.PastorID}
	if req.Active != nil {
		territory.Active = *req.Active
	}
	if err := s.repo.Create(ctx, territory); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create territory")
	}
	s.invalidate(ctx)
	return territory, nil
}

// Update renames a territory and optionally changes its active flag and pastor.
func (s *TerritoryService) Update(ctx context.Context, id int64, req models.TerritoryRequest) (*models.Territory, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid territory payload")
	}
	territory, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	territory.Name = req.Name
	if req.Active != nil {
		territory.Active = *req.Active
	}
	if req.PastorID != nil {
		territory.PastorID = req.PastorID
	}
	if err := s.save(ctx, territory); err != nil {
		return nil, err
	}
	return territory, nil
}

// ToggleActive flips the active flag of a territory.
func (s *TerritoryService) ToggleActive(ctx context.Context, id int64) (*models.Territory, error) {
	territory, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	territory.Active = !territory.Active
	if err := s.save(ctx, territory); err != nil {
		return nil, err
	}
	return territory, nil
}

// Delete removes a territory.
func (s *TerritoryService) Delete(ctx context.Context, id int64, actorID string, meta models.LoginRequest) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "territory not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete territory")
	}
	if s.audits != nil {
		resourceID := formatID(id)
		if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionTerritoryDrop,
			Resource:   "territory",
			ResourceID: &resourceID,
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record territory audit log", zap.Error(err))
		}
	}
	s.invalidate(ctx)
	return nil
}

// Distribution returns active leaders and pastors per territory, busiest first.
func (s *TerritoryService) Distribution(ctx context.Context) ([]models.TerritoryDistribution, error) {
	rows, err := s.repo.Distribution(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load territory distribution")
	}
	return rankDistribution(rows), nil
}

func rankDistribution(rows []models.TerritoryDistribution) []models.TerritoryDistribution {
	out := make([]models.TerritoryDistribution, len(rows))
	for i, row := range rows {
		row.Total = row.Leaders + row.Pastors
		out[i] = row
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

func (s *TerritoryService) load(ctx context.Context, id int64) (*models.Territory, error) {
	territory, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "territory not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load territory")
	}
	return territory, nil
}

func (s *TerritoryService) save(ctx context.Context, territory *models.Territory) error {
	if err := s.repo.Update(ctx, territory); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "territory not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update territory")
	}
	s.invalidate(ctx)
	return nil
}

func (s *TerritoryService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}
