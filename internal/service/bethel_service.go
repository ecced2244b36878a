package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

type bethelRepository interface {
	List(ctx context.Context, onlyActive bool) ([]models.Bethel, error)
	FindByID(ctx context.Context, id int64) (*models.Bethel, error)
	Create(ctx context.Context, bethel *models.Bethel) error
	Update(ctx context.Context, bethel *models.Bethel) error
	Delete(ctx context.Context, id int64) error
	ListStaff(ctx context.Context, bethelID int64) ([]models.BethelStaff, error)
	FindStaff(ctx context.Context, id int64) (*models.BethelStaff, error)
	FindStaffByRole(ctx context.Context, bethelID int64, role models.StaffRole, groupType string) (*models.BethelStaff, error)
	CreateStaff(ctx context.Context, staff *models.BethelStaff) error
	UpdateStaff(ctx context.Context, staff *models.BethelStaff) error
	DeleteStaff(ctx context.Context, id int64) error
	UpsertAttendance(ctx context.Context, row *models.BethelAttendanceRow) error
}

// BethelService manages retreat events, their staff and the counts groups report.
type BethelService struct {
	repo      bethelRepository
	groups    leaderGroupFinder
	audits    auditRecorder
	cache     cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBethelService constructs a BethelService.
func NewBethelService(repo bethelRepository, groups leaderGroupFinder, audits auditRecorder, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *BethelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &BethelService{repo: repo, groups: groups, audits: audits, cache: cache, validator: validate, logger: logger}
}

// List returns Bethels.
func (s *BethelService) List(ctx context.Context, onlyActive bool) ([]models.Bethel, error) {
	bethels, err := s.repo.List(ctx, onlyActive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bethels")
	}
	return bethels, nil
}

// Create adds a Bethel, active unless stated otherwise.
func (s *BethelService) Create(ctx context.Context, req models.BethelRequest, actorID string) (*models.Bethel, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bethel payload")
	}
	bethel := &models.Bethel{Active: true}
	applyBethelRequest(bethel, req)
	if actorID != "" {
		bethel.CreatedBy = &actorID
	}
	if err := s.repo.Create(ctx, bethel); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bethel")
	}
	s.invalidate(ctx)
	return bethel, nil
}

// Update replaces the editable fields of a Bethel.
func (s *BethelService) Update(ctx context.Context, id int64, req models.BethelRequest) (*models.Bethel, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bethel payload")
	}
	bethel, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	applyBethelRequest(bethel, req)
	if err := s.repo.Update(ctx, bethel); err != nil {
		return nil, s.writeError(err, "failed to update bethel")
	}
	s.invalidate(ctx)
	return bethel, nil
}

// ToggleActive flips the active flag of a Bethel.
func (s *BethelService) ToggleActive(ctx context.Context, id int64) (*models.Bethel, error) {
	bethel, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	bethel.Active = !bethel.Active
	if err := s.repo.Update(ctx, bethel); err != nil {
		return nil, s.writeError(err, "failed to update bethel")
	}
	s.invalidate(ctx)
	return bethel, nil
}

// Delete removes a Bethel and leaves an audit trail.
func (s *BethelService) Delete(ctx context.Context, id int64, actorID string, meta models.LoginRequest) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "bethel not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete bethel")
	}
	if s.audits != nil {
		resourceID := formatID(id)
		if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionBethelDelete,
			Resource:   "bethel",
			ResourceID: &resourceID,
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record bethel audit", zap.Int64("bethel_id", id), zap.Error(err))
		}
	}
	s.invalidate(ctx)
	return nil
}

// Staff lists the staff of a Bethel.
func (s *BethelService) Staff(ctx context.Context, bethelID int64) ([]models.BethelStaff, error) {
	if _, err := s.find(ctx, bethelID); err != nil {
		return nil, err
	}
	staff, err := s.repo.ListStaff(ctx, bethelID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bethel staff")
	}
	return staff, nil
}

// AssignRole sets the coordinator or spiritual guide of a group type,
// replacing whoever held the role.
func (s *BethelService) AssignRole(ctx context.Context, bethelID int64, req models.StaffRequest) (*models.BethelStaff, error) {
	if !req.RoleType.Single() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role_type must be coordinator or spiritual_guide")
	}
	staff, err := s.prepareStaff(ctx, bethelID, req)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.FindStaffByRole(ctx, bethelID, req.RoleType, req.GroupType)
	switch {
	case err == nil:
		staff.ID = current.ID
		staff.CreatedAt = current.CreatedAt
		if err := s.repo.UpdateStaff(ctx, staff); err != nil {
			return nil, s.writeError(err, "failed to replace bethel staff")
		}
		s.logger.Info("bethel role replaced",
			zap.Int64("bethel_id", bethelID),
			zap.String("role", string(req.RoleType)),
			zap.String("group_type", req.GroupType),
		)
	case errors.Is(err, sql.ErrNoRows):
		if err := s.repo.CreateStaff(ctx, staff); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign bethel staff")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bethel staff")
	}
	s.invalidate(ctx)
	return staff, nil
}

// AddGuide appends a guide; a group type may have any number of them.
func (s *BethelService) AddGuide(ctx context.Context, bethelID int64, req models.StaffRequest) (*models.BethelStaff, error) {
	req.RoleType = models.StaffRoleGuide
	staff, err := s.prepareStaff(ctx, bethelID, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateStaff(ctx, staff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add guide")
	}
	s.invalidate(ctx)
	return staff, nil
}

// ToggleStaffActive flips the active flag of a staff assignment.
func (s *BethelService) ToggleStaffActive(ctx context.Context, staffID int64) (*models.BethelStaff, error) {
	staff, err := s.findStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	staff.Active = !staff.Active
	if err := s.repo.UpdateStaff(ctx, staff); err != nil {
		return nil, s.writeError(err, "failed to update bethel staff")
	}
	s.invalidate(ctx)
	return staff, nil
}

// UpdateExcuse sets or clears the absence excuse of a staff member.
func (s *BethelService) UpdateExcuse(ctx context.Context, staffID int64, excuse *string) (*models.BethelStaff, error) {
	staff, err := s.findStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	staff.Excuse = blankToNil(excuse)
	if err := s.repo.UpdateStaff(ctx, staff); err != nil {
		return nil, s.writeError(err, "failed to update bethel staff")
	}
	return staff, nil
}

// RemoveStaff deletes a staff assignment.
func (s *BethelService) RemoveStaff(ctx context.Context, staffID int64) error {
	if err := s.repo.DeleteStaff(ctx, staffID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "bethel staff not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove bethel staff")
	}
	s.invalidate(ctx)
	return nil
}

// RecordAttendance stores the counts a group reported for a Bethel date.
// Leaders may only report for their own group.
func (s *BethelService) RecordAttendance(ctx context.Context, bethelID int64, req models.BethelAttendanceRequest, claims *models.JWTClaims) (*models.BethelAttendanceRow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bethel attendance payload")
	}
	if _, err := s.find(ctx, bethelID); err != nil {
		return nil, err
	}
	if claims != nil && claims.Role == models.RoleLeader {
		group, err := s.groups.FindByLeader(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNoGroupAssigned, "")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leader group")
		}
		if group.ID != req.GroupID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "leaders may only report their own group")
		}
	}

	row := &models.BethelAttendanceRow{
		BethelID:       bethelID,
		GroupID:        req.GroupID,
		Date:           req.Date,
		RealAttendance: req.RealAttendance,
		Prospects:      req.Prospects,
	}
	if err := s.repo.UpsertAttendance(ctx, row); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record bethel attendance")
	}
	s.invalidate(ctx)
	return row, nil
}

func (s *BethelService) prepareStaff(ctx context.Context, bethelID int64, req models.StaffRequest) (*models.BethelStaff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	userID := blankToNil(req.UserID)
	name := blankToNil(req.ExternalName)
	if userID == nil && name == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "external_name is required when user_id is empty")
	}
	if _, err := s.find(ctx, bethelID); err != nil {
		return nil, err
	}

	staff := &models.BethelStaff{
		BethelID:  bethelID,
		UserID:    userID,
		RoleType:  req.RoleType,
		GroupType: req.GroupType,
		Active:    true,
		Excuse:    blankToNil(req.Excuse),
	}
	if userID == nil {
		staff.ExternalName = name
		staff.ExternalEmail = blankToNil(req.ExternalEmail)
		staff.FullName = name
		staff.Email = staff.ExternalEmail
	}
	if req.Active != nil {
		staff.Active = *req.Active
	}
	return staff, nil
}

func (s *BethelService) find(ctx context.Context, id int64) (*models.Bethel, error) {
	bethel, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bethel not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bethel")
	}
	return bethel, nil
}

func (s *BethelService) findStaff(ctx context.Context, id int64) (*models.BethelStaff, error) {
	staff, err := s.repo.FindStaff(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bethel staff not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bethel staff")
	}
	return staff, nil
}

func (s *BethelService) writeError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "bethel not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *BethelService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, pattern := range []string{dashboardCachePattern, analyticsCachePattern} {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate cache", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func applyBethelRequest(bethel *models.Bethel, req models.BethelRequest) {
	bethel.Name = req.Name
	bethel.Year = req.Year
	bethel.StartsOn = blankToNil(req.StartsOn)
	bethel.EndsOn = blankToNil(req.EndsOn)
	bethel.Notes = blankToNil(req.Notes)
	if req.Active != nil {
		bethel.Active = *req.Active
	}
	if bethel.Year == nil && bethel.StartsOn != nil && len(*bethel.StartsOn) >= 4 {
		if year, err := strconv.Atoi((*bethel.StartsOn)[:4]); err == nil {
			bethel.Year = &year
		}
	}
}
