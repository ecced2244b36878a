package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

// ErrUnsupportedRole is returned when a role has no territory link table.
var ErrUnsupportedRole = errors.New("role has no territory link")

const profileColumns = `id, email, password_hash, full_name, role, is_active, last_login, created_at, updated_at`

// UserRepository provides database access for profiles and their sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func territoryLinkTable(role models.UserRole) (string, error) {
	switch role {
	case models.RoleLeader:
		return "leader_territories", nil
	case models.RolePastor:
		return "pastor_territories", nil
	default:
		return "", fmt.Errorf("%s: %w", role, ErrUnsupportedRole)
	}
}

// FindByEmail returns a profile by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a profile by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find profile by id: %w", err)
	}
	return &user, nil
}

// UpdateLastLogin updates the last_login timestamp for a profile.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE profiles SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// CreateAccount inserts the profile, its territory link and, for leaders, the
// group they will lead. Everything happens in one transaction.
func (r *UserRepository) CreateAccount(ctx context.Context, params *models.CreateAccountParams) (err error) {
	user := &params.User
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin account transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertProfile = `INSERT INTO profiles (id, email, password_hash, full_name, role, is_active, created_at, updated_at) VALUES (:id, :email, :password_hash, :full_name, :role, :is_active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertProfile, user); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	if params.TerritoryID != nil && user.Role != models.RoleAdmin {
		table, tableErr := territoryLinkTable(user.Role)
		if tableErr != nil {
			err = tableErr
			return err
		}
		linkQuery := fmt.Sprintf("INSERT INTO %s (user_id, territory_id) VALUES ($1, $2)", table)
		if _, err = tx.ExecContext(ctx, linkQuery, user.ID, *params.TerritoryID); err != nil {
			return fmt.Errorf("link territory: %w", err)
		}
	}

	if user.Role == models.RoleLeader && params.GroupName != "" && params.TerritoryID != nil {
		const insertGroup = `INSERT INTO groups (name, territory_id, leader_user_id, created_at) VALUES ($1, $2, $3, $4)`
		if _, err = tx.ExecContext(ctx, insertGroup, params.GroupName, *params.TerritoryID, user.ID, now); err != nil {
			return fmt.Errorf("create leader group: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit account transaction: %w", err)
	}
	return nil
}

// ListAccounts returns leaders or pastors with their territory and, for
// leaders, their group.
func (r *UserRepository) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	table, err := territoryLinkTable(filter.Role)
	if err != nil {
		return nil, 0, err
	}

	baseQuery := fmt.Sprintf(`FROM profiles p LEFT JOIN %s l ON l.user_id = p.id LEFT JOIN territories t ON t.id = l.territory_id LEFT JOIN LATERAL (SELECT g.id, g.name FROM groups g WHERE g.leader_user_id = p.id ORDER BY g.id LIMIT 1) lg ON TRUE WHERE p.role = $1`, table)
	args := []interface{}{filter.Role}

	if filter.Active != nil {
		baseQuery += fmt.Sprintf(" AND p.is_active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND (LOWER(p.email) LIKE $%d OR LOWER(p.full_name) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	allowedSorts := map[string]string{
		"full_name":      "p.full_name",
		"email":          "p.email",
		"created_at":     "p.created_at",
		"territory_name": "t.name",
	}
	sortBy, ok := allowedSorts[filter.SortBy]
	if !ok {
		sortBy = "p.full_name"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT p.id, p.email, p.full_name, p.role, p.is_active, l.territory_id, t.name AS territory_name, lg.id AS group_id, lg.name AS group_name, p.created_at %s ORDER BY %s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)

	var accounts []models.Account
	if err := r.db.SelectContext(ctx, &accounts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}
	return accounts, total, nil
}

// UpdateAccount applies the edited profile fields and moves the territory link.
func (r *UserRepository) UpdateAccount(ctx context.Context, user *models.User, territoryID *int64) (err error) {
	user.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin account update: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateProfile = `UPDATE profiles SET full_name = :full_name, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err = tx.NamedExecContext(ctx, updateProfile, user); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	if territoryID != nil {
		table, tableErr := territoryLinkTable(user.Role)
		if tableErr != nil {
			err = tableErr
			return err
		}
		upsert := fmt.Sprintf("INSERT INTO %s (user_id, territory_id) VALUES ($1, $2) ON CONFLICT (user_id) DO UPDATE SET territory_id = EXCLUDED.territory_id", table)
		if _, err = tx.ExecContext(ctx, upsert, user.ID, *territoryID); err != nil {
			return fmt.Errorf("upsert territory link: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit account update: %w", err)
	}
	return nil
}

// SetActive enables or disables a profile.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE profiles SET is_active = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set profile active: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByRole returns the number of active profiles per role.
func (r *UserRepository) CountByRole(ctx context.Context) ([]models.RoleCount, error) {
	const query = `SELECT role, COUNT(*) AS total FROM profiles WHERE is_active = TRUE GROUP BY role ORDER BY role`
	var counts []models.RoleCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count profiles by role: %w", err)
	}
	return counts, nil
}

// Directory resolves display data for the given profile ids.
func (r *UserRepository) Directory(ctx context.Context, ids []string) ([]models.LeaderContact, error) {
	if len(ids) == 0 {
		return []models.LeaderContact{}, nil
	}
	const query = `SELECT id, full_name, email FROM profiles WHERE id = ANY($1)`
	var contacts []models.LeaderContact
	if err := r.db.SelectContext(ctx, &contacts, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load profile directory: %w", err)
	}
	return contacts, nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for a profile.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
