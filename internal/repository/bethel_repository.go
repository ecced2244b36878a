package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

const (
	bethelColumns = `id, name, year, to_char(starts_on, 'YYYY-MM-DD') AS starts_on, to_char(ends_on, 'YYYY-MM-DD') AS ends_on, is_active, notes, created_by, created_at`
	staffSelect   = `SELECT s.id, s.bethel_id, s.user_id, s.role_type, s.group_type, s.is_active, s.excuse, s.external_name, s.external_email, COALESCE(p.full_name, s.external_name) AS full_name, COALESCE(p.email, s.external_email) AS email, s.created_at FROM bethel_staff s LEFT JOIN profiles p ON p.id = s.user_id`
)

// BethelRepository persists Bethels, their staff and reported attendance.
type BethelRepository struct {
	db *sqlx.DB
}

// NewBethelRepository constructs the repository.
func NewBethelRepository(db *sqlx.DB) *BethelRepository {
	return &BethelRepository{db: db}
}

// List returns Bethels, newest first.
func (r *BethelRepository) List(ctx context.Context, onlyActive bool) ([]models.Bethel, error) {
	query := `SELECT ` + bethelColumns + ` FROM bethels`
	if onlyActive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY starts_on DESC NULLS LAST, id DESC`

	var bethels []models.Bethel
	if err := r.db.SelectContext(ctx, &bethels, query); err != nil {
		return nil, fmt.Errorf("list bethels: %w", err)
	}
	return bethels, nil
}

// FindByID returns a Bethel by identifier.
func (r *BethelRepository) FindByID(ctx context.Context, id int64) (*models.Bethel, error) {
	query := `SELECT ` + bethelColumns + ` FROM bethels WHERE id = $1`
	var bethel models.Bethel
	if err := r.db.GetContext(ctx, &bethel, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find bethel: %w", err)
	}
	return &bethel, nil
}

// Create inserts a Bethel and fills its generated id.
func (r *BethelRepository) Create(ctx context.Context, bethel *models.Bethel) error {
	if bethel.CreatedAt.IsZero() {
		bethel.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bethels (name, year, starts_on, ends_on, is_active, notes, created_by, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	row := r.db.QueryRowxContext(ctx, query, bethel.Name, bethel.Year, bethel.StartsOn, bethel.EndsOn, bethel.Active, bethel.Notes, bethel.CreatedBy, bethel.CreatedAt)
	if err := row.Scan(&bethel.ID); err != nil {
		return fmt.Errorf("create bethel: %w", err)
	}
	return nil
}

// Update persists the editable fields of a Bethel.
func (r *BethelRepository) Update(ctx context.Context, bethel *models.Bethel) error {
	const query = `UPDATE bethels SET name = $2, year = $3, starts_on = $4, ends_on = $5, is_active = $6, notes = $7 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, bethel.ID, bethel.Name, bethel.Year, bethel.StartsOn, bethel.EndsOn, bethel.Active, bethel.Notes)
	if err != nil {
		return fmt.Errorf("update bethel: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a Bethel.
func (r *BethelRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bethels WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bethel: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListStaff returns the staff of a Bethel with resolved names.
func (r *BethelRepository) ListStaff(ctx context.Context, bethelID int64) ([]models.BethelStaff, error) {
	query := staffSelect + ` WHERE s.bethel_id = $1 ORDER BY s.role_type, s.group_type, s.id`
	var staff []models.BethelStaff
	if err := r.db.SelectContext(ctx, &staff, query, bethelID); err != nil {
		return nil, fmt.Errorf("list bethel staff: %w", err)
	}
	return staff, nil
}

// FindStaff returns one staff assignment.
func (r *BethelRepository) FindStaff(ctx context.Context, id int64) (*models.BethelStaff, error) {
	query := staffSelect + ` WHERE s.id = $1`
	var staff models.BethelStaff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find bethel staff: %w", err)
	}
	return &staff, nil
}

// FindStaffByRole returns the holder of a role for a group type.
func (r *BethelRepository) FindStaffByRole(ctx context.Context, bethelID int64, role models.StaffRole, groupType string) (*models.BethelStaff, error) {
	query := staffSelect + ` WHERE s.bethel_id = $1 AND s.role_type = $2 AND s.group_type = $3 ORDER BY s.id LIMIT 1`
	var staff models.BethelStaff
	if err := r.db.GetContext(ctx, &staff, query, bethelID, role, groupType); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find bethel staff by role: %w", err)
	}
	return &staff, nil
}

// CreateStaff inserts a staff assignment.
func (r *BethelRepository) CreateStaff(ctx context.Context, staff *models.BethelStaff) error {
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bethel_staff (bethel_id, user_id, role_type, group_type, is_active, excuse, external_name, external_email, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	row := r.db.QueryRowxContext(ctx, query, staff.BethelID, staff.UserID, staff.RoleType, staff.GroupType, staff.Active, staff.Excuse, staff.ExternalName, staff.ExternalEmail, staff.CreatedAt)
	if err := row.Scan(&staff.ID); err != nil {
		return fmt.Errorf("create bethel staff: %w", err)
	}
	return nil
}

// UpdateStaff replaces the person and flags of a staff assignment.
func (r *BethelRepository) UpdateStaff(ctx context.Context, staff *models.BethelStaff) error {
	const query = `UPDATE bethel_staff SET user_id = $2, is_active = $3, excuse = $4, external_name = $5, external_email = $6 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, staff.ID, staff.UserID, staff.Active, staff.Excuse, staff.ExternalName, staff.ExternalEmail)
	if err != nil {
		return fmt.Errorf("update bethel staff: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteStaff removes a staff assignment.
func (r *BethelRepository) DeleteStaff(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bethel_staff WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete bethel staff: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountStaffByRole counts staff assignments of every Bethel per role.
func (r *BethelRepository) CountStaffByRole(ctx context.Context) ([]models.StaffRoleCount, error) {
	const query = `SELECT role_type, COUNT(*) AS total FROM bethel_staff GROUP BY role_type ORDER BY role_type`
	var counts []models.StaffRoleCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count bethel staff: %w", err)
	}
	return counts, nil
}

// ListAttendance returns reported Bethel attendance rows. A nil GroupIDs slice
// means every group; an empty one matches nothing.
func (r *BethelRepository) ListAttendance(ctx context.Context, filter models.BethelAttendanceFilter) ([]models.BethelAttendanceRow, error) {
	if filter.GroupIDs != nil && len(filter.GroupIDs) == 0 {
		return []models.BethelAttendanceRow{}, nil
	}

	var b strings.Builder
	b.WriteString(`SELECT id, bethel_id, group_id, to_char(date, 'YYYY-MM-DD') AS date, real_attendance, prospects FROM bethel_attendance WHERE 1=1`)
	args := make([]interface{}, 0, 4)
	if filter.BethelID > 0 {
		args = append(args, filter.BethelID)
		fmt.Fprintf(&b, " AND bethel_id = $%d", len(args))
	}
	if filter.GroupIDs != nil {
		args = append(args, pq.Array(filter.GroupIDs))
		fmt.Fprintf(&b, " AND group_id = ANY($%d)", len(args))
	}
	if filter.DateFrom != "" {
		args = append(args, filter.DateFrom)
		fmt.Fprintf(&b, " AND date >= $%d", len(args))
	}
	if filter.DateTo != "" {
		args = append(args, filter.DateTo)
		fmt.Fprintf(&b, " AND date <= $%d", len(args))
	}
	b.WriteString(" ORDER BY date, group_id")

	var rows []models.BethelAttendanceRow
	if err := r.db.SelectContext(ctx, &rows, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list bethel attendance: %w", err)
	}
	return rows, nil
}

// UpsertAttendance records the counts of a group for a Bethel date.
func (r *BethelRepository) UpsertAttendance(ctx context.Context, row *models.BethelAttendanceRow) error {
	const query = `INSERT INTO bethel_attendance (bethel_id, group_id, date, real_attendance, prospects) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (bethel_id, group_id, date) DO UPDATE SET real_attendance = EXCLUDED.real_attendance, prospects = EXCLUDED.prospects RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, row.BethelID, row.GroupID, row.Date, row.RealAttendance, row.Prospects).Scan(&row.ID); err != nil {
		return fmt.Errorf("upsert bethel attendance: %w", err)
	}
	return nil
}
