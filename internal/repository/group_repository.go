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

const groupColumns = `id, name, territory_id, leader_user_id, zone, created_at`

// GroupRepository persists small groups.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// List returns groups, optionally restricted to territories or a leader.
func (r *GroupRepository) List(ctx context.Context, filter models.GroupFilter) ([]models.Group, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + groupColumns + ` FROM groups WHERE 1=1`)
	args := make([]interface{}, 0, 2)

	if filter.TerritoryIDs != nil {
		args = append(args, pq.Array(filter.TerritoryIDs))
		fmt.Fprintf(&b, " AND territory_id = ANY($%d)", len(args))
	}
	if filter.LeaderUserID != "" {
		args = append(args, filter.LeaderUserID)
		fmt.Fprintf(&b, " AND leader_user_id = $%d", len(args))
	}
	b.WriteString(" ORDER BY name")

	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// FindByID returns a group by identifier.
func (r *GroupRepository) FindByID(ctx context.Context, id int64) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// FindByLeader returns the first group led by the user.
func (r *GroupRepository) FindByLeader(ctx context.Context, leaderID string) (*models.Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE leader_user_id = $1 ORDER BY id LIMIT 1`
	var group models.Group
	if err := r.db.GetContext(ctx, &group, query, leaderID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find group by leader: %w", err)
	}
	return &group, nil
}

// Create inserts a group and fills its generated id.
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO groups (name, territory_id, leader_user_id, zone, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, group.Name, group.TerritoryID, group.LeaderUserID, group.Zone, group.CreatedAt).Scan(&group.ID); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// AssignLeader moves a group to another leader.
func (r *GroupRepository) AssignLeader(ctx context.Context, groupID int64, leaderID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET leader_user_id = $2 WHERE id = $1`, groupID, leaderID)
	if err != nil {
		return fmt.Errorf("assign group leader: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the number of groups.
func (r *GroupRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM groups`); err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return total, nil
}
