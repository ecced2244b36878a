package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

// TerritoryRepository persists territories and their pastor/leader links.
type TerritoryRepository struct {
	db *sqlx.DB
}

// NewTerritoryRepository constructs the repository.
func NewTerritoryRepository(db *sqlx.DB) *TerritoryRepository {
	return &TerritoryRepository{db: db}
}

// List returns territories ordered by name.
func (r *TerritoryRepository) List(ctx context.Context, onlyActive bool) ([]models.Territory, error) {
	query := `SELECT id, name, is_active, pastor_id, created_at FROM territories`
	if onlyActive {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY name`

	var territories []models.Territory
	if err := r.db.SelectContext(ctx, &territories, query); err != nil {
		return nil, fmt.Errorf("list territories: %w", err)
	}
	return territories, nil
}

// ListByPastor returns the territories a pastor oversees.
func (r *TerritoryRepository) ListByPastor(ctx context.Context, pastorID string) ([]models.Territory, error) {
	const query = `SELECT t.id, t.name, t.is_active, t.pastor_id, t.created_at FROM territories t WHERE t.pastor_id = $1 OR t.id IN (SELECT territory_id FROM pastor_territories WHERE user_id = $1) ORDER BY t.name`
	var territories []models.Territory
	if err := r.db.SelectContext(ctx, &territories, query, pastorID); err != nil {
		return nil, fmt.Errorf("list pastor territories: %w", err)
	}
	return territories, nil
}

// FindByID returns a territory by identifier.
func (r *TerritoryRepository) FindByID(ctx context.Context, id int64) (*models.Territory, error) {
	const query = `SELECT id, name, is_active, pastor_id, created_at FROM territories WHERE id = $1`
	var territory models.Territory
	if err := r.db.GetContext(ctx, &territory, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find territory: %w", err)
	}
	return &territory, nil
}

// Create inserts a territory and fills its generated id.
func (r *TerritoryRepository) Create(ctx context.Context, territory *models.Territory) error {
	if territory.CreatedAt.IsZero() {
		territory.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO territories (name, is_active, pastor_id, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, territory.Name, territory.Active, territory.PastorID, territory.CreatedAt).Scan(&territory.ID); err != nil {
		return fmt.Errorf("create territory: %w", err)
	}
	return nil
}

// Update persists name, active flag and pastor of a territory.
func (r *TerritoryRepository) Update(ctx context.Context, territory *models.Territory) error {
	const query = `UPDATE territories SET name = $2, is_active = $3, pastor_id = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, territory.ID, territory.Name, territory.Active, territory.PastorID)
	if err != nil {
		return fmt.Errorf("update territory: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a territory.
func (r *TerritoryRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM territories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete territory: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Distribution counts active leaders and pastors per active territory.
func (r *TerritoryRepository) Distribution(ctx context.Context) ([]models.TerritoryDistribution, error) {
	const query = `SELECT t.id AS territory_id, t.name AS territory_name,
COUNT(DISTINCT lp.id) AS leaders, COUNT(DISTINCT pp.id) AS pastors
FROM territories t
LEFT JOIN leader_territories lt ON lt.territory_id = t.id
LEFT JOIN profiles lp ON lp.id = lt.user_id AND lp.is_active = TRUE AND lp.role = 'leader'
LEFT JOIN pastor_territories pt ON pt.territory_id = t.id
LEFT JOIN profiles pp ON pp.id = pt.user_id AND pp.is_active = TRUE AND pp.role = 'pastor'
WHERE t.is_active = TRUE
GROUP BY t.id, t.name`
	var rows []models.TerritoryDistribution
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("territory distribution: %w", err)
	}
	return rows, nil
}

// Count returns the number of territories.
func (r *TerritoryRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM territories`); err != nil {
		return 0, fmt.Errorf("count territories: %w", err)
	}
	return total, nil
}
