package models

import "time"

// Territory is the top scoping dimension for pastors and admins.
type Territory struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"is_active" json:"is_active"`
	PastorID  *string   `db:"pastor_id" json:"pastor_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TerritoryRequest creates or renames a territory.
type TerritoryRequest struct {
	Name     string  `json:"name" validate:"required,max=120"`
	Active   *bool   `json:"is_active"`
	PastorID *string `json:"pastor_id"`
}

// TerritoryDistribution counts the active leaders and pastors of a territory.
type TerritoryDistribution struct {
	TerritoryID   *int64 `db:"territory_id" json:"territory_id,omitempty"`
	TerritoryName string `db:"territory_name" json:"territory_name"`
	Leaders       int    `db:"leaders" json:"leaders"`
	Pastors       int    `db:"pastors" json:"pastors"`
	Total         int    `db:"-" json:"total"`
}
