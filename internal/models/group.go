package models

import "time"

// Group is a small group led by one leader inside a territory.
type Group struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	TerritoryID  int64     `db:"territory_id" json:"territory_id"`
	LeaderUserID *string   `db:"leader_user_id" json:"leader_user_id,omitempty"`
	Zone         *string   `db:"zone" json:"zone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// GroupFilter narrows group listings.
type GroupFilter struct {
	TerritoryIDs []int64
	LeaderUserID string
}

// CreateGroupRequest creates a group, optionally assigning its leader.
type CreateGroupRequest struct {
	Name         string  `json:"name" validate:"required,max=120"`
	TerritoryID  int64   `json:"territory_id" validate:"required,gt=0"`
	LeaderUserID *string `json:"leader_user_id"`
	Zone         *string `json:"zone"`
}

// AssignLeaderRequest moves a group to another leader.
type AssignLeaderRequest struct {
	LeaderUserID string `json:"leader_user_id" validate:"required"`
}
