package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RolePastor UserRole = "pastor"
	RoleLeader UserRole = "leader"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RolePastor, RoleLeader:
		return true
	}
	return false
}

// User represents an account stored in the profiles table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"is_active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Account is a leader or pastor profile joined with its territory.
type Account struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	FullName      string    `db:"full_name" json:"full_name"`
	Role          UserRole  `db:"role" json:"role"`
	Active        bool      `db:"is_active" json:"is_active"`
	TerritoryID   *int64    `db:"territory_id" json:"territory_id,omitempty"`
	TerritoryName *string   `db:"territory_name" json:"territory_name,omitempty"`
	GroupID       *int64    `db:"group_id" json:"group_id,omitempty"`
	GroupName     *string   `db:"group_name" json:"group_name,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// AccountFilter captures filtering criteria for listing accounts.
type AccountFilter struct {
	Role      UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateAccountRequest is the admin payload creating a leader, pastor or admin.
type CreateAccountRequest struct {
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=6"`
	FullName    string   `json:"full_name" validate:"required"`
	Role        UserRole `json:"role" validate:"required,oneof=admin pastor leader"`
	TerritoryID *int64   `json:"territory_id"`
	GroupName   string   `json:"group_name"`
}

// CreateAccountParams is the fully resolved write performed by the repository.
type CreateAccountParams struct {
	User        User
	TerritoryID *int64
	GroupName   string
}

// UpdateAccountRequest edits the admin-managed fields of an account.
type UpdateAccountRequest struct {
	FullName    *string `json:"full_name" validate:"omitempty,min=1"`
	Active      *bool   `json:"is_active"`
	TerritoryID *int64  `json:"territory_id"`
}

// LeaderContact is the directory entry used to label leaders in analytics.
type LeaderContact struct {
	UserID   string `db:"id" json:"user_id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// RoleCount is the number of active profiles holding a role.
type RoleCount struct {
	Role  UserRole `db:"role" json:"role"`
	Total int      `db:"total" json:"total"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
