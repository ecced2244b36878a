package models

import "time"

// StaffRole enumerates the roles a person can serve at a Bethel.
type StaffRole string

const (
	StaffRoleCoordinator    StaffRole = "coordinator"
	StaffRoleSpiritualGuide StaffRole = "spiritual_guide"
	StaffRoleGuide          StaffRole = "guide"
)

// Single reports whether only one person may hold the role per group type.
func (r StaffRole) Single() bool {
	return r == StaffRoleCoordinator || r == StaffRoleSpiritualGuide
}

// Bethel is a retreat event.
type Bethel struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Year      *int      `db:"year" json:"year,omitempty"`
	StartsOn  *string   `db:"starts_on" json:"starts_on,omitempty"`
	EndsOn    *string   `db:"ends_on" json:"ends_on,omitempty"`
	Active    bool      `db:"is_active" json:"is_active"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedBy *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BethelRequest creates or updates a Bethel.
type BethelRequest struct {
	Name     string  `json:"name" validate:"required,max=160"`
	Year     *int    `json:"year" validate:"omitempty,gte=1900,lte=2200"`
	StartsOn *string `json:"starts_on" validate:"omitempty,datetime=2006-01-02"`
	EndsOn   *string `json:"ends_on" validate:"omitempty,datetime=2006-01-02"`
	Active   *bool   `json:"is_active"`
	Notes    *string `json:"notes"`
}

// BethelStaff is a staff assignment of a Bethel.
type BethelStaff struct {
	ID            int64     `db:"id" json:"id"`
	BethelID      int64     `db:"bethel_id" json:"bethel_id"`
	UserID        *string   `db:"user_id" json:"user_id,omitempty"`
	RoleType      StaffRole `db:"role_type" json:"role_type"`
	GroupType     string    `db:"group_type" json:"group_type"`
	Active        bool      `db:"is_active" json:"is_active"`
	Excuse        *string   `db:"excuse" json:"excuse,omitempty"`
	ExternalName  *string   `db:"external_name" json:"external_name,omitempty"`
	ExternalEmail *string   `db:"external_email" json:"external_email,omitempty"`
	FullName      *string   `db:"full_name" json:"full_name,omitempty"`
	Email         *string   `db:"email" json:"email,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// StaffRequest assigns a coordinator, spiritual guide or guide.
type StaffRequest struct {
	RoleType      StaffRole `json:"role_type" validate:"omitempty,oneof=coordinator spiritual_guide guide"`
	GroupType     string    `json:"group_type" validate:"required,oneof=women men mixed"`
	UserID        *string   `json:"user_id"`
	ExternalName  *string   `json:"external_name"`
	ExternalEmail *string   `json:"external_email" validate:"omitempty,email"`
	Active        *bool     `json:"is_active"`
	Excuse        *string   `json:"excuse"`
}

// StaffRoleCount counts staff assignments per role.
type StaffRoleCount struct {
	RoleType StaffRole `db:"role_type" json:"role_type"`
	Total    int       `db:"total" json:"total"`
}

// BethelAttendanceRow holds the pre-aggregated counts a group reported for a Bethel date.
type BethelAttendanceRow struct {
	ID             int64  `db:"id" json:"id"`
	BethelID       int64  `db:"bethel_id" json:"bethel_id"`
	GroupID        int64  `db:"group_id" json:"group_id"`
	Date           string `db:"date" json:"date"`
	RealAttendance int    `db:"real_attendance" json:"real_attendance"`
	Prospects      int    `db:"prospects" json:"prospects"`
}

// BethelAttendanceFilter scopes Bethel attendance reads.
type BethelAttendanceFilter struct {
	BethelID int64
	GroupIDs []int64
	DateFrom string
	DateTo   string
}

// BethelAttendanceRequest records the counts of a group for a date.
type BethelAttendanceRequest struct {
	GroupID        int64  `json:"group_id" validate:"required,gt=0"`
	Date           string `json:"date" validate:"required,datetime=2006-01-02"`
	RealAttendance int    `json:"real_attendance" validate:"gte=0"`
	Prospects      int    `json:"prospects" validate:"gte=0"`
}
