package models

import "time"

const (
	AuditActionLogin         = "LOGIN"
	AuditActionLogout        = "LOGOUT"
	AuditActionAccountCreate = "ACCOUNT_CREATE"
	AuditActionAccountUpdate = "ACCOUNT_UPDATE"
	AuditActionBethelDelete  = "BETHEL_DELETE"
	AuditActionTerritoryDrop = "TERRITORY_DELETE"
	AuditActionGroupLeader   = "GROUP_LEADER_ASSIGN"
	AuditActionExportCreate  = "EXPORT_CREATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
