package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExportType enumerates the analytics views that can be exported.
type ExportType string

const (
	ExportTypeAttendance ExportType = "attendance"
	ExportTypeBethel     ExportType = "bethel"
)

// ExportFormat enumerates supported export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob persisted background job metadata.
type ExportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ExportType      `db:"type" json:"type"`
	Params       ExportJobParams `db:"params" json:"params"`
	Status       ExportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ExportJobParams stores the analytics query of a job as JSONB.
type ExportJobParams struct {
	Format       ExportFormat `json:"format"`
	Granularity  string       `json:"granularity,omitempty"`
	DateFrom     string       `json:"date_from,omitempty"`
	DateTo       string       `json:"date_to,omitempty"`
	TerritoryIDs []int64      `json:"territory_ids,omitempty"`
	GroupIDs     []int64      `json:"group_ids,omitempty"`
	BethelID     int64        `json:"bethel_id,omitempty"`
	Role         UserRole     `json:"role,omitempty"`
}

// ExportRequest is the payload creating an export job.
type ExportRequest struct {
	Type         ExportType   `json:"type" validate:"required,oneof=attendance bethel"`
	Format       ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Granularity  string       `json:"granularity" validate:"omitempty,oneof=week month quarter year"`
	DateFrom     string       `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo       string       `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
	TerritoryIDs []int64      `json:"territory_ids"`
	GroupIDs     []int64      `json:"group_ids"`
	BethelID     int64        `json:"bethel_id"`
}

// Value marshals params to JSON for persistence.
func (p ExportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *ExportJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = ExportJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExportJobParams", value)
	}
	if len(data) == 0 {
		*p = ExportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal export job params: %w", err)
	}
	return nil
}
