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

const meetingColumns = `id, group_id, to_char(date, 'YYYY-MM-DD') AS date, address, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time, helper_name, created_at`

// MeetingRepository persists group meetings.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// FindByID returns a meeting by identifier.
func (r *MeetingRepository) FindByID(ctx context.Context, id int64) (*models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	return &meeting, nil
}

// FindByGroupAndDate returns the meeting a group held on a date.
func (r *MeetingRepository) FindByGroupAndDate(ctx context.Context, groupID int64, date string) (*models.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE group_id = $1 AND date = $2`
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, groupID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting by date: %w", err)
	}
	return &meeting, nil
}

// Create opens the meeting of a group for a date. A concurrent insert for the
// same day is absorbed and the stored row is returned.
func (r *MeetingRepository) Create(ctx context.Context, groupID int64, date string) (*models.Meeting, error) {
	const query = `INSERT INTO meetings (group_id, date, created_at) VALUES ($1, $2, $3) ON CONFLICT (group_id, date) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, date, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("create meeting: %w", err)
	}
	return r.FindByGroupAndDate(ctx, groupID, date)
}

// UpdateMeta persists address, times and helper of a meeting. The date is
// fixed at creation.
func (r *MeetingRepository) UpdateMeta(ctx context.Context, meeting *models.Meeting) error {
	const query = `UPDATE meetings SET address = $2, start_time = $3, end_time = $4, helper_name = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, meeting.ID, meeting.Address, meeting.StartTime, meeting.EndTime, meeting.HelperName)
	if err != nil {
		return fmt.Errorf("update meeting: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByGroupsAndRange returns meetings of the groups within the inclusive range.
// A nil GroupIDs slice means every group; an empty one matches nothing.
func (r *MeetingRepository) ListByGroupsAndRange(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error) {
	if filter.GroupIDs != nil && len(filter.GroupIDs) == 0 {
		return []models.Meeting{}, nil
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + meetingColumns + ` FROM meetings WHERE 1=1`)
	args := make([]interface{}, 0, 3)
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
	b.WriteString(" ORDER BY date, id")

	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	return meetings, nil
}
