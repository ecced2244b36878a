package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

// AttendanceRepository persists attendance marks, people and memberships.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListByMeetings returns the marks of the given meetings.
func (r *AttendanceRepository) ListByMeetings(ctx context.Context, meetingIDs []int64) ([]models.AttendanceMark, error) {
	if len(meetingIDs) == 0 {
		return []models.AttendanceMark{}, nil
	}
	const query = `SELECT id, meeting_id, person_id, is_new, created_at FROM attendance WHERE meeting_id = ANY($1) ORDER BY id`
	var marks []models.AttendanceMark
	if err := r.db.SelectContext(ctx, &marks, query, pq.Array(meetingIDs)); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return marks, nil
}

// ListEntries returns the marks of one meeting joined with the people.
func (r *AttendanceRepository) ListEntries(ctx context.Context, meetingID int64) ([]models.AttendanceEntry, error) {
	const query = `SELECT a.id, a.is_new, a.created_at, a.person_id, p.full_name, p.phone, p.email, p.age FROM attendance a LEFT JOIN people p ON p.id = a.person_id WHERE a.meeting_id = $1 ORDER BY a.id`
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, query, meetingID); err != nil {
		return nil, fmt.Errorf("list attendance entries: %w", err)
	}
	return entries, nil
}

// FindByID returns a mark by identifier.
func (r *AttendanceRepository) FindByID(ctx context.Context, id int64) (*models.AttendanceMark, error) {
	const query = `SELECT id, meeting_id, person_id, is_new, created_at FROM attendance WHERE id = $1`
	var mark models.AttendanceMark
	if err := r.db.GetContext(ctx, &mark, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &mark, nil
}

// Exists reports whether the person is already marked at the meeting.
func (r *AttendanceRepository) Exists(ctx context.Context, meetingID int64, personID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM attendance WHERE meeting_id = $1 AND person_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, meetingID, personID); err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

// Create inserts a mark and fills its generated id.
func (r *AttendanceRepository) Create(ctx context.Context, mark *models.AttendanceMark) error {
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (meeting_id, person_id, is_new, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query, mark.MeetingID, mark.PersonID, mark.IsNew, mark.CreatedAt).Scan(&mark.ID); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// SetNew flips the first-time flag of a mark.
func (r *AttendanceRepository) SetNew(ctx context.Context, id int64, isNew bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE attendance SET is_new = $2 WHERE id = $1`, id, isNew)
	if err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a mark.
func (r *AttendanceRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreatePerson inserts a person record.
func (r *AttendanceRepository) CreatePerson(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	if person.CreatedAt.IsZero() {
		person.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO people (id, full_name, age, phone, email, first_visit_date, created_at) VALUES (:id, :full_name, :age, :phone, :email, :first_visit_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// CreateMembership adds a person to a group as a member.
func (r *AttendanceRepository) CreateMembership(ctx context.Context, groupID int64, personID string) error {
	const query = `INSERT INTO memberships (group_id, person_id, is_member, created_at) VALUES ($1, $2, TRUE, $3) ON CONFLICT (group_id, person_id) DO UPDATE SET is_member = TRUE`
	if _, err := r.db.ExecContext(ctx, query, groupID, personID, time.Now().UTC()); err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// ListMembers returns the people belonging to a group.
func (r *AttendanceRepository) ListMembers(ctx context.Context, groupID int64) ([]models.Person, error) {
	const query = `SELECT p.id, p.full_name, p.age, p.phone, p.email, to_char(p.first_visit_date, 'YYYY-MM-DD') AS first_visit_date, p.created_at FROM memberships m JOIN people p ON p.id = m.person_id WHERE m.group_id = $1 AND m.is_member = TRUE ORDER BY p.full_name`
	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, query, groupID); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return people, nil
}
