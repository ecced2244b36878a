package models

import "time"

// Meeting is the single gathering of a group on one calendar day.
type Meeting struct {
	ID         int64     `db:"id" json:"id"`
	GroupID    int64     `db:"group_id" json:"group_id"`
	Date       string    `db:"date" json:"date"`
	Address    *string   `db:"address" json:"address,omitempty"`
	StartTime  *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime    *string   `db:"end_time" json:"end_time,omitempty"`
	HelperName *string   `db:"helper_name" json:"helper_name,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MeetingFilter scopes meeting reads for analytics.
type MeetingFilter struct {
	GroupIDs []int64
	DateFrom string
	DateTo   string
}

// UpdateMeetingRequest edits the metadata of a meeting.
type UpdateMeetingRequest struct {
	Date       string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Address    *string `json:"address"`
	StartTime  *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime    *string `json:"end_time" validate:"omitempty,datetime=15:04"`
	HelperName *string `json:"helper_name"`
}

// MeetingView is a meeting together with its computed duration label.
type MeetingView struct {
	Meeting
	Duration string `json:"duration,omitempty"`
}

// AttendanceMark records that a person was present at a meeting.
type AttendanceMark struct {
	ID        int64     `db:"id" json:"id"`
	MeetingID int64     `db:"meeting_id" json:"meeting_id"`
	PersonID  *string   `db:"person_id" json:"person_id,omitempty"`
	IsNew     bool      `db:"is_new" json:"is_new"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AttendanceEntry is a mark joined with the person it belongs to.
type AttendanceEntry struct {
	ID        int64     `db:"id" json:"id"`
	IsNew     bool      `db:"is_new" json:"is_new"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	PersonID  *string   `db:"person_id" json:"person_id,omitempty"`
	FullName  *string   `db:"full_name" json:"full_name,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Age       *int      `db:"age" json:"age,omitempty"`
}

// MarkPresentRequest marks an existing member as present.
type MarkPresentRequest struct {
	PersonID string `json:"person_id" validate:"required"`
}

// ToggleNewRequest flips the first-time flag of a mark.
type ToggleNewRequest struct {
	IsNew bool `json:"is_new"`
}

// Person is someone who attended or belongs to a group.
type Person struct {
	ID             string    `db:"id" json:"id"`
	FullName       string    `db:"full_name" json:"full_name"`
	Age            *int      `db:"age" json:"age,omitempty"`
	Phone          *string   `db:"phone" json:"phone,omitempty"`
	Email          *string   `db:"email" json:"email,omitempty"`
	FirstVisitDate *string   `db:"first_visit_date" json:"first_visit_date,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// AddVisitorRequest registers a visitor and marks them present.
type AddVisitorRequest struct {
	FullName string  `json:"full_name" validate:"required,max=160"`
	Age      *int    `json:"age" validate:"omitempty,gte=0,lte=130"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=40"`
	IsNew    *bool   `json:"is_new"`
}

// VisitorResult is the outcome of registering a visitor.
type VisitorResult struct {
	Person     Person         `json:"person"`
	Attendance AttendanceMark `json:"attendance"`
	Membership bool           `json:"membership"`
}

// LeaderHome is everything a leader needs to run the meeting of a day.
type LeaderHome struct {
	Group      Group             `json:"group"`
	Meeting    MeetingView       `json:"meeting"`
	Members    []Person          `json:"members"`
	Attendance []AttendanceEntry `json:"attendance"`
}
