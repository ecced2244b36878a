package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/internal/analytics"
	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

const clockLayout = "15:04"

type leaderGroupFinder interface {
	FindByLeader(ctx context.Context, leaderID string) (*models.Group, error)
}

type meetingRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Meeting, error)
	FindByGroupAndDate(ctx context.Context, groupID int64, date string) (*models.Meeting, error)
	Create(ctx context.Context, groupID int64, date string) (*models.Meeting, error)
	UpdateMeta(ctx context.Context, meeting *models.Meeting) error
}

type attendanceRepository interface {
	ListEntries(ctx context.Context, meetingID int64) ([]models.AttendanceEntry, error)
	FindByID(ctx context.Context, id int64) (*models.AttendanceMark, error)
	Exists(ctx context.Context, meetingID int64, personID string) (bool, error)
	Create(ctx context.Context, mark *models.AttendanceMark) error
	SetNew(ctx context.Context, id int64, isNew bool) error
	Delete(ctx context.Context, id int64) error
	CreatePerson(ctx context.Context, person *models.Person) error
	CreateMembership(ctx context.Context, groupID int64, personID string) error
	ListMembers(ctx context.Context, groupID int64) ([]models.Person, error)
}

// MeetingService runs the weekly meeting of a leader's group: opening the
// meeting of a day, its metadata and the attendance list.
type MeetingService struct {
	groups     leaderGroupFinder
	meetings   meetingRepository
	attendance attendanceRepository
	cache      cacheInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewMeetingService constructs a MeetingService.
func NewMeetingService(groups leaderGroupFinder, meetings meetingRepository, attendance attendanceRepository, cache cacheInvalidator, validate *validator.Validate, logger *zap.Logger) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MeetingService{
		groups:     groups,
		meetings:   meetings,
		attendance: attendance,
		cache:      cache,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// MeetingDuration renders the span between two HH:MM clock times as "H h M min".
// It returns an empty label when either time is missing.
func MeetingDuration(start, end *string) (string, error) {
	if start == nil || end == nil || *start == "" || *end == "" {
		return "", nil
	}
	s, err := time.Parse(clockLayout, *start)
	if err != nil {
		return "", fmt.Errorf("parse start time: %w", err)
	}
	e, err := time.Parse(clockLayout, *end)
	if err != nil {
		return "", fmt.Errorf("parse end time: %w", err)
	}
	if e.Before(s) {
		return "", appErrors.ErrInvalidTimeRange
	}
	minutes := int(e.Sub(s).Minutes())
	return fmt.Sprintf("%d h %d min", minutes/60, minutes%60), nil
}

// Group returns the group led by the leader.
func (s *MeetingService) Group(ctx context.Context, leaderID string) (*models.Group, error) {
	group, err := s.groups.FindByLeader(ctx, leaderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoGroupAssigned, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leader group")
	}
	return group, nil
}

// Home opens the meeting of the date (today when empty) and returns it along
// with the group members and the marks taken so far.
func (s *MeetingService) Home(ctx context.Context, leaderID, date string) (*models.LeaderHome, error) {
	group, err := s.Group(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	meeting, err := s.open(ctx, group.ID, date)
	if err != nil {
		return nil, err
	}

	members, err := s.attendance.ListMembers(ctx, group.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load members")
	}
	entries, err := s.attendance.ListEntries(ctx, meeting.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	return &models.LeaderHome{
		Group:      *group,
		Meeting:    meetingView(meeting),
		Members:    members,
		Attendance: entries,
	}, nil
}

// Members lists the people of the leader's group.
func (s *MeetingService) Members(ctx context.Context, leaderID string) ([]models.Person, error) {
	group, err := s.Group(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	members, err := s.attendance.ListMembers(ctx, group.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load members")
	}
	return members, nil
}

// UpdateMeeting edits the metadata of one of the leader's meetings.
func (s *MeetingService) UpdateMeeting(ctx context.Context, leaderID string, meetingID int64, req models.UpdateMeetingRequest) (*models.MeetingView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting payload")
	}
	meeting, _, err := s.ownedMeeting(ctx, leaderID, meetingID)
	if err != nil {
		return nil, err
	}

	if req.Date != "" && req.Date != meeting.Date {
		return nil, appErrors.Clone(appErrors.ErrValidation, "meeting date cannot change; open the meeting of that day instead")
	}
	meeting.Address = blankToNil(req.Address)
	meeting.StartTime = blankToNil(req.StartTime)
	meeting.EndTime = blankToNil(req.EndTime)
	meeting.HelperName = blankToNil(req.HelperName)

	duration, err := MeetingDuration(meeting.StartTime, meeting.EndTime)
	if err != nil {
		if errors.Is(err, appErrors.ErrInvalidTimeRange) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTimeRange, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting time")
	}

	if err := s.meetings.UpdateMeta(ctx, meeting); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update meeting")
	}
	s.invalidate(ctx)
	return &models.MeetingView{Meeting: *meeting, Duration: duration}, nil
}

// Attendance lists the marks of one of the leader's meetings.
func (s *MeetingService) Attendance(ctx context.Context, leaderID string, meetingID int64) ([]models.AttendanceEntry, error) {
	if _, _, err := s.ownedMeeting(ctx, leaderID, meetingID); err != nil {
		return nil, err
	}
	entries, err := s.attendance.ListEntries(ctx, meetingID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	return entries, nil
}

// MarkPresent records an existing member at a meeting once.
func (s *MeetingService) MarkPresent(ctx context.Context, leaderID string, meetingID int64, req models.MarkPresentRequest) (*models.AttendanceMark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if _, _, err := s.ownedMeeting(ctx, leaderID, meetingID); err != nil {
		return nil, err
	}

	exists, err := s.attendance.Exists(ctx, meetingID, req.PersonID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrAlreadyMarked, "")
	}

	mark := &models.AttendanceMark{MeetingID: meetingID, PersonID: &req.PersonID, IsNew: false}
	if err := s.attendance.Create(ctx, mark); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}
	s.invalidate(ctx)
	return mark, nil
}

// AddVisitor registers a person first seen at the meeting, marks them present
// and adds them to the group. A failed membership is logged, not returned.
func (s *MeetingService) AddVisitor(ctx context.Context, leaderID string, meetingID int64, req models.AddVisitorRequest) (*models.VisitorResult, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid visitor payload")
	}
	meeting, group, err := s.ownedMeeting(ctx, leaderID, meetingID)
	if err != nil {
		return nil, err
	}

	visit := meeting.Date
	person := &models.Person{
		FullName:       req.FullName,
		Age:            req.Age,
		Email:          blankToNil(req.Email),
		Phone:          blankToNil(req.Phone),
		FirstVisitDate: &visit,
	}
	if err := s.attendance.CreatePerson(ctx, person); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create person")
	}

	isNew := true
	if req.IsNew != nil {
		isNew = *req.IsNew
	}
	mark := models.AttendanceMark{MeetingID: meeting.ID, PersonID: &person.ID, IsNew: isNew}
	if err := s.attendance.Create(ctx, &mark); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}

	result := &models.VisitorResult{Person: *person, Attendance: mark, Membership: true}
	if err := s.attendance.CreateMembership(ctx, group.ID, person.ID); err != nil {
		s.logger.Warn("visitor membership not created",
			zap.Int64("group_id", group.ID),
			zap.String("person_id", person.ID),
			zap.Error(err),
		)
		result.Membership = false
	}
	s.invalidate(ctx)
	return result, nil
}

// ToggleNew updates the first-time flag of a mark.
func (s *MeetingService) ToggleNew(ctx context.Context, leaderID string, markID int64, req models.ToggleNewRequest) (*models.AttendanceMark, error) {
	mark, err := s.ownedMark(ctx, leaderID, markID)
	if err != nil {
		return nil, err
	}
	if err := s.attendance.SetNew(ctx, markID, req.IsNew); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance")
	}
	mark.IsNew = req.IsNew
	s.invalidate(ctx)
	return mark, nil
}

// DeleteMark removes a mark from one of the leader's meetings.
func (s *MeetingService) DeleteMark(ctx context.Context, leaderID string, markID int64) error {
	if _, err := s.ownedMark(ctx, leaderID, markID); err != nil {
		return err
	}
	if err := s.attendance.Delete(ctx, markID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	s.invalidate(ctx)
	return nil
}

func (s *MeetingService) open(ctx context.Context, groupID int64, date string) (*models.Meeting, error) {
	if date == "" {
		date = analytics.FormatDate(s.now())
	} else if _, err := analytics.ParseDate(date); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid meeting date")
	}

	meeting, err := s.meetings.FindByGroupAndDate(ctx, groupID, date)
	if err == nil {
		return meeting, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}

	meeting, err = s.meetings.Create(ctx, groupID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create meeting")
	}
	s.logger.Debug("meeting opened", zap.Int64("group_id", groupID), zap.String("date", date))
	return meeting, nil
}

func (s *MeetingService) ownedMeeting(ctx context.Context, leaderID string, meetingID int64) (*models.Meeting, *models.Group, error) {
	group, err := s.Group(ctx, leaderID)
	if err != nil {
		return nil, nil, err
	}
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}
	if meeting.GroupID != group.ID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "meeting belongs to another group")
	}
	return meeting, group, nil
}

func (s *MeetingService) ownedMark(ctx context.Context, leaderID string, markID int64) (*models.AttendanceMark, error) {
	mark, err := s.attendance.FindByID(ctx, markID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if _, _, err := s.ownedMeeting(ctx, leaderID, mark.MeetingID); err != nil {
		return nil, err
	}
	return mark, nil
}

func (s *MeetingService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, analyticsCachePattern); err != nil {
		s.logger.Warn("failed to invalidate analytics cache", zap.Error(err))
	}
}

func meetingView(meeting *models.Meeting) models.MeetingView {
	duration, err := MeetingDuration(meeting.StartTime, meeting.EndTime)
	if err != nil {
		duration = ""
	}
	return models.MeetingView{Meeting: *meeting, Duration: duration}
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
