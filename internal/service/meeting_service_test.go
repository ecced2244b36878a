package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

type fakeLeaderGroups map[string]*models.Group

func (f fakeLeaderGroups) FindByLeader(ctx context.Context, leaderID string) (*models.Group, error) {
	if g, ok := f[leaderID]; ok {
		return g, nil
	}
	return nil, sql.ErrNoRows
}

type fakeMeetingRepo struct {
	meetings map[int64]*models.Meeting
	created  int
	updated  []models.Meeting
}

func (f *fakeMeetingRepo) FindByID(ctx context.Context, id int64) (*models.Meeting, error) {
	if m, ok := f.meetings[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMeetingRepo) FindByGroupAndDate(ctx context.Context, groupID int64, date string) (*models.Meeting, error) {
	for _, m := range f.meetings {
		if m.GroupID == groupID && m.Date == date {
			copied := *m
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMeetingRepo) Create(ctx context.Context, groupID int64, date string) (*models.Meeting, error) {
	f.created++
	id := int64(len(f.meetings) + 100)
	m := &models.Meeting{ID: id, GroupID: groupID, Date: date}
	f.meetings[id] = m
	copied := *m
	return &copied, nil
}

func (f *fakeMeetingRepo) UpdateMeta(ctx context.Context, meeting *models.Meeting) error {
	if _, ok := f.meetings[meeting.ID]; !ok {
		return sql.ErrNoRows
	}
	f.updated = append(f.updated, *meeting)
	return nil
}

type fakeAttendanceRepo struct {
	marks         map[int64]*models.AttendanceMark
	people        []*models.Person
	memberships   []string
	membershipErr error
	nextID        int64
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{marks: map[int64]*models.AttendanceMark{}, nextID: 1}
}

func (f *fakeAttendanceRepo) ListEntries(ctx context.Context, meetingID int64) ([]models.AttendanceEntry, error) {
	entries := []models.AttendanceEntry{}
	for _, m := range f.marks {
		if m.MeetingID == meetingID {
			entries = append(entries, models.AttendanceEntry{ID: m.ID, PersonID: m.PersonID, IsNew: m.IsNew})
		}
	}
	return entries, nil
}

func (f *fakeAttendanceRepo) FindByID(ctx context.Context, id int64) (*models.AttendanceMark, error) {
	if m, ok := f.marks[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAttendanceRepo) Exists(ctx context.Context, meetingID int64, personID string) (bool, error) {
	for _, m := range f.marks {
		if m.MeetingID == meetingID && m.PersonID != nil && *m.PersonID == personID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAttendanceRepo) Create(ctx context.Context, mark *models.AttendanceMark) error {
	mark.ID = f.nextID
	f.nextID++
	copied := *mark
	f.marks[mark.ID] = &copied
	return nil
}

func (f *fakeAttendanceRepo) SetNew(ctx context.Context, id int64, isNew bool) error {
	m, ok := f.marks[id]
	if !ok {
		return sql.ErrNoRows
	}
	m.IsNew = isNew
	return nil
}

func (f *fakeAttendanceRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.marks[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.marks, id)
	return nil
}

func (f *fakeAttendanceRepo) CreatePerson(ctx context.Context, person *models.Person) error {
	person.ID = "person-new"
	f.people = append(f.people, person)
	return nil
}

func (f *fakeAttendanceRepo) CreateMembership(ctx context.Context, groupID int64, personID string) error {
	if f.membershipErr != nil {
		return f.membershipErr
	}
	f.memberships = append(f.memberships, personID)
	return nil
}

func (f *fakeAttendanceRepo) ListMembers(ctx context.Context, groupID int64) ([]models.Person, error) {
	return []models.Person{{ID: "p1", FullName: "Ana"}}, nil
}

func ptr[T any](v T) *T { return &v }

type meetingFixture struct {
	svc        *MeetingService
	meetings   *fakeMeetingRepo
	attendance *fakeAttendanceRepo
	cache      *recordingInvalidator
}

func newMeetingFixture() meetingFixture {
	groups := fakeLeaderGroups{
		"leader-1": {ID: 7, Name: "GE-NS-Ana", TerritoryID: 4},
		"leader-2": {ID: 8, Name: "GE-NS-Luis", TerritoryID: 4},
	}
	meetings := &fakeMeetingRepo{meetings: map[int64]*models.Meeting{
		1: {ID: 1, GroupID: 7, Date: "2024-03-05"},
	}}
	attendance := newFakeAttendanceRepo()
	cache := &recordingInvalidator{}
	svc := NewMeetingService(groups, meetings, attendance, cache, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 12, 18, 30, 0, 0, time.UTC) }
	return meetingFixture{svc: svc, meetings: meetings, attendance: attendance, cache: cache}
}

func TestMeetingDuration(t *testing.T) {
	label, err := MeetingDuration(ptr("19:00"), ptr("20:45"))
	require.NoError(t, err)
	assert.Equal(t, "1 h 45 min", label)

	label, err = MeetingDuration(ptr("19:00"), nil)
	require.NoError(t, err)
	assert.Empty(t, label)

	_, err = MeetingDuration(ptr("20:00"), ptr("19:30"))
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTimeRange))
}

func TestMeetingServiceGroupNotAssigned(t *testing.T) {
	f := newMeetingFixture()

	_, err := f.svc.Group(context.Background(), "nobody")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoGroupAssigned.Code, appErrors.FromError(err).Code)
}

func TestMeetingServiceHomeOpensTodayOnce(t *testing.T) {
	f := newMeetingFixture()

	home, err := f.svc.Home(context.Background(), "leader-1", "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-12", home.Meeting.Date)
	assert.Equal(t, int64(7), home.Group.ID)
	assert.Len(t, home.Members, 1)

	again, err := f.svc.Home(context.Background(), "leader-1", "")
	require.NoError(t, err)
	assert.Equal(t, home.Meeting.ID, again.Meeting.ID)
	assert.Equal(t, 1, f.meetings.created)
}

func TestMeetingServiceHomeRejectsBadDate(t *testing.T) {
	f := newMeetingFixture()

	_, err := f.svc.Home(context.Background(), "leader-1", "2024-13-01")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMeetingServiceUpdateMeeting(t *testing.T) {
	f := newMeetingFixture()

	view, err := f.svc.UpdateMeeting(context.Background(), "leader-1", 1, models.UpdateMeetingRequest{
		Address: ptr(" Calle 5 "), StartTime: ptr("19:00"), EndTime: ptr("21:10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2 h 10 min", view.Duration)
	require.Len(t, f.meetings.updated, 1)
	assert.Equal(t, "Calle 5", *f.meetings.updated[0].Address)
	assert.Equal(t, []string{analyticsCachePattern}, f.cache.patterns)
}

func TestMeetingServiceUpdateMeetingInvalidRange(t *testing.T) {
	f := newMeetingFixture()

	_, err := f.svc.UpdateMeeting(context.Background(), "leader-1", 1, models.UpdateMeetingRequest{
		StartTime: ptr("21:00"), EndTime: ptr("19:00"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTimeRange.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.meetings.updated)
}

func TestMeetingServiceUpdateMeetingKeepsDate(t *testing.T) {
	f := newMeetingFixture()

	_, err := f.svc.UpdateMeeting(context.Background(), "leader-1", 1, models.UpdateMeetingRequest{Date: "2024-06-30"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.meetings.updated)
	assert.Equal(t, "2024-03-05", f.meetings.meetings[1].Date)

	view, err := f.svc.UpdateMeeting(context.Background(), "leader-1", 1, models.UpdateMeetingRequest{Date: "2024-03-05", Address: ptr("Calle 5")})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", view.Date)
	require.Len(t, f.meetings.updated, 1)
	assert.Equal(t, "2024-03-05", f.meetings.updated[0].Date)
}

func TestMeetingServiceRejectsForeignMeeting(t *testing.T) {
	f := newMeetingFixture()

	_, err := f.svc.Attendance(context.Background(), "leader-2", 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestMeetingServiceMarkPresentTwice(t *testing.T) {
	f := newMeetingFixture()
	ctx := context.Background()

	mark, err := f.svc.MarkPresent(ctx, "leader-1", 1, models.MarkPresentRequest{PersonID: "p1"})
	require.NoError(t, err)
	assert.False(t, mark.IsNew)

	_, err = f.svc.MarkPresent(ctx, "leader-1", 1, models.MarkPresentRequest{PersonID: "p1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyMarked.Code, appErrors.FromError(err).Code)
	assert.Len(t, f.attendance.marks, 1)
}

func TestMeetingServiceAddVisitor(t *testing.T) {
	f := newMeetingFixture()

	result, err := f.svc.AddVisitor(context.Background(), "leader-1", 1, models.AddVisitorRequest{FullName: " Marta "})
	require.NoError(t, err)

	assert.Equal(t, "Marta", result.Person.FullName)
	require.NotNil(t, result.Person.FirstVisitDate)
	assert.Equal(t, "2024-03-05", *result.Person.FirstVisitDate)
	assert.True(t, result.Attendance.IsNew)
	assert.True(t, result.Membership)
	assert.Equal(t, []string{"person-new"}, f.attendance.memberships)
}

func TestMeetingServiceAddVisitorMembershipFailureIsIgnored(t *testing.T) {
	f := newMeetingFixture()
	f.attendance.membershipErr = errors.New("duplicate key")

	result, err := f.svc.AddVisitor(context.Background(), "leader-1", 1, models.AddVisitorRequest{FullName: "Marta", IsNew: ptr(false)})
	require.NoError(t, err)
	assert.False(t, result.Membership)
	assert.False(t, result.Attendance.IsNew)
	assert.Len(t, f.attendance.marks, 1)
}

func TestMeetingServiceToggleAndDeleteMark(t *testing.T) {
	f := newMeetingFixture()
	ctx := context.Background()

	mark, err := f.svc.MarkPresent(ctx, "leader-1", 1, models.MarkPresentRequest{PersonID: "p1"})
	require.NoError(t, err)

	updated, err := f.svc.ToggleNew(ctx, "leader-1", mark.ID, models.ToggleNewRequest{IsNew: true})
	require.NoError(t, err)
	assert.True(t, updated.IsNew)
	assert.True(t, f.attendance.marks[mark.ID].IsNew)

	err = f.svc.DeleteMark(ctx, "leader-2", mark.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, f.svc.DeleteMark(ctx, "leader-1", mark.ID))
	assert.Empty(t, f.attendance.marks)

	err = f.svc.DeleteMark(ctx, "leader-1", mark.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
