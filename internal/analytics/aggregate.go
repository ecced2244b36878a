package analytics

import (
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

// NoLeader labels groups without an assigned leader.
const NoLeader = "—"

// Input carries everything the aggregator reads. It is never mutated.
type Input struct {
	Meetings       []models.Meeting
	Attendance     []models.AttendanceMark
	Groups         []models.Group
	Leaders        map[string]models.LeaderContact
	Granularity    Granularity
	DateFrom       string
	DateTo         string
	ActiveGroupIDs []int64
}

// SeriesPoint is one bucket of the attendance time series.
type SeriesPoint struct {
	Bucket        string `json:"bucket"`
	Label         string `json:"label"`
	Date          string `json:"date"`
	Attendance    int    `json:"attendance"`
	UniquePeople  int    `json:"unique_people"`
	GroupsActive  int    `json:"groupsActive"`
	NewAttendance int    `json:"new_attendance"`
}

// GroupSummary totals attendance of one group across the range.
type GroupSummary struct {
	GroupID      int64  `json:"group_id"`
	Name         string `json:"name"`
	Attendance   int    `json:"attendance"`
	UniquePeople int    `json:"unique_people"`
}

// LeaderSummary totals attendance of the groups led by one leader.
type LeaderSummary struct {
	LeaderUserID string `json:"leader_user_id,omitempty"`
	Name         string `json:"name"`
	Attendance   int    `json:"attendance"`
	UniquePeople int    `json:"unique_people"`
}

// Result is the output of Aggregate.
type Result struct {
	TimeSeries []SeriesPoint   `json:"timeSeries"`
	ByGroup    []GroupSummary  `json:"byGroup"`
	ByLeader   []LeaderSummary `json:"byLeader"`
}

type scopedMeeting struct {
	bucket string
	group  models.Group
}

// Aggregate turns meetings and attendance marks into a dense time series plus
// per-group and per-leader summaries restricted to in.ActiveGroupIDs.
// It fails only on an invalid granularity or date range bounds.
func Aggregate(in Input) (Result, error) {
	buckets, err := GenerateBucketRange(in.Granularity, in.DateFrom, in.DateTo)
	if err != nil {
		return Result{}, err
	}
	from, _ := ParseDate(in.DateFrom)
	to, _ := ParseDate(in.DateTo)

	active := make(map[int64]struct{}, len(in.ActiveGroupIDs))
	for _, id := range in.ActiveGroupIDs {
		active[id] = struct{}{}
	}

	groups := make(map[int64]models.Group, len(active))
	byGroup := NewGroups[int64, Tally]()
	byLeader := NewGroups[string, Tally]()
	for _, g := range in.Groups {
		if _, ok := active[g.ID]; !ok {
			continue
		}
		if _, seen := groups[g.ID]; seen {
			continue
		}
		groups[g.ID] = g
		byGroup.Slot(g.ID)
		byLeader.Slot(leaderKey(g))
	}

	series := NewGroups[string, Tally]()
	activity := NewGroups[string, Tally]()
	for _, b := range buckets {
		series.Slot(b.Key)
		activity.Slot(b.Key)
	}

	meetings := make(map[int64]scopedMeeting, len(in.Meetings))
	for _, m := range in.Meetings {
		g, ok := groups[m.GroupID]
		if !ok {
			continue
		}
		day, err := ParseDate(m.Date)
		if err != nil || day.Before(from) || day.After(to) {
			continue
		}
		key, _ := BucketKeyAndLabel(day, in.Granularity)
		meetings[m.ID] = scopedMeeting{bucket: key, group: g}
	}

	Fold(in.Meetings, GroupBy(activity, func(m models.Meeting) (string, bool) {
		sm, ok := meetings[m.ID]
		return sm.bucket, ok && activity.Has(sm.bucket)
	}, func(t *Tally, m models.Meeting) {
		groupRef := strconv.FormatInt(m.GroupID, 10)
		t.Add(&groupRef, false)
	}))

	addMark := func(t *Tally, a models.AttendanceMark) { t.Add(a.PersonID, a.IsNew) }
	Fold(in.Attendance,
		GroupBy(series, func(a models.AttendanceMark) (string, bool) {
			sm, ok := meetings[a.MeetingID]
			return sm.bucket, ok && series.Has(sm.bucket)
		}, addMark),
		GroupBy(byGroup, func(a models.AttendanceMark) (int64, bool) {
			sm, ok := meetings[a.MeetingID]
			return sm.group.ID, ok
		}, addMark),
		GroupBy(byLeader, func(a models.AttendanceMark) (string, bool) {
			sm, ok := meetings[a.MeetingID]
			return leaderKey(sm.group), ok
		}, addMark),
	)

	result := Result{
		TimeSeries: make([]SeriesPoint, 0, len(buckets)),
		ByGroup:    make([]GroupSummary, 0, byGroup.Len()),
		ByLeader:   make([]LeaderSummary, 0, byLeader.Len()),
	}

	for _, b := range buckets {
		t := series.Slot(b.Key)
		result.TimeSeries = append(result.TimeSeries, SeriesPoint{
			Bucket:        b.Key,
			Label:         b.Label,
			Date:          FormatDate(b.Start),
			Attendance:    t.Count,
			UniquePeople:  t.Unique(),
			GroupsActive:  activity.Slot(b.Key).Unique(),
			NewAttendance: t.New,
		})
	}

	for _, id := range byGroup.Keys() {
		t := byGroup.Slot(id)
		result.ByGroup = append(result.ByGroup, GroupSummary{
			GroupID:      id,
			Name:         groups[id].Name,
			Attendance:   t.Count,
			UniquePeople: t.Unique(),
		})
	}
	sort.SliceStable(result.ByGroup, func(i, j int) bool {
		return result.ByGroup[i].UniquePeople > result.ByGroup[j].UniquePeople
	})

	for _, key := range byLeader.Keys() {
		t := byLeader.Slot(key)
		summary := LeaderSummary{
			Name:         leaderName(key, in.Leaders),
			Attendance:   t.Count,
			UniquePeople: t.Unique(),
		}
		if key != NoLeader {
			summary.LeaderUserID = key
		}
		result.ByLeader = append(result.ByLeader, summary)
	}
	sort.SliceStable(result.ByLeader, func(i, j int) bool {
		return result.ByLeader[i].UniquePeople > result.ByLeader[j].UniquePeople
	})

	return result, nil
}

func leaderKey(g models.Group) string {
	if g.LeaderUserID == nil || strings.TrimSpace(*g.LeaderUserID) == "" {
		return NoLeader
	}
	return *g.LeaderUserID
}

func leaderName(key string, directory map[string]models.LeaderContact) string {
	if key == NoLeader {
		return NoLeader
	}
	contact, ok := directory[key]
	if !ok {
		return key
	}
	if name := strings.TrimSpace(contact.FullName); name != "" {
		return name
	}
	if email := strings.TrimSpace(contact.Email); email != "" {
		return email
	}
	return key
}
