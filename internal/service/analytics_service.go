package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/internal/analytics"
	"github.com/noah-isme/smallgroups-admin-api/internal/dto"
	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

const defaultBethelTop = 5

type scopeTerritoryReader interface {
	List(ctx context.Context, onlyActive bool) ([]models.Territory, error)
	ListByPastor(ctx context.Context, pastorID string) ([]models.Territory, error)
}

type scopeGroupReader interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, error)
	FindByLeader(ctx context.Context, leaderID string) (*models.Group, error)
}

type meetingRangeReader interface {
	ListByGroupsAndRange(ctx context.Context, filter models.MeetingFilter) ([]models.Meeting, error)
}

type markReader interface {
	ListByMeetings(ctx context.Context, meetingIDs []int64) ([]models.AttendanceMark, error)
}

type leaderDirectory interface {
	Directory(ctx context.Context, ids []string) ([]models.LeaderContact, error)
}

type bethelAttendanceReader interface {
	ListAttendance(ctx context.Context, filter models.BethelAttendanceFilter) ([]models.BethelAttendanceRow, error)
}

// AnalyticsServiceParams groups constructor dependencies.
type AnalyticsServiceParams struct {
	Territories scopeTerritoryReader
	Groups      scopeGroupReader
	Meetings    meetingRangeReader
	Marks       markReader
	Directory   leaderDirectory
	Bethels     bethelAttendanceReader
	Cache       *CacheService
	Metrics     *MetricsService
	Logger      *zap.Logger
	CacheTTL    time.Duration
	Concurrency int
	DefaultTop  int
}

// AnalyticsService loads the rows a caller may see and runs the aggregation
// engine over them.
type AnalyticsService struct {
	territories scopeTerritoryReader
	groups      scopeGroupReader
	meetings    meetingRangeReader
	marks       markReader
	directory   leaderDirectory
	bethels     bethelAttendanceReader
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	ttl         time.Duration
	defaultTop  int
	pool        pond.Pool
	now         func() time.Time
}

// scope is the resolved visibility of one caller for one query.
type scope struct {
	territories  []models.Territory
	groups       []models.Group
	territoryIDs []int64
	groupIDs     []int64
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(params AnalyticsServiceParams) *AnalyticsService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := params.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	defaultTop := params.DefaultTop
	if defaultTop != 5 && defaultTop != 8 {
		defaultTop = defaultBethelTop
	}
	return &AnalyticsService{
		territories: params.Territories,
		groups:      params.Groups,
		meetings:    params.Meetings,
		marks:       params.Marks,
		directory:   params.Directory,
		bethels:     params.Bethels,
		cache:       params.Cache,
		metrics:     params.Metrics,
		logger:      logger,
		ttl:         params.CacheTTL,
		defaultTop:  defaultTop,
		pool:        pond.NewPool(concurrency),
		now:         time.Now,
	}
}

// Normalize fills the defaults of a query (month granularity, first of the
// current month until today, configured top) and validates it.
func (s *AnalyticsService) Normalize(q dto.AnalyticsQuery) (dto.AnalyticsQuery, error) {
	if q.Granularity == "" {
		q.Granularity = analytics.Month
	}
	g, err := analytics.ParseGranularity(string(q.Granularity))
	if err != nil {
		return q, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid granularity")
	}
	q.Granularity = g

	today := s.now().UTC()
	if q.DateFrom == "" {
		q.DateFrom = analytics.FormatDate(time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC))
	}
	if q.DateTo == "" {
		q.DateTo = analytics.FormatDate(today)
	}
	from, err := analytics.ParseDate(q.DateFrom)
	if err != nil {
		return q, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date_from")
	}
	to, err := analytics.ParseDate(q.DateTo)
	if err != nil {
		return q, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date_to")
	}
	if from.After(to) {
		return q, appErrors.Clone(appErrors.ErrValidation, "date_from must not be after date_to")
	}

	switch q.Top {
	case 0:
		q.Top = s.defaultTop
	case 5, 8:
	default:
		return q, appErrors.Clone(appErrors.ErrValidation, "top must be 5 or 8")
	}
	return q, nil
}

// Attendance aggregates weekly meeting attendance visible to the caller. The
// boolean reports whether the payload came from cache.
func (s *AnalyticsService) Attendance(ctx context.Context, claims *models.JWTClaims, q dto.AnalyticsQuery) (*dto.AttendanceAnalyticsResponse, bool, error) {
	q, err := s.Normalize(q)
	if err != nil {
		return nil, false, err
	}
	key := cacheKey(fmt.Sprintf("analytics:attendance:%s:%s", claims.Role, claims.UserID), q)
	var cached dto.AttendanceAnalyticsResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	sc, err := s.resolveScope(ctx, claims, q)
	if err != nil {
		return nil, false, err
	}

	var (
		meetings []models.Meeting
		marks    []models.AttendanceMark
		leaders  map[string]models.LeaderContact
	)
	group := s.pool.NewGroupContext(ctx)
	group.SubmitErr(func() error {
		start := time.Now()
		var err error
		meetings, err = s.meetings.ListByGroupsAndRange(ctx, models.MeetingFilter{GroupIDs: sc.groupIDs, DateFrom: q.DateFrom, DateTo: q.DateTo})
		s.metrics.ObserveDBQuery("analytics_meetings", time.Since(start))
		if err != nil {
			return fmt.Errorf("load meetings: %w", err)
		}
		ids := make([]int64, 0, len(meetings))
		for _, m := range meetings {
			ids = append(ids, m.ID)
		}
		start = time.Now()
		marks, err = s.marks.ListByMeetings(ctx, ids)
		s.metrics.ObserveDBQuery("analytics_attendance", time.Since(start))
		if err != nil {
			return fmt.Errorf("load attendance: %w", err)
		}
		return nil
	})
	group.SubmitErr(func() error {
		var err error
		leaders, err = s.loadDirectory(ctx, sc.groups)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance analytics")
	}

	start := time.Now()
	result, err := analytics.Aggregate(analytics.Input{
		Meetings:       meetings,
		Attendance:     marks,
		Groups:         sc.groups,
		Leaders:        leaders,
		Granularity:    q.Granularity,
		DateFrom:       q.DateFrom,
		DateTo:         q.DateTo,
		ActiveGroupIDs: sc.groupIDs,
	})
	s.metrics.ObserveAggregate(string(q.Granularity), time.Since(start))
	if err != nil {
		return nil, false, engineError(err)
	}

	response := &dto.AttendanceAnalyticsResponse{
		Query:       q,
		Scope:       dto.AnalyticsScope{TerritoryIDs: sc.territoryIDs, GroupIDs: sc.groupIDs},
		Territories: sc.territories,
		Groups:      sc.groups,
		TimeSeries:  result.TimeSeries,
		ByGroup:     result.ByGroup,
		ByLeader:    result.ByLeader,
	}
	s.store(ctx, key, response)
	return response, false, nil
}

// Bethel computes KPIs over the Bethel attendance reported by the groups in
// the caller's scope.
func (s *AnalyticsService) Bethel(ctx context.Context, claims *models.JWTClaims, q dto.AnalyticsQuery) (*dto.BethelAnalyticsResponse, bool, error) {
	q, err := s.Normalize(q)
	if err != nil {
		return nil, false, err
	}
	key := cacheKey(fmt.Sprintf("analytics:bethel:%s:%s", claims.Role, claims.UserID), q)
	var cached dto.BethelAnalyticsResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	sc, err := s.resolveScope(ctx, claims, q)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	rows, err := s.bethels.ListAttendance(ctx, models.BethelAttendanceFilter{
		BethelID: q.BethelID,
		GroupIDs: sc.groupIDs,
		DateFrom: q.DateFrom,
		DateTo:   q.DateTo,
	})
	s.metrics.ObserveDBQuery("analytics_bethel", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bethel analytics")
	}

	series, err := analytics.BethelSeries(rows, q.Granularity, q.DateFrom, q.DateTo)
	if err != nil {
		return nil, false, engineError(err)
	}
	names := make(map[int64]string, len(sc.groups))
	for _, g := range sc.groups {
		names[g.ID] = g.Name
	}

	response := &dto.BethelAnalyticsResponse{
		Query:   q,
		Scope:   dto.AnalyticsScope{TerritoryIDs: sc.territoryIDs, GroupIDs: sc.groupIDs},
		KPI:     analytics.BethelKPIs(rows),
		ByDate:  analytics.BethelByDate(rows),
		ByGroup: analytics.BethelByGroup(rows, names, q.Top),
		Series:  series,
	}
	s.store(ctx, key, response)
	return response, false, nil
}

// SystemMetrics returns the instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}

// Close stops the fan-out pool.
func (s *AnalyticsService) Close() {
	s.pool.StopAndWait()
}

// resolveScope loads the territories and groups the caller may see and
// intersects them with the requested selection.
func (s *AnalyticsService) resolveScope(ctx context.Context, claims *models.JWTClaims, q dto.AnalyticsQuery) (*scope, error) {
	var (
		territories []models.Territory
		groups      []models.Group
	)
	group := s.pool.NewGroupContext(ctx)
	group.SubmitErr(func() error {
		start := time.Now()
		var err error
		switch claims.Role {
		case models.RolePastor:
			territories, err = s.territories.ListByPastor(ctx, claims.UserID)
		case models.RoleLeader:
			// a leader keeps seeing their own territory after it is deactivated
			territories, err = s.territories.List(ctx, false)
		default:
			territories, err = s.territories.List(ctx, true)
		}
		s.metrics.ObserveDBQuery("analytics_territories", time.Since(start))
		if err != nil {
			return fmt.Errorf("load territories: %w", err)
		}
		return nil
	})
	group.SubmitErr(func() error {
		start := time.Now()
		defer func() { s.metrics.ObserveDBQuery("analytics_groups", time.Since(start)) }()
		if claims.Role == models.RoleLeader {
			own, err := s.groups.FindByLeader(ctx, claims.UserID)
			if err != nil {
				return err
			}
			groups = []models.Group{*own}
			return nil
		}
		var err error
		groups, err = s.groups.List(ctx, models.GroupFilter{})
		if err != nil {
			return fmt.Errorf("load groups: %w", err)
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNoGroupAssigned, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve analytics scope")
	}

	if claims.Role == models.RoleLeader && len(groups) == 1 {
		territories = onlyTerritory(territories, groups[0].TerritoryID)
	}

	selection := analytics.Selection{Territories: q.TerritoryIDs, Groups: q.GroupIDs}
	territoryIDs, groupIDs := selection.Resolve(territories, groups)

	visible := make(map[int64]struct{}, len(territoryIDs))
	for _, id := range territoryIDs {
		visible[id] = struct{}{}
	}
	inScope := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		if _, ok := visible[g.TerritoryID]; ok {
			inScope = append(inScope, g)
		}
	}

	s.logger.Debug("analytics scope resolved",
		zap.String("role", string(claims.Role)),
		zap.Int("territories", len(territoryIDs)),
		zap.Int("groups", len(groupIDs)),
	)
	return &scope{territories: territories, groups: inScope, territoryIDs: territoryIDs, groupIDs: groupIDs}, nil
}

func (s *AnalyticsService) loadDirectory(ctx context.Context, groups []models.Group) (map[string]models.LeaderContact, error) {
	seen := make(map[string]struct{}, len(groups))
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		if g.LeaderUserID == nil || *g.LeaderUserID == "" {
			continue
		}
		if _, ok := seen[*g.LeaderUserID]; ok {
			continue
		}
		seen[*g.LeaderUserID] = struct{}{}
		ids = append(ids, *g.LeaderUserID)
	}
	start := time.Now()
	contacts, err := s.directory.Directory(ctx, ids)
	s.metrics.ObserveDBQuery("analytics_directory", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("load leader directory: %w", err)
	}
	out := make(map[string]models.LeaderContact, len(contacts))
	for _, c := range contacts {
		out[c.UserID] = c
	}
	return out, nil
}

func (s *AnalyticsService) store(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("analytics cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func onlyTerritory(territories []models.Territory, id int64) []models.Territory {
	for _, t := range territories {
		if t.ID == id {
			return []models.Territory{t}
		}
	}
	return []models.Territory{}
}

func engineError(err error) error {
	if errors.Is(err, analytics.ErrInvalidDate) || errors.Is(err, analytics.ErrInvalidGranularity) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid analytics query")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate analytics")
}
