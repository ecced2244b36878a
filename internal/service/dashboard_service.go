package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/internal/analytics"
	"github.com/noah-isme/smallgroups-admin-api/internal/dto"
	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
)

const (
	dashboardCacheKey   = "dashboard:admin"
	dashboardGrowthSpan = 12
	unknownYear         = "—"
)

type roleCounter interface {
	CountByRole(ctx context.Context) ([]models.RoleCount, error)
}

type rowCounter interface {
	Count(ctx context.Context) (int, error)
}

type distributionProvider interface {
	Distribution(ctx context.Context) ([]models.TerritoryDistribution, error)
}

type groupLister interface {
	List(ctx context.Context, filter models.GroupFilter) ([]models.Group, error)
}

type bethelOverviewReader interface {
	List(ctx context.Context, onlyActive bool) ([]models.Bethel, error)
	CountStaffByRole(ctx context.Context) ([]models.StaffRoleCount, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL    time.Duration
	Concurrency int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Roles        roleCounter
	Territories  rowCounter
	Distribution distributionProvider
	Groups       groupLister
	GroupCounter rowCounter
	Bethels      bethelOverviewReader
	Meetings     meetingRangeReader
	Marks        markReader
	Cache        *CacheService
	Metrics      *MetricsService
	Logger       *zap.Logger
	Config       DashboardServiceConfig
}

// DashboardService composes the admin overview.
type DashboardService struct {
	roles        roleCounter
	territories  rowCounter
	distribution distributionProvider
	groups       groupLister
	groupCounter rowCounter
	bethels      bethelOverviewReader
	meetings     meetingRangeReader
	marks        markReader
	cache        *CacheService
	metrics      *MetricsService
	logger       *zap.Logger
	pool         pond.Pool
	now          func() time.Time
	cfg          DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		roles:        params.Roles,
		territories:  params.Territories,
		distribution: params.Distribution,
		groups:       params.Groups,
		groupCounter: params.GroupCounter,
		bethels:      params.Bethels,
		meetings:     params.Meetings,
		marks:        params.Marks,
		cache:        params.Cache,
		metrics:      params.Metrics,
		logger:       logger,
		pool:         pond.NewPool(cfg.Concurrency),
		now:          time.Now,
		cfg:          cfg,
	}
}

// Admin returns the admin overview and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	var cached dto.AdminDashboardResponse
	if hit, err := s.cache.Get(ctx, dashboardCacheKey, &cached); err == nil && hit {
		return &cached, true, nil
	}

	summary, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, summary, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
	return summary, false, nil
}

// Close stops the fan-out pool.
func (s *DashboardService) Close() {
	s.pool.StopAndWait()
}

func (s *DashboardService) compose(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	var (
		roles        []models.RoleCount
		territories  int
		groupTotal   int
		distribution []models.TerritoryDistribution
		bethels      []models.Bethel
		staff        []models.StaffRoleCount
		growth       []analytics.SeriesPoint
	)

	group := s.pool.NewGroupContext(ctx)
	group.SubmitErr(
		s.timed("dashboard_roles", func() (err error) {
			roles, err = s.roles.CountByRole(ctx)
			return err
		}),
		s.timed("dashboard_territories", func() (err error) {
			territories, err = s.territories.Count(ctx)
			return err
		}),
		s.timed("dashboard_groups", func() (err error) {
			groupTotal, err = s.groupCounter.Count(ctx)
			return err
		}),
		s.timed("dashboard_distribution", func() (err error) {
			distribution, err = s.distribution.Distribution(ctx)
			return err
		}),
		s.timed("dashboard_bethels", func() (err error) {
			bethels, err = s.bethels.List(ctx, false)
			return err
		}),
		s.timed("dashboard_staff", func() (err error) {
			staff, err = s.bethels.CountStaffByRole(ctx)
			return err
		}),
		s.timed("dashboard_growth", func() (err error) {
			growth, err = s.growth(ctx)
			return err
		}),
	)
	if err := group.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard")
	}

	counts := dto.DashboardCounts{Territories: territories, Groups: groupTotal}
	for _, rc := range roles {
		switch rc.Role {
		case models.RoleLeader:
			counts.Leaders = rc.Total
		case models.RolePastor:
			counts.Pastors = rc.Total
		case models.RoleAdmin:
			counts.Admins = rc.Total
		}
	}

	overview := summarizeBethels(bethels, analytics.FormatDate(s.now().UTC()))
	overview.StaffByRole = staff
	for _, sc := range staff {
		overview.Staff += sc.Total
	}

	return &dto.AdminDashboardResponse{
		Counts:       counts,
		Distribution: distribution,
		Bethels:      overview,
		Growth:       growth,
	}, nil
}

// growth aggregates every group's attendance per month over the last year.
func (s *DashboardService) growth(ctx context.Context) ([]analytics.SeriesPoint, error) {
	today := s.now().UTC()
	from := time.Date(today.Year(), today.Month()-dashboardGrowthSpan+1, 1, 0, 0, 0, 0, time.UTC)
	dateFrom, dateTo := analytics.FormatDate(from), analytics.FormatDate(today)

	groups, err := s.groups.List(ctx, models.GroupFilter{})
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	meetings, err := s.meetings.ListByGroupsAndRange(ctx, models.MeetingFilter{DateFrom: dateFrom, DateTo: dateTo})
	if err != nil {
		return nil, fmt.Errorf("load meetings: %w", err)
	}
	ids := make([]int64, 0, len(meetings))
	for _, m := range meetings {
		ids = append(ids, m.ID)
	}
	marks, err := s.marks.ListByMeetings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}

	groupIDs := make([]int64, 0, len(groups))
	for _, g := range groups {
		groupIDs = append(groupIDs, g.ID)
	}
	result, err := analytics.Aggregate(analytics.Input{
		Meetings:       meetings,
		Attendance:     marks,
		Groups:         groups,
		Granularity:    analytics.Month,
		DateFrom:       dateFrom,
		DateTo:         dateTo,
		ActiveGroupIDs: groupIDs,
	})
	if err != nil {
		return nil, err
	}
	return result.TimeSeries, nil
}

func (s *DashboardService) timed(label string, fn func() error) func() error {
	return func() error {
		start := time.Now()
		err := fn()
		s.metrics.ObserveDBQuery(label, time.Since(start))
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		return nil
	}
}

// summarizeBethels counts Bethels overall, active and upcoming (starting on or
// after today) and per year, newest year first with unknown years last.
func summarizeBethels(bethels []models.Bethel, today string) dto.BethelOverview {
	overview := dto.BethelOverview{Total: len(bethels)}
	perYear := map[string]int{}
	for _, b := range bethels {
		if b.Active {
			overview.Active++
		}
		if b.StartsOn != nil && *b.StartsOn >= today {
			overview.Upcoming++
		}
		year := unknownYear
		if b.Year != nil {
			year = strconv.Itoa(*b.Year)
		}
		perYear[year]++
	}

	overview.ByYear = make([]dto.BethelYearCount, 0, len(perYear))
	for year, total := range perYear {
		overview.ByYear = append(overview.ByYear, dto.BethelYearCount{Year: year, Total: total})
	}
	sort.Slice(overview.ByYear, func(i, j int) bool {
		a, b := overview.ByYear[i].Year, overview.ByYear[j].Year
		if a == unknownYear || b == unknownYear {
			return b == unknownYear && a != unknownYear
		}
		return a > b
	})
	return overview
}
