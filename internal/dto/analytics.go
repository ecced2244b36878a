package dto

import (
	"github.com/noah-isme/smallgroups-admin-api/internal/analytics"
	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

// AnalyticsQuery is the filter shared by the analytics endpoints and exports.
type AnalyticsQuery struct {
	Granularity  analytics.Granularity `json:"granularity"`
	DateFrom     string                `json:"date_from"`
	DateTo       string                `json:"date_to"`
	TerritoryIDs []int64               `json:"territory_ids,omitempty"`
	GroupIDs     []int64               `json:"group_ids,omitempty"`
	BethelID     int64                 `json:"bethel_id,omitempty"`
	Top          int                   `json:"top,omitempty"`
}

// AnalyticsScope describes what the caller was allowed to see.
type AnalyticsScope struct {
	TerritoryIDs []int64 `json:"territory_ids"`
	GroupIDs     []int64 `json:"group_ids"`
}

// AttendanceAnalyticsResponse is the payload of GET /analytics/attendance.
type AttendanceAnalyticsResponse struct {
	Query       AnalyticsQuery            `json:"query"`
	Scope       AnalyticsScope            `json:"scope"`
	Territories []models.Territory        `json:"territories"`
	Groups      []models.Group            `json:"groups"`
	TimeSeries  []analytics.SeriesPoint   `json:"timeSeries"`
	ByGroup     []analytics.GroupSummary  `json:"byGroup"`
	ByLeader    []analytics.LeaderSummary `json:"byLeader"`
}

// BethelAnalyticsResponse is the payload of GET /analytics/bethel.
type BethelAnalyticsResponse struct {
	Query   AnalyticsQuery                `json:"query"`
	Scope   AnalyticsScope                `json:"scope"`
	KPI     analytics.BethelKPI           `json:"kpi"`
	ByDate  []analytics.BethelDatePoint   `json:"byDate"`
	ByGroup []analytics.BethelGroupPoint  `json:"byGroup"`
	Series  []analytics.BethelSeriesPoint `json:"series"`
}
