package dto

import (
	"github.com/noah-isme/smallgroups-admin-api/internal/analytics"
	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

// AdminDashboardResponse is the admin overview.
type AdminDashboardResponse struct {
	Counts       DashboardCounts                `json:"counts"`
	Distribution []models.TerritoryDistribution `json:"distribution"`
	Bethels      BethelOverview                 `json:"bethels"`
	Growth       []analytics.SeriesPoint        `json:"growth"`
}

// DashboardCounts are the headline numbers.
type DashboardCounts struct {
	Leaders     int `json:"leaders"`
	Pastors     int `json:"pastors"`
	Admins      int `json:"admins"`
	Territories int `json:"territories"`
	Groups      int `json:"groups"`
}

// BethelOverview summarises retreat events.
type BethelOverview struct {
	Total       int                     `json:"total"`
	Active      int                     `json:"active"`
	Upcoming    int                     `json:"upcoming"`
	Staff       int                     `json:"staff"`
	ByYear      []BethelYearCount       `json:"byYear"`
	StaffByRole []models.StaffRoleCount `json:"staffByRole"`
}

// BethelYearCount counts Bethels per year; Year is "—" when unknown.
type BethelYearCount struct {
	Year  string `json:"year"`
	Total int    `json:"total"`
}
