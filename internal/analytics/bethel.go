package analytics

import (
	"sort"
	"strconv"

	"github.com/noah-isme/smallgroups-admin-api/internal/models"
)

// BethelKPI summarises the attendance reported for a Bethel.
type BethelKPI struct {
	TotalReal      int     `json:"total_real"`
	TotalProspects int     `json:"total_prospects"`
	AvgPerDate     float64 `json:"avg_per_date"`
	Peak           int     `json:"peak"`
	TrendPct       float64 `json:"trend_pct"`
	NoShowRate     float64 `json:"no_show_rate"`
	Conversion     float64 `json:"conversion"`
}

// BethelDatePoint sums the rows of one date.
type BethelDatePoint struct {
	Date      string `json:"date"`
	Real      int    `json:"real"`
	Prospects int    `json:"prospects"`
}

// BethelGroupPoint sums the rows of one group.
type BethelGroupPoint struct {
	GroupID    int64   `json:"group_id"`
	Label      string  `json:"label"`
	Real       int     `json:"real"`
	Prospects  int     `json:"prospects"`
	Conversion float64 `json:"conversion"`
}

// BethelSeriesPoint sums the rows of one bucket.
type BethelSeriesPoint struct {
	Bucket    string `json:"bucket"`
	Label     string `json:"label"`
	Real      int    `json:"real"`
	Prospects int    `json:"prospects"`
}

type bethelSum struct {
	real      int
	prospects int
}

func addBethelRow(s *bethelSum, r models.BethelAttendanceRow) {
	s.real += r.RealAttendance
	s.prospects += r.Prospects
}

// BethelKPIs computes totals, averages and rates. Every ratio is 0 when its
// denominator is 0.
func BethelKPIs(rows []models.BethelAttendanceRow) BethelKPI {
	ordered := sortedByDate(rows)

	var kpi BethelKPI
	dates := make(map[string]struct{}, len(ordered))
	for _, r := range ordered {
		kpi.TotalReal += r.RealAttendance
		kpi.TotalProspects += r.Prospects
		if r.RealAttendance > kpi.Peak {
			kpi.Peak = r.RealAttendance
		}
		dates[r.Date] = struct{}{}
	}

	if len(dates) > 0 {
		kpi.AvgPerDate = float64(kpi.TotalReal) / float64(len(dates))
	}
	if len(ordered) >= 2 && ordered[0].RealAttendance > 0 {
		first := float64(ordered[0].RealAttendance)
		last := float64(ordered[len(ordered)-1].RealAttendance)
		kpi.TrendPct = (last - first) / first * 100
	}
	if kpi.TotalProspects > 0 {
		missing := kpi.TotalProspects - kpi.TotalReal
		if missing < 0 {
			missing = 0
		}
		kpi.NoShowRate = float64(missing) / float64(kpi.TotalProspects)
		kpi.Conversion = conversion(kpi.TotalReal, kpi.TotalProspects)
	}
	return kpi
}

// BethelByDate sums rows per date in ascending date order.
func BethelByDate(rows []models.BethelAttendanceRow) []BethelDatePoint {
	groups := NewGroups[string, bethelSum]()
	Fold(rows, GroupBy(groups, func(r models.BethelAttendanceRow) (string, bool) {
		return r.Date, true
	}, addBethelRow))

	points := make([]BethelDatePoint, 0, groups.Len())
	for _, date := range groups.Keys() {
		sum := groups.Slot(date)
		points = append(points, BethelDatePoint{Date: date, Real: sum.real, Prospects: sum.prospects})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// BethelByGroup sums rows per group, orders by real attendance descending and
// keeps the first topN entries. topN <= 0 keeps every group.
func BethelByGroup(rows []models.BethelAttendanceRow, names map[int64]string, topN int) []BethelGroupPoint {
	groups := NewGroups[int64, bethelSum]()
	Fold(rows, GroupBy(groups, func(r models.BethelAttendanceRow) (int64, bool) {
		return r.GroupID, true
	}, addBethelRow))

	points := make([]BethelGroupPoint, 0, groups.Len())
	for _, id := range groups.Keys() {
		sum := groups.Slot(id)
		label, ok := names[id]
		if !ok || label == "" {
			label = strconv.FormatInt(id, 10)
		}
		points = append(points, BethelGroupPoint{
			GroupID:    id,
			Label:      label,
			Real:       sum.real,
			Prospects:  sum.prospects,
			Conversion: conversion(sum.real, sum.prospects),
		})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Real > points[j].Real })
	if topN > 0 && len(points) > topN {
		points = points[:topN]
	}
	return points
}

// BethelSeries buckets rows over the given range. Rows outside the range or
// with malformed dates are ignored.
func BethelSeries(rows []models.BethelAttendanceRow, g Granularity, from, to string) ([]BethelSeriesPoint, error) {
	buckets, err := GenerateBucketRange(g, from, to)
	if err != nil {
		return nil, err
	}
	start, _ := ParseDate(from)
	end, _ := ParseDate(to)

	groups := NewGroups[string, bethelSum]()
	for _, b := range buckets {
		groups.Slot(b.Key)
	}
	Fold(rows, GroupBy(groups, func(r models.BethelAttendanceRow) (string, bool) {
		day, err := ParseDate(r.Date)
		if err != nil || day.Before(start) || day.After(end) {
			return "", false
		}
		key, _ := BucketKeyAndLabel(day, g)
		return key, groups.Has(key)
	}, addBethelRow))

	points := make([]BethelSeriesPoint, 0, len(buckets))
	for _, b := range buckets {
		sum := groups.Slot(b.Key)
		points = append(points, BethelSeriesPoint{Bucket: b.Key, Label: b.Label, Real: sum.real, Prospects: sum.prospects})
	}
	return points, nil
}

func conversion(present, prospects int) float64 {
	if prospects == 0 {
		return 0
	}
	return float64(present) / float64(prospects) * 100
}

func sortedByDate(rows []models.BethelAttendanceRow) []models.BethelAttendanceRow {
	ordered := append([]models.BethelAttendanceRow(nil), rows...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date < ordered[j].Date })
	return ordered
}
