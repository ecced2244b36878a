package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/internal/analytics"
	"github.com/noah-isme/smallgroups-admin-api/internal/dto"
	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	"github.com/noah-isme/smallgroups-admin-api/pkg/export"
	"github.com/noah-isme/smallgroups-admin-api/pkg/storage"
)

type exportAnalytics interface {
	Attendance(ctx context.Context, claims *models.JWTClaims, q dto.AnalyticsQuery) (*dto.AttendanceAnalyticsResponse, bool, error)
	Bethel(ctx context.Context, claims *models.JWTClaims, q dto.AnalyticsQuery) (*dto.BethelAnalyticsResponse, bool, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders analytics results and persists the files.
type ExportService struct {
	analytics exportAnalytics
	storage   fileStorage
	renderers map[models.ExportFormat]export.Renderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// CSV and PDF renderers of pkg/export.
func NewExportService(analytics exportAnalytics, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVRenderer()
	}
	if pdf == nil {
		pdf = export.NewPDFRenderer()
	}
	return &ExportService{
		analytics: analytics,
		storage:   store,
		renderers: map[models.ExportFormat]export.Renderer{
			models.ExportFormatCSV: csv,
			models.ExportFormatPDF: pdf,
		},
		signer: signer,
		logger: logger,
		cfg:    cfg,
	}
}

// Generate runs the analytics query stored on the job with the creator's
// scope, renders it and returns a signed link to the stored file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	report, err := s.buildReport(ctx, job)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(report)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.Filename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("export generated", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("bytes", len(payload)))
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string) (jobID, relPath string, err error) {
	return s.signer.Parse(token)
}

// ContentType reports the MIME type of a format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	if r, ok := s.renderers[format]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

// Filename is the storage name of a job's file, stable across retries.
func (s *ExportService) Filename(job *models.ExportJob) string {
	ext := string(job.Params.Format)
	if r, ok := s.renderers[job.Params.Format]; ok {
		ext = r.Extension()
	}
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, job.CreatedAt.UTC().Format("20060102"), job.ID, ext)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildReport(ctx context.Context, job *models.ExportJob) (export.Report, error) {
	claims := &models.JWTClaims{UserID: job.CreatedBy, Role: job.Params.Role}
	query := dto.AnalyticsQuery{
		Granularity:  analytics.Granularity(job.Params.Granularity),
		DateFrom:     job.Params.DateFrom,
		DateTo:       job.Params.DateTo,
		TerritoryIDs: job.Params.TerritoryIDs,
		GroupIDs:     job.Params.GroupIDs,
		BethelID:     job.Params.BethelID,
	}

	switch job.Type {
	case models.ExportTypeAttendance:
		result, _, err := s.analytics.Attendance(ctx, claims, query)
		if err != nil {
			return export.Report{}, err
		}
		return attendanceReport(result), nil
	case models.ExportTypeBethel:
		result, _, err := s.analytics.Bethel(ctx, claims, query)
		if err != nil {
			return export.Report{}, err
		}
		return bethelReport(result), nil
	default:
		return export.Report{}, fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func attendanceReport(r *dto.AttendanceAnalyticsResponse) export.Report {
	series := export.Table{
		Title:   "Time series",
		Headers: []string{"Bucket", "Label", "Date", "Attendance", "Unique people", "Active groups", "New"},
	}
	for _, p := range r.TimeSeries {
		series.Rows = append(series.Rows, []string{p.Bucket, p.Label, p.Date, itoa(p.Attendance), itoa(p.UniquePeople), itoa(p.GroupsActive), itoa(p.NewAttendance)})
	}
	byGroup := export.Table{Title: "By group", Headers: []string{"Group", "Attendance", "Unique people"}}
	for _, g := range r.ByGroup {
		byGroup.Rows = append(byGroup.Rows, []string{g.Name, itoa(g.Attendance), itoa(g.UniquePeople)})
	}
	byLeader := export.Table{Title: "By leader", Headers: []string{"Leader", "Attendance", "Unique people"}}
	for _, l := range r.ByLeader {
		byLeader.Rows = append(byLeader.Rows, []string{l.Name, itoa(l.Attendance), itoa(l.UniquePeople)})
	}
	return export.Report{
		Title:    "Attendance report",
		Subtitle: reportSubtitle(r.Query),
		Tables:   []export.Table{series, byGroup, byLeader},
	}
}

func bethelReport(r *dto.BethelAnalyticsResponse) export.Report {
	kpi := export.Table{
		Title:   "Indicators",
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Total real", itoa(r.KPI.TotalReal)},
			{"Total prospects", itoa(r.KPI.TotalProspects)},
			{"Average per date", ftoa(r.KPI.AvgPerDate)},
			{"Peak", itoa(r.KPI.Peak)},
			{"Trend (%)", ftoa(r.KPI.TrendPct)},
			{"No-show rate (%)", ftoa(r.KPI.NoShowRate)},
			{"Conversion (%)", ftoa(r.KPI.Conversion)},
		},
	}
	byDate := export.Table{Title: "By date", Headers: []string{"Date", "Real", "Prospects"}}
	for _, d := range r.ByDate {
		byDate.Rows = append(byDate.Rows, []string{d.Date, itoa(d.Real), itoa(d.Prospects)})
	}
	byGroup := export.Table{Title: "By group", Headers: []string{"Group", "Real", "Prospects", "Conversion (%)"}}
	for _, g := range r.ByGroup {
		byGroup.Rows = append(byGroup.Rows, []string{g.Label, itoa(g.Real), itoa(g.Prospects), ftoa(g.Conversion)})
	}
	series := export.Table{Title: "Series", Headers: []string{"Bucket", "Label", "Real", "Prospects"}}
	for _, p := range r.Series {
		series.Rows = append(series.Rows, []string{p.Bucket, p.Label, itoa(p.Real), itoa(p.Prospects)})
	}
	return export.Report{
		Title:    "Bethel report",
		Subtitle: reportSubtitle(r.Query),
		Tables:   []export.Table{kpi, byDate, byGroup, series},
	}
}

func reportSubtitle(q dto.AnalyticsQuery) string {
	return fmt.Sprintf("%s to %s, per %s", q.DateFrom, q.DateTo, q.Granularity)
}

func itoa(v int) string { return strconv.Itoa(v) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
