package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/internal/analytics"
	"github.com/noah-isme/smallgroups-admin-api/internal/dto"
	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	appErrors "github.com/noah-isme/smallgroups-admin-api/pkg/errors"
	"github.com/noah-isme/smallgroups-admin-api/pkg/storage"
)

type analyticsStub struct {
	claims *models.JWTClaims
	query  dto.AnalyticsQuery
	err    error
}

func (a *analyticsStub) Attendance(ctx context.Context, claims *models.JWTClaims, q dto.AnalyticsQuery) (*dto.AttendanceAnalyticsResponse, bool, error) {
	a.claims, a.query = claims, q
	if a.err != nil {
		return nil, false, a.err
	}
	return &dto.AttendanceAnalyticsResponse{
		Query: dto.AnalyticsQuery{Granularity: analytics.Month, DateFrom: "2024-01-01", DateTo: "2024-02-29"},
		TimeSeries: []analytics.SeriesPoint{
			{Bucket: "M_2024-01", Label: "Jan 2024", Date: "2024-01-01", Attendance: 2, UniquePeople: 2, GroupsActive: 1},
			{Bucket: "M_2024-02", Label: "Feb 2024", Date: "2024-02-01", Attendance: 1, UniquePeople: 1, GroupsActive: 1, NewAttendance: 1},
		},
		ByGroup:  []analytics.GroupSummary{{GroupID: 10, Name: "GE-N-Ana", Attendance: 3, UniquePeople: 2}},
		ByLeader: []analytics.LeaderSummary{{LeaderUserID: "u-1", Name: "Ana", Attendance: 3, UniquePeople: 2}},
	}, false, nil
}

func (a *analyticsStub) Bethel(ctx context.Context, claims *models.JWTClaims, q dto.AnalyticsQuery) (*dto.BethelAnalyticsResponse, bool, error) {
	a.claims, a.query = claims, q
	if a.err != nil {
		return nil, false, a.err
	}
	return &dto.BethelAnalyticsResponse{
		Query:  dto.AnalyticsQuery{Granularity: analytics.Month, DateFrom: "2024-05-01", DateTo: "2024-05-31"},
		KPI:    analytics.BethelKPI{TotalReal: 12, TotalProspects: 15, AvgPerDate: 12, Peak: 12, Conversion: 80},
		ByDate: []analytics.BethelDatePoint{{Date: "2024-05-04", Real: 12, Prospects: 15}},
	}, false, nil
}

func newExportServiceForTest(t *testing.T, stub *analyticsStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	return NewExportService(stub, store, signer, cfg, zap.NewNop(), nil, nil), store
}

func readExport(t *testing.T, svc *ExportService, relPath string) []byte {
	t.Helper()
	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	return data
}

func TestExportServiceGenerateAttendanceCSV(t *testing.T) {
	stub := &analyticsStub{}
	svc, _ := newExportServiceForTest(t, stub)
	job := &models.ExportJob{
		ID:        "job-1",
		Type:      models.ExportTypeAttendance,
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV, Granularity: "month", GroupIDs: []int64{10}, Role: models.RolePastor},
		CreatedBy: "pastor-1",
		CreatedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "attendance_20240301_job-1.csv", result.RelativePath)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/download/"))

	assert.Equal(t, &models.JWTClaims{UserID: "pastor-1", Role: models.RolePastor}, stub.claims)
	assert.Equal(t, analytics.Month, stub.query.Granularity)
	assert.Equal(t, []int64{10}, stub.query.GroupIDs)

	data := string(readExport(t, svc, result.RelativePath))
	assert.Contains(t, data, "Time series\nBucket,Label,Date,Attendance,Unique people,Active groups,New\n")
	assert.Contains(t, data, "M_2024-02,Feb 2024,2024-02-01,1,1,1,1\n")
	assert.Contains(t, data, "By leader\nLeader,Attendance,Unique people\nAna,3,2\n")

	jobID, relPath, err := svc.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGenerateBethelPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &analyticsStub{})
	job := &models.ExportJob{
		ID:        "job-2",
		Type:      models.ExportTypeBethel,
		Params:    models.ExportJobParams{Format: models.ExportFormatPDF, BethelID: 3, Role: models.RoleAdmin},
		CreatedBy: "admin-1",
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.RelativePath, ".pdf"))
	assert.True(t, bytes.HasPrefix(readExport(t, svc, result.RelativePath), []byte("%PDF")))
	assert.Equal(t, "application/pdf", svc.ContentType(models.ExportFormatPDF))
}

func TestExportServiceGenerateFailures(t *testing.T) {
	svc, _ := newExportServiceForTest(t, &analyticsStub{err: appErrors.ErrNoGroupAssigned})

	_, err := svc.Generate(context.Background(), &models.ExportJob{ID: "x", Type: models.ExportTypeAttendance, Params: models.ExportJobParams{Format: models.ExportFormatCSV}})
	assert.Equal(t, appErrors.ErrNoGroupAssigned.Code, appErrors.FromError(err).Code)

	_, err = svc.Generate(context.Background(), &models.ExportJob{ID: "x", Type: models.ExportTypeAttendance, Params: models.ExportJobParams{Format: "xlsx"}})
	assert.Error(t, err)

	_, err = svc.Generate(context.Background(), nil)
	assert.Error(t, err)
}
