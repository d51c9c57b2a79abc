package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/student-clearance-api/internal/dto"
	"github.com/noah-isme/student-clearance-api/internal/models"
	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
)

func newExportServiceForTest(t *testing.T) (*ExportService, *fakeRequestRepo) {
	t.Helper()
	f := newRequestFixture(t)
	f.requests.seed(models.ClearanceRequest{UserID: 7, Request: "TOR", RequestStatus: models.StatusPending})
	f.requests.seed(models.ClearanceRequest{UserID: 8, Request: "Diploma", RequestStatus: models.StatusReleased})
	svc := NewExportService(f.requests, zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC) }
	return svc, f.requests
}

func TestExportCSV(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	file, err := svc.Export(context.Background(), &models.JWTClaims{UserID: 1, IsStaff: true}, dto.ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "clearance_requests_20240602_100000.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)

	records, err := csv.NewReader(bytes.NewReader(file.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeaders, records[0])
	assert.Equal(t, "2021002", records[1][1])
	assert.Equal(t, "Diploma", records[1][3])
	assert.Equal(t, "Ana Cruz", records[2][1])
}

func TestExportPDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	file, err := svc.Export(context.Background(), &models.JWTClaims{UserID: 1, IsStaff: true}, dto.ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))
}

func TestExportForbiddenForStudents(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.Export(context.Background(), &models.JWTClaims{UserID: 7}, dto.ExportFormatCSV)
	assert.True(t, appErrors.ErrForbidden.Is(err))
}

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, dto.ExportFormatCSV, format)

	format, err = ParseExportFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, dto.ExportFormatPDF, format)

	_, err = ParseExportFormat("xlsx")
	assert.Contains(t, appErrors.FromError(err).Details, "format")
}
