package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-clearance-api/internal/dto"
	"github.com/noah-isme/student-clearance-api/internal/models"
	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
	"github.com/noah-isme/student-clearance-api/pkg/export"
)

type requestLister interface {
	List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequestRecord, error)
}

type datasetRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
}

var exportHeaders = []string{"ID", "Name", "Student ID", "Request", "Status", "Created At"}

// ExportService renders the staff request list as CSV or PDF.
type ExportService struct {
	repo   requestLister
	csv    datasetRenderer
	pdf    datasetRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(repo requestLister, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{repo: repo, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// ParseExportFormat maps a query value onto a supported format.
func ParseExportFormat(raw string) (dto.ExportFormat, error) {
	switch dto.ExportFormat(raw) {
	case "", dto.ExportFormatCSV:
		return dto.ExportFormatCSV, nil
	case dto.ExportFormatPDF:
		return dto.ExportFormatPDF, nil
	default:
		return "", newValidationError("unsupported export format", fieldErrors{"format": {"Must be one of: csv, pdf."}})
	}
}

// Export renders every request, newest first. Only staff may export.
func (s *ExportService) Export(ctx context.Context, claims *models.JWTClaims, format dto.ExportFormat) (*dto.ExportFile, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication credentials were not provided")
	}
	scope := models.ResolveAccessScope(claims)
	if scope != models.ScopeAll {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "staff access required")
	}

	records, err := s.repo.List(ctx, models.ClearanceRequestFilter{Scope: scope})
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to load clearance requests")
	}
	dataset := buildRequestDataset(records)
	generatedAt := s.now().UTC()

	renderer := s.csv
	if format == dto.ExportFormatPDF {
		renderer = s.pdf
	}
	payload, err := renderer.Render(dataset, "Clearance Requests")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("clearance requests exported", zap.String("format", string(format)), zap.Int("rows", len(records)), zap.Int64("user_id", claims.UserID))

	return &dto.ExportFile{
		Filename:    fmt.Sprintf("clearance_requests_%s.%s", generatedAt.Format("20060102_150405"), format),
		ContentType: renderer.ContentType(),
		Content:     payload,
	}, nil
}

func buildRequestDataset(records []models.ClearanceRequestRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		owner := models.AccountWithProfile{Account: models.Account{Username: rec.Username}, Profile: rec.Profile}
		rows = append(rows, map[string]string{
			"ID":         strconv.FormatInt(rec.ID, 10),
			"Name":       owner.DisplayName(),
			"Student ID": rec.Username,
			"Request":    rec.Request,
			"Status":     rec.RequestStatus,
			"Created At": rec.CreatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
