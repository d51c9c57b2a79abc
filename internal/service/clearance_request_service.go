package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/student-clearance-api/internal/dto"
	"github.com/noah-isme/student-clearance-api/internal/models"
	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
	"github.com/noah-isme/student-clearance-api/pkg/jobs"
)

type clearanceRequestRepository interface {
	List(ctx context.Context, filter models.ClearanceRequestFilter) ([]models.ClearanceRequestRecord, error)
	GetByID(ctx context.Context, id int64) (*models.ClearanceRequestRecord, error)
	Create(ctx context.Context, req *models.ClearanceRequest) error
	Update(ctx context.Context, req *models.ClearanceRequest) error
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context) ([]models.StatusCount, error)
}

type requestOwnerRepository interface {
	FindByID(ctx context.Context, id int64) (*models.AccountWithProfile, error)
	UpdateProgram(ctx context.Context, userID int64, program string) error
}

type artifactStore interface {
	SaveStream(dir, originalName string, r io.Reader) (string, error)
	Delete(rel string) error
}

const (
	eclearanceProofDir = "eclearance_proofs"
	paymentProofDir    = "payment_proofs"
	statsCacheKey      = "requests:stats"
	sniffLen           = 512
)

// Upload is one uploaded file as read from a multipart field.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// RequestUploads groups optional artifacts submitted with an update.
type RequestUploads struct {
	EClearanceProof *Upload
	PaymentProof    *Upload
}

// Actor describes the caller of a request operation. Claims is nil for anonymous callers.
type Actor struct {
	Claims  *models.JWTClaims
	BaseURL string
	ClientMeta
}

func (a Actor) userID() *int64 {
	if a.Claims == nil {
		return nil
	}
	id := a.Claims.UserID
	return &id
}

// ClearanceRequestConfig tunes uploads, URLs and caching.
type ClearanceRequestConfig struct {
	MediaURL       string
	MaxUploadBytes int64
	AllowedMIMEs   []string
	StatsCacheTTL  time.Duration
}

// ClearanceRequestService implements the request registry.
type ClearanceRequestService struct {
	repo      clearanceRequestRepository
	owners    requestOwnerRepository
	store     artifactStore
	audit     auditRecorder
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ClearanceRequestConfig
	cleanup   artifactQueue
}

// ClearanceRequestOption configures the service.
type ClearanceRequestOption func(*ClearanceRequestService)

// WithArtifactCleanup removes discarded artifacts through a background queue.
// Removal falls back to running inline when the queue rejects a job.
func WithArtifactCleanup(queue artifactQueue) ClearanceRequestOption {
	return func(s *ClearanceRequestService) {
		s.cleanup = queue
	}
}

// NewClearanceRequestService constructs the service.
func NewClearanceRequestService(
	repo clearanceRequestRepository,
	owners requestOwnerRepository,
	store artifactStore,
	audit auditRecorder,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ClearanceRequestConfig,
	opts ...ClearanceRequestOption,
) *ClearanceRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if cfg.MediaURL == "" {
		cfg.MediaURL = "/media/"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	svc := &ClearanceRequestService{
		repo:      repo,
		owners:    owners,
		store:     store,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// List returns the requests visible to the caller, newest first.
func (s *ClearanceRequestService) List(ctx context.Context, actor Actor, status string) ([]dto.ClearanceRequestView, error) {
	if actor.Claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication credentials were not provided")
	}
	filter := models.ClearanceRequestFilter{
		Scope:   models.ResolveAccessScope(actor.Claims),
		OwnerID: actor.Claims.UserID,
		Status:  status,
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to list clearance requests")
	}
	views := make([]dto.ClearanceRequestView, 0, len(records))
	for _, rec := range records {
		views = append(views, s.toView(rec, actor.BaseURL))
	}
	return views, nil
}

// Create stores a new request owned by the caller.
func (s *ClearanceRequestService) Create(ctx context.Context, actor Actor, input dto.ClearanceRequestInput, proof *Upload) (*dto.ClearanceRequestView, error) {
	if actor.Claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication credentials were not provided")
	}

	errs := s.validateInput(input, true)
	proofReader := s.checkUpload(errs, "eclearance_proof", proof)
	if !errs.empty() {
		return nil, newValidationError("invalid clearance request", errs)
	}

	owner, err := s.owners.FindByID(ctx, actor.Claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Persistence(err, "failed to load account")
	}

	req := models.ClearanceRequest{RequestStatus: models.StatusPending}
	applyInput(&req, input)
	req.UserID = owner.ID

	var saved []string
	if proofReader != nil {
		rel, err := s.store.SaveStream(eclearanceProofDir, proof.Filename, proofReader)
		if err != nil {
			return nil, appErrors.Persistence(err, "failed to store eclearance proof")
		}
		req.EClearanceProof = &rel
		saved = append(saved, rel)
	}

	if err := s.repo.Create(ctx, &req); err != nil {
		s.discard(saved)
		return nil, appErrors.Persistence(err, "failed to create clearance request")
	}

	s.syncProgram(ctx, owner, req.Program)
	s.afterMutation(ctx, actor, models.AuditActionRequestCreate, "create", req.ID, nil, &req)
	s.logger.Info("clearance request created", zap.Int64("request_id", req.ID), zap.Int64("user_id", req.UserID))

	view := s.toView(models.ClearanceRequestRecord{
		ClearanceRequest: req,
		Username:         owner.Username,
		Email:            owner.Email,
		Profile:          owner.Profile,
	}, actor.BaseURL)
	return &view, nil
}

// Update applies a full (PUT) or partial (PATCH) update. Fields not supplied keep
// their stored values in both modes; a full update additionally requires every
// required field. Ownership is not checked.
func (s *ClearanceRequestService) Update(ctx context.Context, actor Actor, id int64, input dto.ClearanceRequestInput, partial bool, uploads RequestUploads) (*dto.ClearanceRequestView, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return nil, appErrors.Persistence(err, "failed to load clearance request")
	}

	errs := s.validateInput(input, !partial)
	eclearanceReader := s.checkUpload(errs, "eclearance_proof", uploads.EClearanceProof)
	paymentReader := s.checkUpload(errs, "payment_proof", uploads.PaymentProof)
	if !errs.empty() {
		return nil, newValidationError("invalid clearance request", errs)
	}

	before := existing.ClearanceRequest
	updated := existing.ClearanceRequest
	applyInput(&updated, input)

	var saved, replaced []string
	if eclearanceReader != nil {
		rel, err := s.store.SaveStream(eclearanceProofDir, uploads.EClearanceProof.Filename, eclearanceReader)
		if err != nil {
			return nil, appErrors.Persistence(err, "failed to store eclearance proof")
		}
		saved = append(saved, rel)
		if before.EClearanceProof != nil {
			replaced = append(replaced, *before.EClearanceProof)
		}
		updated.EClearanceProof = &rel
	}
	if paymentReader != nil {
		rel, err := s.store.SaveStream(paymentProofDir, uploads.PaymentProof.Filename, paymentReader)
		if err != nil {
			s.discard(saved)
			return nil, appErrors.Persistence(err, "failed to store payment proof")
		}
		saved = append(saved, rel)
		if before.PaymentProof != nil {
			replaced = append(replaced, *before.PaymentProof)
		}
		updated.PaymentProof = &rel
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		s.discard(saved)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return nil, appErrors.Persistence(err, "failed to update clearance request")
	}
	s.discard(replaced)

	s.afterMutation(ctx, actor, models.AuditActionRequestUpdate, "update", id, &before, &updated)

	existing.ClearanceRequest = updated
	view := s.toView(*existing, actor.BaseURL)
	return &view, nil
}

// Delete removes a request and its stored artifacts. Ownership is not checked.
func (s *ClearanceRequestService) Delete(ctx context.Context, actor Actor, id int64) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return appErrors.Persistence(err, "failed to load clearance request")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "clearance request not found")
		}
		return appErrors.Persistence(err, "failed to delete clearance request")
	}

	var artifacts []string
	for _, p := range []*string{existing.EClearanceProof, existing.PaymentProof} {
		if p != nil {
			artifacts = append(artifacts, *p)
		}
	}
	s.discard(artifacts)

	s.afterMutation(ctx, actor, models.AuditActionRequestDelete, "delete", id, &existing.ClearanceRequest, nil)
	return nil
}

// Stats counts requests per status. Every known workflow status is present.
func (s *ClearanceRequestService) Stats(ctx context.Context) (*dto.RequestStats, error) {
	var cached dto.RequestStats
	if s.cache.Get(ctx, statsCacheKey, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to count clearance requests")
	}
	stats := buildStats(counts)
	s.cache.Set(ctx, statsCacheKey, stats, s.cfg.StatsCacheTTL)
	return stats, nil
}

func buildStats(counts []models.StatusCount) *dto.RequestStats {
	stats := &dto.RequestStats{ByStatus: make(map[string]int, len(models.WorkflowStatuses))}
	for _, status := range models.WorkflowStatuses {
		stats.ByStatus[status] = 0
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] += c.Count
		stats.Total += c.Count
	}
	return stats
}

var requiredRequestFields = []struct {
	name string
	get  func(dto.ClearanceRequestInput) *string
}{
	{"request", func(in dto.ClearanceRequestInput) *string { return in.Request }},
	{"year_level", func(in dto.ClearanceRequestInput) *string { return in.YearLevel }},
	{"affiliation", func(in dto.ClearanceRequestInput) *string { return in.Affiliation }},
	{"request_purpose", func(in dto.ClearanceRequestInput) *string { return in.RequestPurpose }},
}

// validateInput checks tag rules on supplied fields. With requireAll every
// required field must be present; supplied required fields may never be blank.
func (s *ClearanceRequestService) validateInput(input dto.ClearanceRequestInput, requireAll bool) fieldErrors {
	errs := fieldErrors{}
	if err := s.validator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs.add(fe.Field(), describeFieldError(fe))
			}
		}
	}
	for _, field := range requiredRequestFields {
		value := field.get(input)
		switch {
		case value == nil:
			if requireAll {
				errs.add(field.name, "This field is required.")
			}
		case strings.TrimSpace(*value) == "":
			errs.add(field.name, "This field may not be blank.")
		}
	}
	if input.ClaimDate != nil && strings.TrimSpace(*input.ClaimDate) != "" {
		if _, err := parseClaimDate(*input.ClaimDate); err != nil {
			errs.add("claim_date", "Datetime has wrong format. Use YYYY-MM-DD or RFC 3339.")
		}
	}
	return errs
}

// checkUpload validates size and sniffed MIME type, returning a reader that
// replays the sniffed prefix. Problems are recorded in errs under field.
func (s *ClearanceRequestService) checkUpload(errs fieldErrors, field string, up *Upload) io.Reader {
	if up == nil || up.Content == nil {
		return nil
	}
	if up.Size > s.cfg.MaxUploadBytes {
		errs.add(field, fmt.Sprintf("File too large. Maximum size is %d bytes.", s.cfg.MaxUploadBytes))
		return nil
	}
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(up.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		errs.add(field, "The submitted file could not be read.")
		return nil
	}
	if n == 0 {
		errs.add(field, "The submitted file is empty.")
		return nil
	}
	head = head[:n]
	if !s.mimeAllowed(http.DetectContentType(head)) {
		errs.add(field, "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
		return nil
	}
	return io.MultiReader(bytes.NewReader(head), up.Content)
}

func (s *ClearanceRequestService) mimeAllowed(detected string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return strings.HasPrefix(detected, "image/")
	}
	for _, allowed := range s.cfg.AllowedMIMEs {
		if strings.EqualFold(allowed, detected) {
			return true
		}
	}
	return false
}

// applyInput copies every supplied field onto req.
func applyInput(req *models.ClearanceRequest, in dto.ClearanceRequestInput) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setString(&req.YearLevel, in.YearLevel)
	setString(&req.College, in.College)
	setString(&req.Program, in.Program)
	setString(&req.Affiliation, in.Affiliation)
	setString(&req.Request, in.Request)
	setString(&req.LastAttended, in.LastAttended)
	setString(&req.RequestPurpose, in.RequestPurpose)
	if in.RequestStatus != nil && strings.TrimSpace(*in.RequestStatus) != "" {
		req.RequestStatus = strings.TrimSpace(*in.RequestStatus)
	}
	if in.ClearanceStatus != nil {
		req.ClearanceStatus = *in.ClearanceStatus
	}
	if in.IsGraduate != nil {
		req.IsGraduate = *in.IsGraduate
	}
	if in.ClaimDate != nil {
		if ts, err := parseClaimDate(*in.ClaimDate); err == nil {
			req.ClaimDate = ts
		}
	}
}

var claimDateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", models.DateLayout}

// parseClaimDate returns nil for an empty value so clients can clear the date.
func parseClaimDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range claimDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			utc := ts.UTC()
			return &utc, nil
		}
	}
	return nil, fmt.Errorf("unrecognised claim date %q", raw)
}

func (s *ClearanceRequestService) toView(rec models.ClearanceRequestRecord, baseURL string) dto.ClearanceRequestView {
	owner := models.AccountWithProfile{Account: models.Account{ID: rec.UserID, Username: rec.Username}, Profile: rec.Profile}
	view := dto.ClearanceRequestView{
		ID:                 rec.ID,
		User:               rec.UserID,
		Username:           rec.Username,
		FullName:           owner.DisplayName(),
		Email:              rec.Email,
		YearLevel:          rec.YearLevel,
		College:            rec.College,
		Program:            rec.Program,
		Affiliation:        rec.Affiliation,
		Request:            rec.Request,
		ClearanceStatus:    rec.ClearanceStatus,
		IsGraduate:         rec.IsGraduate,
		LastAttended:       rec.LastAttended,
		RequestPurpose:     rec.RequestPurpose,
		RequestStatus:      rec.RequestStatus,
		ClaimDate:          rec.ClaimDate,
		EClearanceProof:    s.mediaURL(baseURL, rec.EClearanceProof),
		EClearanceProofURL: s.mediaURL(baseURL, rec.EClearanceProof),
		PaymentProof:       s.mediaURL(baseURL, rec.PaymentProof),
		PaymentProofURL:    s.mediaURL(baseURL, rec.PaymentProof),
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
	if bd := rec.Profile.BirthDateString(); bd != "" {
		view.BirthDate = &bd
	}
	if rec.Profile != nil {
		view.ContactNumber = rec.Profile.ContactNumber
	}
	return view
}

func (s *ClearanceRequestService) mediaURL(baseURL string, rel *string) *string {
	if rel == nil || *rel == "" {
		return nil
	}
	url := strings.TrimRight(baseURL, "/") + s.cfg.MediaURL + strings.TrimLeft(*rel, "/")
	return &url
}

// syncProgram copies a changed program onto the owner's profile once the request is stored.
func (s *ClearanceRequestService) syncProgram(ctx context.Context, owner *models.AccountWithProfile, program string) {
	program = strings.TrimSpace(program)
	if owner.Profile == nil || program == "" || program == owner.Profile.Program() {
		return
	}
	if err := s.owners.UpdateProgram(ctx, owner.ID, program); err != nil {
		s.logger.Warn("failed to sync profile program", zap.Int64("user_id", owner.ID), zap.Error(err))
		return
	}
	owner.Profile.CollegeProgram = &program
}

func (s *ClearanceRequestService) discard(paths []string) {
	for _, p := range paths {
		if s.cleanup != nil {
			err := s.cleanup.Enqueue(jobs.Job{ID: uuid.NewString(), Type: artifactRemovalJob, Payload: p})
			if err == nil {
				continue
			}
			s.logger.Warn("artifact cleanup queue rejected job, removing inline", zap.String("path", p), zap.Error(err))
		}
		if err := s.store.Delete(p); err != nil {
			s.logger.Warn("failed to delete stored artifact", zap.String("path", p), zap.Error(err))
		}
	}
}

func (s *ClearanceRequestService) afterMutation(ctx context.Context, actor Actor, action, event string, id int64, before, after *models.ClearanceRequest) {
	s.cache.Invalidate(ctx, statsCacheKey)
	s.metrics.RecordRequestEvent(event)
	if s.audit == nil {
		return
	}
	resourceID := strconv.FormatInt(id, 10)
	entry := &models.AuditLog{
		UserID:     actor.userID(),
		Action:     action,
		Resource:   models.AuditResourceClearanceReq,
		ResourceID: &resourceID,
		OldValues:  marshalAuditValue(before),
		NewValues:  marshalAuditValue(after),
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record clearance request audit log", zap.String("action", action), zap.Int64("request_id", id), zap.Error(err))
	}
}

func marshalAuditValue(req *models.ClearanceRequest) []byte {
	if req == nil {
		return nil
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	return payload
}
