package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-clearance-api/internal/dto"
	"github.com/noah-isme/student-clearance-api/internal/models"
	"github.com/noah-isme/student-clearance-api/internal/repository"
	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
	"github.com/noah-isme/student-clearance-api/pkg/password"
)

type registrationRepository interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateWithProfile(ctx context.Context, account *models.Account, profile *models.Profile) error
}

// ClientMeta carries request provenance for audit entries.
type ClientMeta struct {
	IP        string
	UserAgent string
}

const (
	msgUsernameTaken = "A user with that username already exists."
	msgEmailTaken    = "A user with that email already exists."
)

// RegistrationService creates accounts together with their profiles.
type RegistrationService struct {
	repo      registrationRepository
	audit     auditRecorder
	policy    *password.Policy
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	hashCost  int
}

// NewRegistrationService wires the registration workflow.
func NewRegistrationService(repo registrationRepository, audit auditRecorder, policy *password.Policy, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *RegistrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if policy == nil {
		policy = password.NewPolicy(0)
	}
	return &RegistrationService{
		repo:      repo,
		audit:     audit,
		policy:    policy,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		hashCost:  bcrypt.DefaultCost,
	}
}

// Register validates the payload and persists Account and Profile atomically.
func (s *RegistrationService) Register(ctx context.Context, req dto.RegisterRequest, meta ClientMeta) (*dto.RegisterResponse, error) {
	req = normalizeRegistration(req)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid registration payload")
	}

	taken, err := s.repo.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to check username")
	}
	if taken {
		return nil, conflictOn("username", msgUsernameTaken)
	}
	taken, err = s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Persistence(err, "failed to check email")
	}
	if taken {
		return nil, conflictOn("email", msgEmailTaken)
	}

	violations := s.policy.Validate(req.Password, password.Subject{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if len(violations) > 0 {
		return nil, newValidationError("password does not meet the policy", fieldErrors{"password": violations})
	}

	profile := &models.Profile{
		FirstName:      req.FirstName,
		MiddleName:     req.MiddleName,
		LastName:       req.LastName,
		ExtensionName:  req.ExtensionName,
		CollegeProgram: optionalString(req.CollegeProgram),
		ContactNumber:  optionalString(req.ContactNumber),
	}
	if req.BirthDate != "" {
		// Already checked by the datetime rule.
		bd, _ := time.Parse(models.DateLayout, req.BirthDate)
		profile.BirthDate = &bd
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	account := &models.Account{Username: req.Username, Email: req.Email, PasswordHash: string(hash)}

	if err := s.repo.CreateWithProfile(ctx, account, profile); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, conflictOn("username", msgUsernameTaken)
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, conflictOn("email", msgEmailTaken)
		default:
			s.logger.Error("registration persistence failed", zap.String("username", req.Username), zap.Error(err))
			return nil, appErrors.Persistence(err, "failed to create account")
		}
	}

	s.metrics.RecordRegistration()
	s.logger.Info("account registered", zap.Int64("user_id", account.ID), zap.String("username", account.Username))
	if s.audit != nil {
		resourceID := strconv.FormatInt(account.ID, 10)
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &account.ID,
			Action:     models.AuditActionRegister,
			Resource:   models.AuditResourceAuth,
			ResourceID: &resourceID,
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record registration audit log", zap.Error(err))
		}
	}

	return &dto.RegisterResponse{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
		Profile:  newProfileView(profile),
	}, nil
}

func normalizeRegistration(req dto.RegisterRequest) dto.RegisterRequest {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.MiddleName = strings.TrimSpace(req.MiddleName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.ExtensionName = strings.TrimSpace(req.ExtensionName)
	req.BirthDate = strings.TrimSpace(req.BirthDate)
	req.CollegeProgram = strings.TrimSpace(req.CollegeProgram)
	req.ContactNumber = strings.TrimSpace(req.ContactNumber)
	return req
}

func newProfileView(p *models.Profile) dto.ProfileView {
	view := dto.ProfileView{
		FirstName:      p.FirstName,
		MiddleName:     p.MiddleName,
		LastName:       p.LastName,
		ExtensionName:  p.ExtensionName,
		FullName:       p.FullName(),
		CollegeProgram: p.CollegeProgram,
		ContactNumber:  p.ContactNumber,
	}
	if bd := p.BirthDateString(); bd != "" {
		view.BirthDate = &bd
	}
	return view
}

func conflictOn(field, message string) *appErrors.Error {
	return appErrors.WithDetails(appErrors.ErrConflict, message, map[string]interface{}{field: []string{message}})
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
