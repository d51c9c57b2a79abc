package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/student-clearance-api/internal/dto"
	"github.com/noah-isme/student-clearance-api/internal/models"
	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
	"github.com/noah-isme/student-clearance-api/pkg/password"
)

type passwordResetRepository interface {
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	RevokeUserRefreshTokens(ctx context.Context, userID int64) error
}

const (
	resetPhaseVerify  = "verify"
	resetPhaseConfirm = "confirm"
)

// PasswordResetService runs the two stateless reset phases. Both phases
// re-establish identity from scratch; nothing is carried between them.
type PasswordResetService struct {
	verifier  *IdentityVerifier
	repo      passwordResetRepository
	audit     auditRecorder
	policy    *password.Policy
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	hashCost  int
}

// NewPasswordResetService constructs the reset workflow.
func NewPasswordResetService(verifier *IdentityVerifier, repo passwordResetRepository, audit auditRecorder, policy *password.Policy, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *PasswordResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if policy == nil {
		policy = password.NewPolicy(0)
	}
	return &PasswordResetService{
		verifier:  verifier,
		repo:      repo,
		audit:     audit,
		policy:    policy,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		hashCost:  bcrypt.DefaultCost,
	}
}

// VerifyCredentials is phase one: a pure identity check with no side effects.
func (s *PasswordResetService) VerifyCredentials(ctx context.Context, identity dto.ResetIdentity) error {
	_, err := s.verifier.Verify(ctx, identity)
	s.metrics.RecordResetAttempt(resetPhaseVerify, resetOutcome(err))
	return err
}

// Confirm is phase two: re-verify, check the policy, then write the new hash.
func (s *PasswordResetService) Confirm(ctx context.Context, req dto.ConfirmResetRequest, meta ClientMeta) error {
	err := s.confirm(ctx, req, meta)
	s.metrics.RecordResetAttempt(resetPhaseConfirm, resetOutcome(err))
	return err
}

func (s *PasswordResetService) confirm(ctx context.Context, req dto.ConfirmResetRequest, meta ClientMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "username, email, birth_date and new_password are required")
	}

	account, err := s.verifier.Verify(ctx, req.ResetIdentity)
	if err != nil {
		return err
	}

	subject := password.Subject{Username: account.Username, Email: account.Email}
	if account.Profile != nil {
		subject.FirstName = account.Profile.FirstName
		subject.LastName = account.Profile.LastName
	}
	if violations := s.policy.Validate(req.NewPassword, subject); len(violations) > 0 {
		return newValidationError("password does not meet the policy", fieldErrors{"new_password": violations})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.hashCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.repo.UpdatePassword(ctx, account.ID, string(hash)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no matching account")
		}
		return appErrors.Persistence(err, "failed to update password")
	}

	if err := s.repo.RevokeUserRefreshTokens(ctx, account.ID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password reset", zap.Int64("user_id", account.ID), zap.Error(err))
	}
	s.logger.Info("password reset", zap.Int64("user_id", account.ID))

	if s.audit != nil {
		resourceID := strconv.FormatInt(account.ID, 10)
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &account.ID,
			Action:     models.AuditActionPasswordReset,
			Resource:   models.AuditResourceAuth,
			ResourceID: &resourceID,
			NewValues:  []byte(`{"status":"reset"}`),
			IPAddress:  meta.IP,
			UserAgent:  meta.UserAgent,
		}); err != nil {
			s.logger.Warn("failed to record password reset audit log", zap.Error(err))
		}
	}
	return nil
}

func resetOutcome(err error) string {
	if err == nil {
		return "success"
	}
	switch appErrors.FromError(err).Code {
	case appErrors.ErrValidation.Code:
		return "invalid"
	case appErrors.ErrNotFound.Code:
		return "not_found"
	case appErrors.ErrVerification.Code:
		return "mismatch"
	default:
		return "error"
	}
}
