package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/student-clearance-api/internal/dto"
	"github.com/noah-isme/student-clearance-api/internal/models"
	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
)

type identityRepository interface {
	FindByUsernameAndEmail(ctx context.Context, username, email string) (*models.AccountWithProfile, error)
}

// IdentityVerifier proves account ownership from username, email and birth date.
type IdentityVerifier struct {
	repo      identityRepository
	validator *validator.Validate
}

// NewIdentityVerifier constructs an IdentityVerifier.
func NewIdentityVerifier(repo identityRepository, validate *validator.Validate) *IdentityVerifier {
	if validate == nil {
		validate = NewValidator()
	}
	return &IdentityVerifier{repo: repo, validator: validate}
}

// Verify returns the matched account or a validation, not-found or verification error.
func (v *IdentityVerifier) Verify(ctx context.Context, identity dto.ResetIdentity) (*models.AccountWithProfile, error) {
	if err := v.validator.Struct(identity); err != nil {
		return nil, validationError(err, "username, email and birth_date are required")
	}

	account, err := v.repo.FindByUsernameAndEmail(ctx, identity.Username, identity.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no matching account")
		}
		return nil, appErrors.Persistence(err, "failed to look up account")
	}

	if !identityMatches(account, identity.BirthDate) {
		return nil, appErrors.Clone(appErrors.ErrVerification, "the provided details do not match our records")
	}
	return account, nil
}

// identityMatches compares the stored birth date with the supplied YYYY-MM-DD string.
// Accounts without a profile or birth date never match.
func identityMatches(account *models.AccountWithProfile, birthDate string) bool {
	if account == nil {
		return false
	}
	stored := account.Profile.BirthDateString()
	return stored != "" && stored == birthDate
}
