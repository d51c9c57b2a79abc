package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/student-clearance-api/internal/models"
	"github.com/noah-isme/student-clearance-api/pkg/database"
)

var (
	// ErrDuplicateUsername is returned when the users.username unique constraint fires.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEmail is returned when the users.email unique constraint fires.
	ErrDuplicateEmail = errors.New("email already exists")
)

const accountSelect = `SELECT u.id, u.username, u.email, u.password_hash, u.is_staff, u.last_login, u.date_joined,
p.id AS profile_id, p.first_name, p.middle_name, p.last_name, p.extension_name, p.birth_date, p.college_program, p.contact_number, p.created_at AS profile_created_at
FROM users u LEFT JOIN profiles p ON p.user_id = u.id`

// profileColumns scans the nullable side of a LEFT JOIN on profiles.
type profileColumns struct {
	ProfileID        sql.NullInt64  `db:"profile_id"`
	FirstName        sql.NullString `db:"first_name"`
	MiddleName       sql.NullString `db:"middle_name"`
	LastName         sql.NullString `db:"last_name"`
	ExtensionName    sql.NullString `db:"extension_name"`
	BirthDate        sql.NullTime   `db:"birth_date"`
	CollegeProgram   sql.NullString `db:"college_program"`
	ContactNumber    sql.NullString `db:"contact_number"`
	ProfileCreatedAt sql.NullTime   `db:"profile_created_at"`
}

func (p profileColumns) toProfile(userID int64) *models.Profile {
	if !p.ProfileID.Valid {
		return nil
	}
	profile := &models.Profile{
		ID:            p.ProfileID.Int64,
		UserID:        userID,
		FirstName:     p.FirstName.String,
		MiddleName:    p.MiddleName.String,
		LastName:      p.LastName.String,
		ExtensionName: p.ExtensionName.String,
		CreatedAt:     p.ProfileCreatedAt.Time,
	}
	if p.BirthDate.Valid {
		bd := p.BirthDate.Time
		profile.BirthDate = &bd
	}
	if p.CollegeProgram.Valid {
		v := p.CollegeProgram.String
		profile.CollegeProgram = &v
	}
	if p.ContactNumber.Valid {
		v := p.ContactNumber.String
		profile.ContactNumber = &v
	}
	return profile
}

type accountRow struct {
	models.Account
	profileColumns
}

func (r accountRow) toModel() *models.AccountWithProfile {
	return &models.AccountWithProfile{Account: r.Account, Profile: r.profileColumns.toProfile(r.ID)}
}

// AccountRepository provides database access for accounts, profiles and refresh tokens.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindByUsername returns an account by its exact username.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*models.AccountWithProfile, error) {
	return r.findOne(ctx, "find account by username", accountSelect+` WHERE u.username = $1 LIMIT 1`, username)
}

// FindByID returns an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*models.AccountWithProfile, error) {
	return r.findOne(ctx, "find account by id", accountSelect+` WHERE u.id = $1 LIMIT 1`, id)
}

// FindByUsernameAndEmail matches both fields exactly.
func (r *AccountRepository) FindByUsernameAndEmail(ctx context.Context, username, email string) (*models.AccountWithProfile, error) {
	return r.findOne(ctx, "find account by username and email", accountSelect+` WHERE u.username = $1 AND u.email = $2 LIMIT 1`, username, email)
}

func (r *AccountRepository) findOne(ctx context.Context, op, query string, args ...interface{}) (*models.AccountWithProfile, error) {
	var row accountRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return row.toModel(), nil
}

// ExistsByUsername reports whether the username is taken (case-sensitive).
func (r *AccountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

// ExistsByEmail reports whether the email is taken.
func (r *AccountRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

// CreateWithProfile inserts the account and its profile in one transaction.
func (r *AccountRepository) CreateWithProfile(ctx context.Context, account *models.Account, profile *models.Profile) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if account.DateJoined.IsZero() {
		account.DateJoined = now
	}
	const insertAccount = `INSERT INTO users (username, email, password_hash, is_staff, date_joined) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	if err = tx.QueryRowxContext(ctx, insertAccount, account.Username, account.Email, account.PasswordHash, account.IsStaff, account.DateJoined).Scan(&account.ID); err != nil {
		if constraint, ok := database.UniqueViolation(err); ok {
			err = duplicateFromConstraint(constraint, err)
			return err
		}
		return fmt.Errorf("insert account: %w", err)
	}

	profile.UserID = account.ID
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	const insertProfile = `INSERT INTO profiles (user_id, first_name, middle_name, last_name, extension_name, birth_date, college_program, contact_number, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	if err = tx.QueryRowxContext(ctx, insertProfile,
		profile.UserID,
		profile.FirstName,
		profile.MiddleName,
		profile.LastName,
		profile.ExtensionName,
		profile.BirthDate,
		profile.CollegeProgram,
		profile.ContactNumber,
		profile.CreatedAt,
	).Scan(&profile.ID); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

func duplicateFromConstraint(constraint string, cause error) error {
	switch constraint {
	case "users_username_key":
		return ErrDuplicateUsername
	case "users_email_key":
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("insert account: %w", cause)
	}
}

// UpdatePassword updates the stored password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return expectAffected(res, "update password")
}

// UpdateLastLogin stamps the last successful login.
func (r *AccountRepository) UpdateLastLogin(ctx context.Context, id int64, ts time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdateProgram overwrites the profile's college program.
func (r *AccountRepository) UpdateProgram(ctx context.Context, userID int64, program string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE profiles SET college_program = $2 WHERE user_id = $1`, userID, program); err != nil {
		return fmt.Errorf("update profile program: %w", err)
	}
	return nil
}

// CreateRefreshToken persists a refresh token entry.
func (r *AccountRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *AccountRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a live token as revoked. It returns sql.ErrNoRows
// when the token was already revoked, so only one rotation can win.
func (r *AccountRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1 AND revoked = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, revokedAt)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return expectAffected(res, "revoke refresh token")
}

// RevokeUserRefreshTokens revokes all live refresh tokens for an account.
func (r *AccountRepository) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
