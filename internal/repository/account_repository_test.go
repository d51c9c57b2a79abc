package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-clearance-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var accountColumns = []string{
	"id", "username", "email", "password_hash", "is_staff", "last_login", "date_joined",
	"profile_id", "first_name", "middle_name", "last_name", "extension_name", "birth_date", "college_program", "contact_number", "profile_created_at",
}

func TestFindByUsernameWithProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	now := time.Now()
	birth := time.Date(2001, 5, 14, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(accountColumns).
		AddRow(1, "2021001", "ana@ustp.edu.ph", "hash", false, nil, now, 7, "Ana", nil, "Cruz", "", birth, "BSIT", nil, now)
	mock.ExpectQuery(`FROM users u LEFT JOIN profiles p ON p.user_id = u.id WHERE u.username = \$1`).
		WithArgs("2021001").
		WillReturnRows(rows)

	account, err := repo.FindByUsername(context.Background(), "2021001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), account.ID)
	require.NotNil(t, account.Profile)
	assert.Equal(t, "Ana Cruz", account.Profile.FullName())
	assert.Equal(t, "2001-05-14", account.Profile.BirthDateString())
	assert.Equal(t, "BSIT", account.Profile.Program())
	assert.Nil(t, account.Profile.ContactNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByUsernameWithoutProfile(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	rows := sqlmock.NewRows(accountColumns).
		AddRow(2, "admin", "admin@ustp.edu.ph", "hash", true, nil, time.Now(), nil, nil, nil, nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery(`WHERE u.username = \$1`).WithArgs("admin").WillReturnRows(rows)

	account, err := repo.FindByUsername(context.Background(), "admin")
	require.NoError(t, err)
	assert.Nil(t, account.Profile)
	assert.Equal(t, "admin", account.DisplayName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByUsernameAndEmailNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`WHERE u.username = \$1 AND u.email = \$2`).
		WithArgs("ghost", "ghost@x.com").
		WillReturnRows(sqlmock.NewRows(accountColumns))

	_, err := repo.FindByUsernameAndEmail(context.Background(), "ghost", "ghost@x.com")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistsByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users WHERE email = \$1\)`).
		WithArgs("ana@ustp.edu.ph").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "ana@ustp.edu.ph")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithProfileCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery("INSERT INTO profiles").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectCommit()

	account := &models.Account{Username: "2021001", Email: "ana@ustp.edu.ph", PasswordHash: "hash"}
	profile := &models.Profile{FirstName: "Ana", LastName: "Cruz"}
	require.NoError(t, repo.CreateWithProfile(context.Background(), account, profile))
	assert.Equal(t, int64(11), account.ID)
	assert.Equal(t, int64(11), profile.UserID)
	assert.Equal(t, int64(21), profile.ID)
	assert.False(t, account.DateJoined.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithProfileRollsBackOnProfileFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO users").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery("INSERT INTO profiles").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.CreateWithProfile(context.Background(), &models.Account{Username: "u"}, &models.Profile{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert profile")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithProfileMapsUniqueViolation(t *testing.T) {
	cases := []struct {
		constraint string
		expected   error
	}{
		{"users_username_key", ErrDuplicateUsername},
		{"users_email_key", ErrDuplicateEmail},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			db, mock, cleanup := newMock(t)
			defer cleanup()
			repo := NewAccountRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery("INSERT INTO users").WillReturnError(&pq.Error{Code: "23505", Constraint: tc.constraint})
			mock.ExpectRollback()

			err := repo.CreateWithProfile(context.Background(), &models.Account{Username: "u"}, &models.Profile{})
			assert.ErrorIs(t, err, tc.expected)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdatePasswordMissingAccount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec(`UPDATE users SET password_hash = \$2 WHERE id = \$1`).
		WithArgs(int64(9), "newhash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), 9, "newhash")
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: 1, Token: "token", ExpiresAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeRefreshTokenOnlyOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	query := `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = \$2 WHERE id = \$1 AND revoked = FALSE`
	mock.ExpectExec(query).WithArgs("rt1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("rt1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.RevokeRefreshToken(context.Background(), "rt1", time.Now()))
	assert.Equal(t, sql.ErrNoRows, repo.RevokeRefreshToken(context.Background(), "rt1", time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeUserRefreshTokens(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE, revoked_at = \$2 WHERE user_id = \$1 AND revoked = FALSE`).
		WithArgs(int64(3), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RevokeUserRefreshTokens(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}
