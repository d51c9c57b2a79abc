package models

import (
	"strings"
	"time"
)

// Account is the authentication identity stored in the users table.
type Account struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	IsStaff      bool       `db:"is_staff" json:"is_staff"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	DateJoined   time.Time  `db:"date_joined" json:"date_joined"`
}

// Profile holds the personal details attached one-to-one to an Account.
type Profile struct {
	ID             int64      `db:"id" json:"-"`
	UserID         int64      `db:"user_id" json:"-"`
	FirstName      string     `db:"first_name" json:"first_name"`
	MiddleName     string     `db:"middle_name" json:"middle_name"`
	LastName       string     `db:"last_name" json:"last_name"`
	ExtensionName  string     `db:"extension_name" json:"extension_name"`
	BirthDate      *time.Time `db:"birth_date" json:"birth_date"`
	CollegeProgram *string    `db:"college_program" json:"college_program"`
	ContactNumber  *string    `db:"contact_number" json:"contact_number"`
	CreatedAt      time.Time  `db:"created_at" json:"-"`
}

// AccountWithProfile pairs an account with its optional profile.
type AccountWithProfile struct {
	Account
	Profile *Profile
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// FullName joins the name parts, skipping empty ones.
func (p *Profile) FullName() string {
	if p == nil {
		return ""
	}
	return JoinName(p.FirstName, p.MiddleName, p.LastName, p.ExtensionName)
}

// BirthDateString returns the normalized birth date or "" when unknown.
func (p *Profile) BirthDateString() string {
	if p == nil || p.BirthDate == nil {
		return ""
	}
	return p.BirthDate.Format(DateLayout)
}

// Program returns the stored college program or "".
func (p *Profile) Program() string {
	if p == nil || p.CollegeProgram == nil {
		return ""
	}
	return *p.CollegeProgram
}

// DisplayName falls back to the username when no profile name is known.
func (a *AccountWithProfile) DisplayName() string {
	if name := a.Profile.FullName(); name != "" {
		return name
	}
	return a.Username
}

// JoinName composes a display name from its parts.
func JoinName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, " ")
}
