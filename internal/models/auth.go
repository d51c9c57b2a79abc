package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for obtaining a token pair.
type LoginRequest struct {
	Username  string `json:"username" form:"username" validate:"required"`
	Password  string `json:"password" form:"password" validate:"required"`
	IP        string `json:"-" form:"-"`
	UserAgent string `json:"-" form:"-"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	Access    string    `json:"access"`
	Refresh   string    `json:"refresh"`
	ExpiresIn int64     `json:"expires_in"`
	IssuedAt  time.Time `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair.
type RefreshTokenRequest struct {
	Refresh   string `json:"refresh" form:"refresh" validate:"required"`
	IP        string `json:"-" form:"-"`
	UserAgent string `json:"-" form:"-"`
}

// UserInfo describes the authenticated caller in responses.
type UserInfo struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	IsStaff     bool   `json:"is_staff"`
	Program     string `json:"program"`
	DisplayName string `json:"display_name"`
}

// JWTClaims represents the access token payload.
type JWTClaims struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	IsStaff     bool   `json:"is_staff"`
	Program     string `json:"program"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// AccessScope is the resolved visibility rule for listing requests.
type AccessScope int

const (
	// ScopeOwner limits results to the caller's own requests.
	ScopeOwner AccessScope = iota
	// ScopeAll exposes every request.
	ScopeAll
)

func (s AccessScope) String() string {
	if s == ScopeAll {
		return "all"
	}
	return "owner"
}

// ResolveAccessScope maps the caller's privileges to a scope.
func ResolveAccessScope(claims *JWTClaims) AccessScope {
	if claims != nil && claims.IsStaff {
		return ScopeAll
	}
	return ScopeOwner
}
