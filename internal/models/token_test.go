package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshTokenActive(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, (&RefreshToken{ExpiresAt: now.Add(time.Minute)}).Active(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now}).Active(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(time.Minute), Revoked: true}).Active(now))

	var missing *RefreshToken
	assert.False(t, missing.Active(now))
}
