package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/student-clearance-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "clearance:", nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())
	assert.Equal(t, "clearance:requests:stats", repo.key("requests:stats"))

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "requests:stats", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "requests:stats", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "requests:stats"))
	assert.NoError(t, repo.Ping(ctx))
}
