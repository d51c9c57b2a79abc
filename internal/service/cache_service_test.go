package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	metrics := NewMetricsService()
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var dest map[string]int
	assert.False(t, svc.Get(ctx, "k", &dest))

	svc.Set(ctx, "k", map[string]int{"a": 1}, 0)
	assert.True(t, svc.Get(ctx, "k", &dest))
	assert.Equal(t, 1, dest["a"])

	svc.Invalidate(ctx, "k")
	assert.False(t, svc.Get(ctx, "k", &dest))
	assert.Equal(t, []string{"k"}, repo.deleted)

	assert.Equal(t, float64(1), counterValue(t, metrics, "cache_lookups_total", "hit"))
	assert.Equal(t, float64(2), counterValue(t, metrics, "cache_lookups_total", "miss"))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, nil, 0, nil, false)
	ctx := context.Background()

	svc.Set(ctx, "k", 1, 0)
	assert.Empty(t, repo.values)
	var dest int
	assert.False(t, svc.Get(ctx, "k", &dest))

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	nilSvc.Invalidate(ctx, "k")
}

func counterValue(t *testing.T, metrics *MetricsService, name, label string) float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetValue() == label {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
