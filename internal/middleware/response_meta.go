package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
	startedAtKey    = "started_at"
)

// WithResponseMeta initialises response metadata storage on the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{startedAtKey: time.Now()})
		c.Next()
	}
}

// SetCacheHit records whether the response payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	meta := ensureMeta(c)
	meta[cacheHitKey] = hit
}

// ResponseMeta returns the metadata to attach to an envelope, or nil when no
// handler recorded any. Processing time is computed at read time.
func ResponseMeta(c *gin.Context) map[string]interface{} {
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	stored, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	meta := make(map[string]interface{}, len(stored))
	var started time.Time
	for k, v := range stored {
		if k == startedAtKey {
			started, _ = v.(time.Time)
			continue
		}
		meta[k] = v
	}
	if len(meta) == 0 {
		return nil
	}
	if !started.IsZero() {
		meta["processing_time_ms"] = time.Since(started).Milliseconds()
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
