package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/smallgroups-admin-api/pkg/middleware/requestid"
)

const (
	responseMetaKey  = "response_meta"
	requestStartKey  = "request_start"
	cacheHitKey      = "cache_hit"
	processingTimeMs = "processing_time_ms"
)

// WithResponseMeta initialises response metadata storage on the request context.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records cache hit information for the current response.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[cacheHitKey] = hit
}

// ResponseMeta returns the metadata of the current response with the request
// id and the time spent since since.
func ResponseMeta(c *gin.Context, since time.Time) map[string]interface{} {
	meta := ensureMeta(c)
	if since.IsZero() {
		if v, ok := c.Get(requestStartKey); ok {
			since, _ = v.(time.Time)
		}
	}
	if !since.IsZero() {
		meta[processingTimeMs] = time.Since(since).Milliseconds()
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	newMeta := make(map[string]interface{})
	c.Set(responseMetaKey, newMeta)
	return newMeta
}
