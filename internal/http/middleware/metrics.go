package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/caseforge-backend/internal/observability"
)

// Metrics records every request by route template. NDJSON and SSE responses
// go to the stream collectors instead of the latency histogram, and
// /metrics scrapes are not recorded at all.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		if c.FullPath() == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if isStream(c) {
			m.ObserveHTTPStream(c.Request.Method, route, c.Writer.Status(), time.Since(start), c.Writer.Size())
			return
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func isStream(c *gin.Context) bool {
	ct := c.Writer.Header().Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-ndjson") || strings.HasPrefix(ct, "text/event-stream")
}
