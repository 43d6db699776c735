package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/http/response"
	"github.com/yungbote/caseforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

var quietRoutes = map[string]bool{"/healthcheck": true, "/metrics": true}

// RequestLogger writes one line per request once it completes. Health and
// metrics hits log at debug. Streams add the bytes written and failures carry
// the API error code.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.With("component", "HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		ctx := c.Request.Context()
		if td := ctxutil.GetTraceData(ctx); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
			if td.CaseID != uuid.Nil {
				fields = append(fields, "case_id", td.CaseID.String())
			}
		}
		if caller := ctxutil.CallerID(ctx); caller != uuid.Nil {
			fields = append(fields, "user_id", caller.String())
		}
		if isStream(c) {
			fields = append(fields, "stream", true, "bytes", c.Writer.Size())
		}
		if code := c.GetString(response.ContextErrorCode); code != "" {
			fields = append(fields, "error_code", code)
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, "error", last.Error())
		}

		switch {
		case status >= 500:
			log.Error("Request failed", fields...)
		case status >= 400:
			log.Warn("Request rejected", fields...)
		case quietRoutes[route]:
			log.Debug("Request served", fields...)
		default:
			log.Info("Request served", fields...)
		}
	}
}
