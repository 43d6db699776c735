package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/modules/pipeline/stream"
	"github.com/yungbote/caseforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/realtime"
)

// writeNDJSON copies s to the response one frame per line and mirrors every
// frame onto the case's relay channel. A dead client stops the writes but the
// stream is still drained so /events subscribers see the whole run.
func writeNDJSON(c *gin.Context, log *logger.Logger, relay *realtime.Relay, caseID uuid.UUID, s *stream.Stream) {
	w := c.Writer
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ctx := ctxutil.Detached(c.Request.Context())
	writable := true
	err := s.Each(ctx, func(f stream.Frame) error {
		line, err := json.Marshal(f)
		if err != nil {
			return err
		}
		relay.Publish(ctx, caseID, s.Pipeline()+"."+string(f.Type), line)
		if !writable {
			return nil
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			writable = false
			log.Warn("Client went away mid-stream", "case_id", caseID, "pipeline", s.Pipeline(), "seq", f.Seq, "error", err)
			return nil
		}
		w.Flush()
		return nil
	})
	if err != nil {
		log.Error("Stream copy failed", "case_id", caseID, "pipeline", s.Pipeline(), "error", err)
	}
}
