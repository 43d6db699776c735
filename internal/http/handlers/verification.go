package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/modules/pipeline"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/realtime"
	"github.com/yungbote/caseforge-backend/internal/services"
)

type VerificationHandler struct {
	log   *logger.Logger
	cases services.CaseService
	pipe  *pipeline.Pipeline
	relay *realtime.Relay
}

func NewVerificationHandler(log *logger.Logger, caseService services.CaseService, pipe *pipeline.Pipeline, relay *realtime.Relay) *VerificationHandler {
	return &VerificationHandler{
		log:   log.With("handler", "VerificationHandler"),
		cases: caseService,
		pipe:  pipe,
		relay: relay,
	}
}

// POST /cases/:caseId/verification/stream
// body (optional): { "documentIds": [...] }; empty verifies every upload.
func (h *VerificationHandler) Stream(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	var req struct {
		DocumentIDs []uuid.UUID `json:"documentIds"`
	}
	if !bindOptionalJSON(c, &req) {
		return
	}
	s, err := h.pipe.VerifyDocuments(c.Request.Context(), cs.ID, req.DocumentIDs)
	if err != nil {
		respondErr(c, err)
		return
	}
	writeNDJSON(c, h.log, h.relay, cs.ID, s)
}
