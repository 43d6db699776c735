package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
	"github.com/yungbote/caseforge-backend/internal/http/response"
	"github.com/yungbote/caseforge-backend/internal/modules/evaluation"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline"
	"github.com/yungbote/caseforge-backend/internal/platform/apierr"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/realtime"
	"github.com/yungbote/caseforge-backend/internal/services"
)

type AnalysisHandler struct {
	log       *logger.Logger
	cases     services.CaseService
	analyses  repos.AnalysisRepo
	pipe      *pipeline.Pipeline
	evaluator *evaluation.Service
	relay     *realtime.Relay
}

func NewAnalysisHandler(
	log *logger.Logger,
	caseService services.CaseService,
	analyses repos.AnalysisRepo,
	pipe *pipeline.Pipeline,
	evaluator *evaluation.Service,
	relay *realtime.Relay,
) *AnalysisHandler {
	return &AnalysisHandler{
		log:       log.With("handler", "AnalysisHandler"),
		cases:     caseService,
		analyses:  analyses,
		pipe:      pipe,
		evaluator: evaluator,
		relay:     relay,
	}
}

// POST /cases/:caseId/analysis/stream
func (h *AnalysisHandler) Stream(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, true)
	if !ok {
		return
	}
	s, err := h.pipe.Analyze(c.Request.Context(), cs.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	writeNDJSON(c, h.log, h.relay, cs.ID, s)
}

// GET /cases/:caseId/analysis
func (h *AnalysisHandler) Latest(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	a, err := h.analyses.Latest(dbctx.From(c.Request.Context()), cs.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if a == nil {
		response.RespondAPIError(c, apierr.NotFound("analysis_not_found"))
		return
	}
	response.RespondOK(c, gin.H{"analysis": a})
}

// GET /cases/:caseId/analysis/versions
func (h *AnalysisHandler) Versions(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	history, err := h.analyses.History(dbctx.From(c.Request.Context()), cs.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"versions": history})
}

// bindOptionalJSON accepts an empty body as the zero value.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		response.RespondAPIError(c, apierr.BadRequest("invalid_request", err))
		return false
	}
	return true
}

func criterionParam(c *gin.Context) (criteria.ID, bool) {
	id, err := criteria.Parse(c.Param("criterion"))
	if err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_criterion", err))
		return "", false
	}
	return id, true
}

// POST /cases/:caseId/criteria/:criterion/evaluate
// body: { "context": "...", "file_text": "..." }
func (h *AnalysisHandler) Evaluate(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	id, ok := criterionParam(c)
	if !ok {
		return
	}
	var req evaluation.Input
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.evaluator.Evaluate(c.Request.Context(), cs.ID, id, req)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /cases/:caseId/criteria/:criterion/evidence/remove
// body: { "index": 0, "source": "key_evidence|evidence|extraction", "category": "..." }
func (h *AnalysisHandler) RemoveEvidence(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	id, ok := criterionParam(c)
	if !ok {
		return
	}
	var req evaluation.RemoveInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_request", err))
		return
	}
	res, err := h.evaluator.RemoveEvidence(c.Request.Context(), cs.ID, id, req)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
