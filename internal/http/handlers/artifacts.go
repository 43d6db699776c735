package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/http/response"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline/stream"
	"github.com/yungbote/caseforge-backend/internal/platform/apierr"
	"github.com/yungbote/caseforge-backend/internal/platform/dbctx"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/realtime"
	"github.com/yungbote/caseforge-backend/internal/services"
)

// ArtifactHandler serves the three analysis-derived artifacts. Each has a
// streaming generator and a latest-version read.
type ArtifactHandler struct {
	log            *logger.Logger
	cases          services.CaseService
	pipe           *pipeline.Pipeline
	relay          *realtime.Relay
	gaps           repos.GapAnalysisRepo
	denials        repos.DenialProbabilityRepo
	consolidations repos.ConsolidationRepo
}

func NewArtifactHandler(
	log *logger.Logger,
	caseService services.CaseService,
	pipe *pipeline.Pipeline,
	relay *realtime.Relay,
	gaps repos.GapAnalysisRepo,
	denials repos.DenialProbabilityRepo,
	consolidations repos.ConsolidationRepo,
) *ArtifactHandler {
	return &ArtifactHandler{
		log:            log.With("handler", "ArtifactHandler"),
		cases:          caseService,
		pipe:           pipe,
		relay:          relay,
		gaps:           gaps,
		denials:        denials,
		consolidations: consolidations,
	}
}

func (h *ArtifactHandler) stream(c *gin.Context, start func(ctx context.Context, caseID uuid.UUID) (*stream.Stream, error)) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	s, err := start(c.Request.Context(), cs.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	writeNDJSON(c, h.log, h.relay, cs.ID, s)
}

// latest writes the newest row under key, or a 404 with notFound when the
// artifact has never been generated.
func latest[T any](c *gin.Context, svc services.CaseService, key, notFound string, get func(dbc dbctx.Context, caseID uuid.UUID) (*T, error)) {
	cs, ok := loadCase(c, svc, false)
	if !ok {
		return
	}
	row, err := get(dbctx.From(c.Request.Context()), cs.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if row == nil {
		response.RespondAPIError(c, apierr.NotFound(notFound))
		return
	}
	response.RespondOK(c, gin.H{key: row})
}

// POST /cases/:caseId/gap-analysis/stream
func (h *ArtifactHandler) GapStream(c *gin.Context) { h.stream(c, h.pipe.GapAnalysis) }

// GET /cases/:caseId/gap-analysis
func (h *ArtifactHandler) GapLatest(c *gin.Context) {
	latest(c, h.cases, "gap_analysis", "gap_analysis_not_found", h.gaps.Latest)
}

// POST /cases/:caseId/denial-probability/stream
func (h *ArtifactHandler) DenialStream(c *gin.Context) { h.stream(c, h.pipe.DenialProbability) }

// GET /cases/:caseId/denial-probability
func (h *ArtifactHandler) DenialLatest(c *gin.Context) {
	latest(c, h.cases, "denial_probability", "denial_probability_not_found", h.denials.Latest)
}

// POST /cases/:caseId/consolidation/stream
func (h *ArtifactHandler) ConsolidationStream(c *gin.Context) { h.stream(c, h.pipe.Consolidate) }

// GET /cases/:caseId/consolidation
func (h *ArtifactHandler) ConsolidationLatest(c *gin.Context) {
	latest(c, h.cases, "consolidation", "consolidation_not_found", h.consolidations.Latest)
}
