package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/domain/cases"
	"github.com/yungbote/caseforge-backend/internal/http/response"
	"github.com/yungbote/caseforge-backend/internal/platform/apierr"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/services"
)

func parseID(c *gin.Context, param, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil || id == uuid.Nil {
		response.RespondAPIError(c, apierr.BadRequest(code, err))
		return uuid.Nil, false
	}
	return id, true
}

// loadCase resolves :caseId for the caller. With ensure set an unknown id is
// created and owned by the caller instead of rejected.
func loadCase(c *gin.Context, svc services.CaseService, ensure bool) (*cases.Case, bool) {
	id, ok := parseID(c, "caseId", "invalid_case_id")
	if !ok {
		return nil, false
	}
	var (
		cs  *cases.Case
		err error
	)
	if ensure {
		cs, err = svc.EnsureCase(c.Request.Context(), id)
	} else {
		cs, err = svc.Authorize(c.Request.Context(), id)
	}
	if err != nil {
		respondErr(c, err)
		return nil, false
	}
	return cs, true
}

type CaseHandler struct {
	log    *logger.Logger
	cases  services.CaseService
	survey services.SurveyService
}

func NewCaseHandler(log *logger.Logger, caseService services.CaseService, surveyService services.SurveyService) *CaseHandler {
	return &CaseHandler{
		log:    log.With("handler", "CaseHandler"),
		cases:  caseService,
		survey: surveyService,
	}
}

// POST /cases
func (h *CaseHandler) Create(c *gin.Context) {
	cs, err := h.cases.Create(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"case": cs})
}

// GET /cases/:caseId
func (h *CaseHandler) Get(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	response.RespondOK(c, gin.H{"case": cs})
}

// POST /cases/:caseId/claim
func (h *CaseHandler) Claim(c *gin.Context) {
	id, ok := parseID(c, "caseId", "invalid_case_id")
	if !ok {
		return
	}
	cs, err := h.cases.Claim(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"case": cs})
}

// GET /cases/:caseId/survey
func (h *CaseHandler) GetSurvey(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	profile, err := h.survey.Get(c.Request.Context(), cs.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"profile": profile})
}

// PATCH /cases/:caseId/survey
// body: { "data": {...}, "skipped_sections": [...], "intake_status": "..." }
func (h *CaseHandler) PatchSurvey(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, true)
	if !ok {
		return
	}
	var req services.SurveyPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_request", err))
		return
	}
	res, err := h.survey.Patch(c.Request.Context(), cs.ID, req)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
