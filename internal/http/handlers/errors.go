package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/caseforge-backend/internal/http/response"
	"github.com/yungbote/caseforge-backend/internal/modules/evaluation"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline"
	"github.com/yungbote/caseforge-backend/internal/modules/routing"
	"github.com/yungbote/caseforge-backend/internal/platform/apierr"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
	"github.com/yungbote/caseforge-backend/internal/services"
)

// toAPIError maps module sentinels onto status codes. Missing and not-owned
// resources share one 404 code.
func toAPIError(err error) error {
	if _, ok := apierr.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, services.ErrCaseNotFound):
		return apierr.NotFound("case_not_found")
	case errors.Is(err, services.ErrDocumentNotFound), errors.Is(err, routing.ErrDocumentNotFound),
		errors.Is(err, pipeline.ErrDocumentNotFound):
		return apierr.NotFound("document_not_found")
	case errors.Is(err, evaluation.ErrEvidenceNotFound):
		return apierr.NotFound("evidence_not_found")
	case errors.Is(err, services.ErrUnauthenticated):
		return apierr.New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, services.ErrCaseClaimed):
		return apierr.Conflict("case_claimed", err)
	case errors.Is(err, services.ErrInvalidInput):
		return apierr.BadRequest("invalid_input", err)
	case errors.Is(err, evaluation.ErrInvalidCriterion):
		return apierr.BadRequest("invalid_criterion", err)
	case errors.Is(err, evaluation.ErrInvalidRemoval):
		return apierr.BadRequest("invalid_removal", err)
	case errors.Is(err, routing.ErrInvalidCommand):
		return apierr.BadRequest("invalid_command", err)
	case errors.Is(err, pipeline.ErrNoResume):
		return apierr.BadRequest("no_resume", err)
	case errors.Is(err, pipeline.ErrNoDocuments):
		return apierr.BadRequest("no_documents", err)
	case errors.Is(err, pipeline.ErrNoAnalysis):
		return apierr.Conflict("analysis_required", err)
	case errors.Is(err, openai.ErrNoStructuredResult):
		return apierr.BadGateway("generation_failed", err)
	}
	return err
}

func respondErr(c *gin.Context, err error) {
	response.RespondAPIError(c, toAPIError(err))
}
