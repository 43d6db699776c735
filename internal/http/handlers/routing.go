package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/caseforge-backend/internal/http/response"
	"github.com/yungbote/caseforge-backend/internal/modules/routing"
	"github.com/yungbote/caseforge-backend/internal/platform/apierr"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/services"
)

type RoutingHandler struct {
	log    *logger.Logger
	cases  services.CaseService
	engine *routing.Engine
}

func NewRoutingHandler(log *logger.Logger, caseService services.CaseService, engine *routing.Engine) *RoutingHandler {
	return &RoutingHandler{
		log:    log.With("handler", "RoutingHandler"),
		cases:  caseService,
		engine: engine,
	}
}

// GET /cases/:caseId/routing
func (h *RoutingHandler) Overview(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	out, err := h.engine.Overview(c.Request.Context(), cs.ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /cases/:caseId/routing
// body: { "documentId": "...", "criterion": "C3", "action": "add|remove|re-route" }
func (h *RoutingHandler) Apply(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	var cmd routing.Command
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_request", err))
		return
	}
	res, err := h.engine.Apply(c.Request.Context(), cs.ID, cmd)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
