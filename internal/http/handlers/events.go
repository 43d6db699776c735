package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/realtime"
	"github.com/yungbote/caseforge-backend/internal/services"
)

type EventHandler struct {
	log   *logger.Logger
	cases services.CaseService
	hub   *realtime.Hub
}

func NewEventHandler(log *logger.Logger, caseService services.CaseService, hub *realtime.Hub) *EventHandler {
	return &EventHandler{
		log:   log.With("handler", "EventHandler"),
		cases: caseService,
		hub:   hub,
	}
}

// GET /cases/:caseId/events
// Relays every stream frame of the case, from any instance, as SSE.
func (h *EventHandler) Stream(c *gin.Context) {
	cs, ok := loadCase(c, h.cases, false)
	if !ok {
		return
	}
	client := h.hub.NewClient()
	defer h.hub.CloseClient(client)
	h.hub.Subscribe(client, realtime.CaseChannel(cs.ID))
	h.log.Debug("Event stream open", "case_id", cs.ID, "client_id", client.ID)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
