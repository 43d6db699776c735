package realtime

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

// Relay publishes stream frames for a case onto the bus. Publishing is best
// effort; the NDJSON response never depends on it.
type Relay struct {
	log *logger.Logger
	bus Bus
}

func NewRelay(baseLog *logger.Logger, bus Bus) *Relay {
	return &Relay{log: baseLog.With("component", "FrameRelay"), bus: bus}
}

func (r *Relay) Publish(ctx context.Context, caseID uuid.UUID, event string, frame json.RawMessage) {
	if r == nil || r.bus == nil {
		return
	}
	msg := Message{Channel: CaseChannel(caseID), Event: event, Data: frame}
	if err := r.bus.Publish(ctx, msg); err != nil {
		r.log.Warn("Frame relay publish failed", "case_id", caseID, "event", event, "error", err)
	}
}

// Forward wires the bus into hub until ctx is done.
func Forward(ctx context.Context, bus Bus, hub *Hub) error {
	return bus.StartForwarder(ctx, hub.Broadcast)
}
