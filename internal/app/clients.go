package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/caseforge-backend/internal/jobs/persist"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
	"github.com/yungbote/caseforge-backend/internal/platform/search"
	"github.com/yungbote/caseforge-backend/internal/realtime"
)

type Clients struct {
	Generator   openai.Generator
	Search      *search.Client
	FrameBus    realtime.Bus
	DeadLetters persist.DeadLetterSink
	flushSentry func(time.Duration)
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Openai
	gen, err := openai.NewClient(log, cfg.OpenAI)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	// Redis
	var bus realtime.Bus
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		b, err := realtime.NewRedisBus(log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis frame bus: %w", err)
		}
		bus = b
	} else {
		log.Warn("REDIS_ADDR not set; frames relay within this instance only")
		bus = realtime.NewLocalBus()
	}

	// Sentry
	sentrySink, flush, err := persist.InitSentry(cfg.Sentry)
	if err != nil {
		_ = bus.Close()
		return Clients{}, fmt.Errorf("init sentry: %w", err)
	}
	sink := persist.NewLogSink(log)
	if sentrySink != nil {
		sink = persist.MultiSink(sink, sentrySink)
	}

	return Clients{
		Generator:   gen,
		Search:      search.NewClient(log, cfg.Search),
		FrameBus:    bus,
		DeadLetters: sink,
		flushSentry: flush,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.FrameBus != nil {
		_ = c.FrameBus.Close()
	}
	if c.flushSentry != nil {
		c.flushSentry(2 * time.Second)
	}
}
