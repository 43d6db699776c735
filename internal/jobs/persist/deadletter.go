package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

// DeadLetter describes a background write that did not land.
type DeadLetter struct {
	Kind     string
	CaseID   uuid.UUID
	Err      error
	FailedAt time.Time
}

type DeadLetterSink interface {
	DeadLetter(ctx context.Context, dl DeadLetter)
}

type logSink struct {
	log *logger.Logger
}

func NewLogSink(baseLog *logger.Logger) DeadLetterSink {
	return &logSink{log: baseLog.With("component", "PersistDeadLetter")}
}

func (s *logSink) DeadLetter(ctx context.Context, dl DeadLetter) {
	s.log.Error("Persist task dead-lettered",
		"kind", dl.Kind,
		"case_id", dl.CaseID,
		"trace_id", ctxutil.GetTraceID(ctx),
		"error", dl.Err,
	)
}

type sentrySink struct {
	hub *sentry.Hub
}

// NewSentrySink reports dead letters through hub. A nil hub uses the current
// global hub.
func NewSentrySink(hub *sentry.Hub) DeadLetterSink {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &sentrySink{hub: hub}
}

func (s *sentrySink) DeadLetter(ctx context.Context, dl DeadLetter) {
	err := dl.Err
	if err == nil {
		err = fmt.Errorf("persist %s failed", dl.Kind)
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("component", "persist")
		scope.SetTag("kind", dl.Kind)
		scope.SetTag("case_id", dl.CaseID.String())
		if tid := ctxutil.GetTraceID(ctx); tid != "" {
			scope.SetTag("trace_id", tid)
		}
		s.hub.CaptureException(err)
	})
}

type multiSink []DeadLetterSink

// MultiSink fans a dead letter out to every non-nil sink in order.
func MultiSink(sinks ...DeadLetterSink) DeadLetterSink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) DeadLetter(ctx context.Context, dl DeadLetter) {
	for _, s := range m {
		s.DeadLetter(ctx, dl)
	}
}

type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// InitSentry configures the global sentry client. It returns a nil sink and a
// no-op flush when no DSN is configured.
func InitSentry(cfg SentryConfig) (DeadLetterSink, func(time.Duration), error) {
	if cfg.DSN == "" {
		return nil, func(time.Duration) {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       1.0,
		AttachStacktrace: true,
		ServerName:       "",
	})
	if err != nil {
		return nil, func(time.Duration) {}, fmt.Errorf("sentry initialization failed: %w", err)
	}
	flush := func(timeout time.Duration) { sentry.Flush(timeout) }
	return NewSentrySink(nil), flush, nil
}
