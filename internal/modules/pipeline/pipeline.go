package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yungbote/caseforge-backend/internal/data/repos"
	"github.com/yungbote/caseforge-backend/internal/jobs/persist"
	"github.com/yungbote/caseforge-backend/internal/modules/evaluation"
	"github.com/yungbote/caseforge-backend/internal/modules/pipeline/stream"
	"github.com/yungbote/caseforge-backend/internal/modules/routing"
	"github.com/yungbote/caseforge-backend/internal/modules/verification"
	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
	"github.com/yungbote/caseforge-backend/internal/platform/openai"
)

var (
	ErrNoAnalysis       = errors.New("case has no analysis")
	ErrNoDocuments      = errors.New("no documents to verify")
	ErrNoResume         = errors.New("case has no resume text")
	ErrDocumentNotFound = errors.New("document not found")
)

// Submitter schedules background persistence.
type Submitter interface {
	Submit(ctx context.Context, t persist.Task) bool
}

type Deps struct {
	DB    *gorm.DB
	Log   *logger.Logger
	Gen   openai.Generator
	Queue Submitter

	Cases          repos.CaseRepo
	Profiles       repos.CaseProfileRepo
	Analyses       repos.AnalysisRepo
	Documents      repos.DocumentRepo
	Verifications  repos.VerificationRepo
	Routes         repos.RoutingRepo
	Gaps           repos.GapAnalysisRepo
	Denials        repos.DenialProbabilityRepo
	Consolidations repos.ConsolidationRepo

	Verifier *verification.Service
	Router   *routing.Engine
	// Search is offered to the generator while extracting the search-enabled
	// criterion. Optional.
	Search evaluation.ToolSource
}

type Pipeline struct {
	deps Deps
	log  *logger.Logger
	wg   sync.WaitGroup
}

func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps, log: deps.Log.With("service", "Pipeline")}
}

// run carries one request's producer state.
type run struct {
	p       *Pipeline
	name    string
	caseID  uuid.UUID
	ctx     context.Context
	stream  *stream.Stream
	machine *Machine
	span    trace.Span
	log     *logger.Logger
}

type stagePayload struct {
	State    State `json:"state"`
	Previous State `json:"previous"`
}

// start launches body on its own goroutine and returns the stream it writes.
// The body runs on ctx; only persistence outlives the request.
func (p *Pipeline) start(ctx context.Context, name string, order []State, caseID uuid.UUID, body func(r *run) error) *stream.Stream {
	s := stream.New(name)
	r := &run{
		p:       p,
		name:    name,
		caseID:  caseID,
		stream:  s,
		machine: NewMachine(order),
		log:     p.log.With("pipeline", name, "case_id", caseID),
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, span := observability.StartSpan(ctx, "pipeline."+name, attribute.String("case_id", caseID.String()))
		defer span.End()
		r.ctx, r.span = ctx, span

		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("Pipeline panic", "panic", rec)
				r.fail(fmt.Errorf("panic: %v", rec))
			}
		}()
		if err := body(r); err != nil {
			r.fail(err)
		}
	}()
	return s
}

// Wait blocks until every running producer has returned, so that all of
// their persistence has been submitted. Call it before closing the queue.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *run) advance(next State) error {
	prev, dur, err := r.machine.Advance(next)
	if err != nil {
		return err
	}
	observability.Current().ObserveStage(r.name, string(prev), "ok", dur)
	r.span.AddEvent("stage", trace.WithAttributes(attribute.String("state", string(next))))
	if err := r.stream.Emit(stream.TypeStage, string(next), stagePayload{State: next, Previous: prev}); err != nil && !errors.Is(err, stream.ErrClosed) {
		return err
	}
	return nil
}

func (r *run) fail(err error) {
	prev, dur, aerr := r.machine.Advance(StateFailed)
	if aerr == nil {
		observability.Current().ObserveStage(r.name, string(prev), "error", dur)
	}
	code := "internal_error"
	if errors.Is(err, openai.ErrNoStructuredResult) {
		code = "generation_failed"
	}
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())
	r.log.Warn("Pipeline failed", "state", prev, "error", err)
	r.stream.Fail(code, err)
}

// finish emits the final snapshot, closes the stream and only then schedules
// persistence. Persistence failures go to the dead-letter sink.
func (r *run) finish(final any, kind string, persistFn func(ctx context.Context) error) error {
	if err := r.stream.Snapshot(final, true); err != nil {
		return err
	}
	r.stream.Close()
	if err := r.advance(StatePersist); err != nil {
		return err
	}
	r.submit(kind, func(ctx context.Context) error {
		if err := persistFn(ctx); err != nil {
			return err
		}
		_ = r.advance(StateComplete)
		return nil
	})
	return nil
}

func (r *run) submit(kind string, fn func(ctx context.Context) error) {
	if !r.p.deps.Queue.Submit(r.ctx, persist.Task{Kind: kind, CaseID: r.caseID, Run: fn}) {
		r.log.Warn("Persist task not queued", "kind", kind)
	}
}
