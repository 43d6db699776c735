package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/observability"
	"github.com/yungbote/caseforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/caseforge-backend/internal/platform/logger"
)

var (
	ErrQueueFull   = errors.New("persist queue full")
	ErrQueueClosed = errors.New("persist queue closed")
)

// Task is one unit of background persistence. Tasks are never retried; a
// failed task goes to the dead-letter sink.
type Task struct {
	Kind   string
	CaseID uuid.UUID
	Run    func(ctx context.Context) error
}

type Config struct {
	Workers     int
	Size        int
	TaskTimeout time.Duration
}

type queued struct {
	ctx  context.Context
	task Task
}

type Queue struct {
	log     *logger.Logger
	sink    DeadLetterSink
	cfg     Config
	tasks   chan queued
	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewQueue(baseLog *logger.Logger, cfg Config, sink DeadLetterSink) *Queue {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.Size < 1 {
		cfg.Size = 256
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 2 * time.Minute
	}
	if sink == nil {
		sink = NewLogSink(baseLog)
	}
	return &Queue{
		log:   baseLog.With("component", "PersistQueue"),
		sink:  sink,
		cfg:   cfg,
		tasks: make(chan queued, cfg.Size),
	}
}

// Start launches the worker pool. Calling it twice is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	q.log.Info("Starting persist worker pool", "workers", q.cfg.Workers, "size", q.cfg.Size)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.runLoop(i + 1)
	}
}

// Submit enqueues t without blocking. The task runs on a context that keeps
// ctx's values but ignores its cancellation. When the queue is full or closed
// the task is dead-lettered immediately and Submit reports false.
func (q *Queue) Submit(ctx context.Context, t Task) bool {
	item := queued{ctx: ctxutil.Detached(ctx), task: t}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		q.deadLetter(item, ErrQueueClosed)
		return false
	}
	select {
	case q.tasks <- item:
		q.mu.RUnlock()
		observability.Current().SetPersistQueueDepth(len(q.tasks))
		return true
	default:
		q.mu.RUnlock()
		q.deadLetter(item, ErrQueueFull)
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to drain, or for ctx
// to expire.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	started := q.started
	close(q.tasks)
	q.mu.Unlock()

	if !started {
		for item := range q.tasks {
			q.deadLetter(item, ErrQueueClosed)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain persist queue: %w", ctx.Err())
	}
}

func (q *Queue) runLoop(workerID int) {
	defer q.wg.Done()
	for item := range q.tasks {
		observability.Current().SetPersistQueueDepth(len(q.tasks))
		q.run(workerID, item)
	}
	q.log.Debug("Persist worker stopped", "worker_id", workerID)
}

func (q *Queue) run(workerID int, item queued) {
	ctx, cancel := context.WithTimeout(item.ctx, q.cfg.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			q.log.Error("Persist task panic",
				"worker_id", workerID,
				"kind", item.task.Kind,
				"case_id", item.task.CaseID,
				"panic", r,
			)
			observability.Current().ObservePersistTask(item.task.Kind, "panic")
			q.deadLetter(item, errFromRecover(r))
		}
	}()

	if item.task.Run == nil {
		observability.Current().ObservePersistTask(item.task.Kind, "error")
		q.deadLetter(item, errors.New("persist task has no Run func"))
		return
	}
	if err := item.task.Run(ctx); err != nil {
		observability.Current().ObservePersistTask(item.task.Kind, "error")
		q.deadLetter(item, err)
		return
	}
	observability.Current().ObservePersistTask(item.task.Kind, "ok")
}

func (q *Queue) deadLetter(item queued, err error) {
	observability.Current().IncDeadLetter(item.task.Kind)
	caseID := item.task.CaseID
	if caseID == uuid.Nil {
		caseID = ctxutil.GetCaseID(item.ctx)
	}
	q.sink.DeadLetter(item.ctx, DeadLetter{
		Kind:     item.task.Kind,
		CaseID:   caseID,
		Err:      err,
		FailedAt: time.Now().UTC(),
	})
}

func errFromRecover(v any) error { return &PanicError{Val: v} }

type PanicError struct{ Val any }

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }
