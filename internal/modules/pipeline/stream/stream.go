package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/caseforge-backend/internal/observability"
)

type Type string

const (
	TypeSnapshot          Type = "snapshot"
	TypeStage             Type = "stage"
	TypeDocStarted        Type = "doc_started"
	TypeCriterionComplete Type = "criterion_complete"
	TypeDocComplete       Type = "doc_complete"
	TypeAllComplete       Type = "all_complete"
	TypeError             Type = "error"
)

var ErrClosed = errors.New("stream closed")

type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Frame is one line of an NDJSON response. Snapshot frames carry the full
// result so far and replace any earlier snapshot; the last one has Final set.
type Frame struct {
	Seq     int             `json:"seq"`
	Type    Type            `json:"type"`
	Key     string          `json:"key,omitempty"`
	Final   bool            `json:"final,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *FrameError     `json:"error,omitempty"`
}

// Stream is an unbounded, ordered, single-producer frame queue. Emit never
// blocks; payloads are encoded at emit time so later mutation of the value
// cannot change a frame already queued.
type Stream struct {
	pipeline string

	mu     sync.Mutex
	queue  []Frame
	seq    int
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func New(pipeline string) *Stream {
	return &Stream{
		pipeline: pipeline,
		ready:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (s *Stream) Pipeline() string { return s.pipeline }

// Emit queues a frame. It fails only when the payload cannot be encoded or the
// stream is already closed.
func (s *Stream) Emit(t Type, key string, payload any) error {
	return s.push(Frame{Type: t, Key: key}, payload)
}

// Snapshot queues the cumulative result.
func (s *Stream) Snapshot(v any, final bool) error {
	return s.push(Frame{Type: TypeSnapshot, Final: final}, v)
}

// Fail queues an error frame and closes the stream.
func (s *Stream) Fail(code string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	_ = s.push(Frame{Type: TypeError, Error: &FrameError{Code: code, Message: msg}}, nil)
	s.Close()
}

func (s *Stream) push(f Frame, payload any) error {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s frame: %w", f.Type, err)
		}
		f.Payload = raw
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.seq++
	f.Seq = s.seq
	s.queue = append(s.queue, f)
	s.mu.Unlock()

	observability.Current().IncFrame(s.pipeline, string(f.Type))
	s.signal()
	return nil
}

func (s *Stream) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Close ends the stream. Queued frames remain readable. Closing twice is a
// no-op.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
	s.signal()
}

// Done is closed once the producer has closed the stream.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Next returns the next frame. ok is false once the stream is closed and
// drained. It returns ctx.Err() if ctx ends first.
func (s *Stream) Next(ctx context.Context) (Frame, bool, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			f := s.queue[0]
			s.queue[0] = Frame{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return f, true, nil
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Frame{}, false, nil
		}

		select {
		case <-ctx.Done():
			return Frame{}, false, ctx.Err()
		case <-s.ready:
		case <-s.done:
		}
	}
}

// Each calls fn for every frame until the stream is drained, fn fails, or ctx
// ends.
func (s *Stream) Each(ctx context.Context, fn func(Frame) error) error {
	for {
		f, ok, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}

// Collect drains the stream into a slice.
func (s *Stream) Collect(ctx context.Context) ([]Frame, error) {
	var out []Frame
	err := s.Each(ctx, func(f Frame) error {
		out = append(out, f)
		return nil
	})
	return out, err
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v any) error {
	if len(f.Payload) == 0 {
		return errors.New("frame has no payload")
	}
	return json.Unmarshal(f.Payload, v)
}
