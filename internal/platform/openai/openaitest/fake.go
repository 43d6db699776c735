// Package openaitest provides a scripted Generator for tests.
package openaitest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yungbote/caseforge-backend/internal/platform/openai"
)

// Handler produces the result for one call. Returning an error makes the call
// fail with openai.ErrNoStructuredResult.
type Handler func(ctx context.Context, req openai.Request) (any, error)

type Call struct {
	SchemaName string
	Context    json.RawMessage
	Tools      []string
}

// Fake routes calls by schema name. Unscripted schemas fail.
type Fake struct {
	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

func New() *Fake {
	return &Fake{handlers: map[string]Handler{}}
}

func (f *Fake) On(schemaName string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[schemaName] = h
	return f
}

// Return scripts a fixed result.
func (f *Fake) Return(schemaName string, v any) *Fake {
	return f.On(schemaName, func(context.Context, openai.Request) (any, error) { return v, nil })
}

// Fail scripts a failure.
func (f *Fake) Fail(schemaName string) *Fake {
	return f.On(schemaName, func(context.Context, openai.Request) (any, error) {
		return nil, fmt.Errorf("scripted failure")
	})
}

func (f *Fake) Generate(ctx context.Context, req openai.Request, out any) error {
	raw, _ := json.Marshal(req.Context)
	call := Call{SchemaName: req.SchemaName, Context: raw}
	for _, t := range req.Tools {
		call.Tools = append(call.Tools, t.Name)
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	h := f.handlers[req.SchemaName]
	f.mu.Unlock()

	if h == nil {
		return fmt.Errorf("%w: no script for %s", openai.ErrNoStructuredResult, req.SchemaName)
	}
	v, err := h(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", openai.ErrNoStructuredResult, err)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", openai.ErrNoStructuredResult, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %v", openai.ErrNoStructuredResult, err)
	}
	return nil
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns the calls made with the schema.
func (f *Fake) CallsFor(schemaName string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.SchemaName == schemaName {
			out = append(out, c)
		}
	}
	return out
}
