package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type traceDataKey struct{}

// TraceData identifies the request a context belongs to. CaseID is set for
// case-scoped routes and survives Detached, so background writes log it too.
type TraceData struct {
	TraceID   string
	RequestID string
	CaseID    uuid.UUID
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

// GetTraceID returns the trace id carried by ctx, or "".
func GetTraceID(ctx context.Context) string {
	if td := GetTraceData(ctx); td != nil {
		return td.TraceID
	}
	return ""
}

// GetCaseID returns the case the request is scoped to, or uuid.Nil.
func GetCaseID(ctx context.Context) uuid.UUID {
	if td := GetTraceData(ctx); td != nil {
		return td.CaseID
	}
	return uuid.Nil
}
