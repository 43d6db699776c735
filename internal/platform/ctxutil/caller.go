package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type callerKey struct{}

// Caller identifies who issued the request. UserID is uuid.Nil for anonymous
// callers working on a case that has not been claimed yet.
type Caller struct {
	UserID uuid.UUID
}

func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func GetCaller(ctx context.Context) *Caller {
	if ctx == nil {
		return nil
	}
	if c, ok := ctx.Value(callerKey{}).(*Caller); ok {
		return c
	}
	return nil
}

// CallerID returns the caller's user id or uuid.Nil.
func CallerID(ctx context.Context) uuid.UUID {
	if c := GetCaller(ctx); c != nil {
		return c.UserID
	}
	return uuid.Nil
}

// Detached returns a context that keeps ctx's values (trace ids, caller) but
// is never cancelled with it.
func Detached(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
