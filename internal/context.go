package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextCallerKey ctxKey = "caller"

// Caller identifies which trust boundary a request was admitted through.
type Caller string

const (
	CallerInternal Caller = "internal"
	CallerGateway  Caller = "gateway"
)

func CallerFromContext(ctx context.Context) Caller {
	if ctx == nil {
		return ""
	}
	if caller, ok := ctx.Value(ContextCallerKey).(Caller); ok {
		return caller
	}
	return ""
}

func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, ContextCallerKey, caller)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
