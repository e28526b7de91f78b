// Package context carries request correlation ids across HTTP handlers and queued jobs.
package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext correlates log lines of one request, including the
// background approval it may enqueue.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace stores tc in ctx.
func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTrace returns the TraceContext of ctx, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	tc, _ := ctx.Value(traceContextKey{}).(*TraceContext)
	return tc
}

// GetRequestID returns the request ID of ctx, or "".
func GetRequestID(ctx context.Context) string {
	if tc := GetTrace(ctx); tc != nil {
		return tc.RequestID
	}
	return ""
}

// NewTraceContext starts a trace. An empty requestID gets a fresh one.
func NewTraceContext(requestID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &TraceContext{
		TraceID:   uuid.NewString(),
		SpanID:    uuid.NewString()[:16],
		RequestID: requestID,
	}
}

// Resume attaches a trace for work continuing a request elsewhere (a queued job).
// The request ID is kept so both halves can be joined in the logs.
func Resume(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return WithTrace(ctx, NewTraceContext(requestID))
}
