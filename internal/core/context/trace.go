// Package context carries per-run tracing values through a call chain.
// Business identity (the operator) is never read from here: ledger
// operations take it as an explicit argument.
package context

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"consigna/internal/core/id"
)

// Run identifies one CLI invocation in the logs.
type Run struct {
	ID      string
	Command string
}

type runKey struct{}

// WithRun stores run in ctx.
func WithRun(ctx context.Context, run *Run) context.Context {
	return context.WithValue(ctx, runKey{}, run)
}

// GetRun returns the run stored in ctx, or nil.
func GetRun(ctx context.Context) *Run {
	if v, ok := ctx.Value(runKey{}).(*Run); ok {
		return v
	}
	return nil
}

// NewRun starts a run for command. Ids are UUIDv7, so consecutive runs
// sort in start order when logs are grepped by id.
func NewRun(command string) *Run {
	return &Run{ID: id.New().String(), Command: command}
}

// TraceID prefers the trace id of a valid span in ctx and falls back to the run id.
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	if r := GetRun(ctx); r != nil {
		return r.ID
	}
	return ""
}
