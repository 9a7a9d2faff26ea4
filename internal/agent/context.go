package agent

import "context"

type contextKey int

const (
	sessionIDKey contextKey = iota
	runIDKey
	delegationDepthKey
)

func ContextWithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

func contextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext returns the id of the innermost run.
func RunIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey).(string); ok {
		return v
	}
	return ""
}

func contextWithDelegationDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, delegationDepthKey, depth)
}

func delegationDepthFromContext(ctx context.Context) int {
	if v, ok := ctx.Value(delegationDepthKey).(int); ok {
		return v
	}
	return 0
}
