package coordinator

import "context"

type depthKey struct{}

// WithDepth returns ctx carrying the round depth of the messages broadcast with it
func WithDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

// DepthFrom returns the round depth of ctx. Messages from outside any round have depth 0.
func DepthFrom(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}
