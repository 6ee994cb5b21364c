package log

import "context"

type contextKey struct{}

// WithContext attaches lg to ctx.
func WithContext(ctx context.Context, lg Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, lg)
}

// FromContext retrieves the logger stored in ctx. If none is found, it
// returns a noop logger so callers never need a nil check.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(contextKey{}).(Logger); ok {
		return lg
	}
	return NewNoopLogger()
}
