// ABOUTME: Caller identity propagation through request handlers
// ABOUTME: Provides WithCaller/CallerFromContext for passing the user id via context

package auth

import (
	"context"
)

// callerKey is the key type for storing the caller's user id in context.Context.
type callerKey struct{}

// WithCaller returns a new context with the authenticated user id attached.
func WithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

// CallerFromContext retrieves the authenticated user id from the context.
// Returns an empty string if no caller is present.
func CallerFromContext(ctx context.Context) string {
	val := ctx.Value(callerKey{})
	if val == nil {
		return ""
	}
	id, ok := val.(string)
	if !ok {
		return ""
	}
	return id
}
