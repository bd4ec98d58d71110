// Package common holds small helpers shared across layers.
package common

import "context"

// ContextKey is the type for context keys used by this module
type ContextKey string

const (
	// ContextKeyUserID carries the authenticated tenant id
	ContextKeyUserID ContextKey = "user_id"
)

// WithUserID adds the tenant id to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// GetUserID extracts the tenant id from the context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	return userID, ok && userID != ""
}
