// Package middleware provides HTTP middleware components for the service.
package middleware

import "context"

// ContextKey is a typed key for context values to avoid collisions
type ContextKey string

const (
	// RequestIDKey is the context key for the request ID
	RequestIDKey ContextKey = "request_id"

	// UserIDKey is the context key for the authenticated user ID. The lock
	// layer uses this identity as the lock holder.
	UserIDKey ContextKey = "user_id"

	// UserRoleKey is the context key for the authenticated user's role
	UserRoleKey ContextKey = "user_role"
)

// GetRequestID returns the request ID stored in ctx, or "" if absent.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID returns the authenticated user ID stored in ctx, or "" if absent.
func GetUserID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetUserRole returns the authenticated user's role stored in ctx, or "" if absent.
func GetUserRole(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if role, ok := ctx.Value(UserRoleKey).(string); ok {
		return role
	}
	return ""
}
