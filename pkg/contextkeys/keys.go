// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application must be defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: all protected endpoints, capability middleware
	PrincipalKey Key = "principal"

	// WeddingKey contains *weddings.Wedding
	// Set by: middleware.WeddingContext (pkg/middleware/wedding.go)
	// Required by: wedding-scoped endpoints, capability middleware
	WeddingKey Key = "wedding"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	LoggerKey Key = "logger"
)

// WithPrincipal adds the authenticated principal to the context.
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithWedding adds the resolved wedding resource to the context.
func WithWedding(ctx context.Context, wedding interface{}) context.Context {
	return context.WithValue(ctx, WeddingKey, wedding)
}

// WithRequestID adds the request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
