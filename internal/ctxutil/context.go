// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	institutionKey contextKey = "ctxutil.institution"
	requestIDKey   contextKey = "ctxutil.requestID"
)

// WithInstitution adds the institution name being scraped to the context.
func WithInstitution(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, institutionKey, name)
}

// GetInstitution retrieves the institution name from the context.
// Returns empty string if not set.
func GetInstitution(ctx context.Context) string {
	if v := ctx.Value(institutionKey); v != nil {
		if name, ok := v.(string); ok && name != "" {
			return name
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context for tracing.
// The CLI generates one per invocation for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
// Returns the request ID and true if found, empty string and false otherwise.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	return requestID, ok
}

// PreserveTracing creates a detached context that preserves tracing values.
// The new context is independent of the parent's cancellation and deadlines.
func PreserveTracing(ctx context.Context) context.Context {
	newCtx := context.Background()

	if name := GetInstitution(ctx); name != "" {
		newCtx = WithInstitution(newCtx, name)
	}
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		newCtx = WithRequestID(newCtx, requestID)
	}

	return newCtx
}
