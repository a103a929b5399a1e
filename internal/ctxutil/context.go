// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	userIDKey    contextKey = "ctxutil.userID"
	chatIDKey    contextKey = "ctxutil.chatID"
	requestIDKey contextKey = "ctxutil.requestID"
)

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// WithUserID adds the LINE user ID of the sender to the context.
// The per-user rate limiter keys on this value.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the user ID, or "" when none was set.
func GetUserID(ctx context.Context) string {
	return stringValue(ctx, userIDKey)
}

// WithChatID adds the conversation ID (user, group or room) to the context.
func WithChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, chatIDKey, chatID)
}

// GetChatID returns the chat ID, or "" when none was set.
func GetChatID(ctx context.Context) string {
	return stringValue(ctx, chatIDKey)
}

// WithRequestID adds a request ID used for log correlation.
// For webhook events this is the LINE webhook event ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID and whether a non-empty one was set.
func GetRequestID(ctx context.Context) (string, bool) {
	id := stringValue(ctx, requestIDKey)
	return id, id != ""
}

// PreserveTracing returns a fresh background context that carries only the
// tracing values of ctx. Cancellation and deadlines of ctx are dropped.
//
// Webhook events are answered after the HTTP response has been written, so
// their processing must not inherit the request context.
func PreserveTracing(ctx context.Context) context.Context {
	out := context.Background()
	if v := GetUserID(ctx); v != "" {
		out = WithUserID(out, v)
	}
	if v := GetChatID(ctx); v != "" {
		out = WithChatID(out, v)
	}
	if v, ok := GetRequestID(ctx); ok {
		out = WithRequestID(out, v)
	}
	return out
}
