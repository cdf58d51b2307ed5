// Package requestcontext carries request-scoped values (request id, bearer
// token, request time) without importing net/http. Middleware writes them;
// services and audit read them.
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	bearerTokenKey key = iota
	requestIDKey
	requestTimeKey
)

func stringValue(ctx context.Context, k key) string {
	v, _ := ctx.Value(k).(string)
	return v
}

// BearerToken returns the caller's directory-issued access token, or "".
func BearerToken(ctx context.Context) string {
	return stringValue(ctx, bearerTokenKey)
}

func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerTokenKey, token)
}

// RequestID returns the id assigned by the RequestID middleware, or "".
func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now returns the request time pinned with WithTime, falling back to the
// wall clock for background work.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}
