package internal

import (
	"context"
	"time"
)

type ctxKey string

const ContextRequestMetaKey ctxKey = "requestMeta"

// RequestMeta carries per-request client information captured by the HTTP
// layer so that audit entries can record where a change came from.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	if meta, ok := ctx.Value(ContextRequestMetaKey).(RequestMeta); ok {
		return meta
	}
	return RequestMeta{}
}

func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, ContextRequestMetaKey, meta)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
