package authcore

import "context"

type requestContextKey struct{}

// WithRequestContext attaches the per-request metadata to ctx. The Engine
// uses it for rate limiting, device binding, and activity recording.
func WithRequestContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFrom extracts the request metadata, zero when absent.
func RequestContextFrom(ctx context.Context) RequestContext {
	if ctx == nil {
		return RequestContext{}
	}
	rc, _ := ctx.Value(requestContextKey{}).(RequestContext)
	return rc
}
