package tree

import "context"

type ctxKey int

const originKey ctxKey = 0

// WithOrigin attaches the caller's origin identifier (browser or session id)
// to ctx. Audit entries written under ctx carry it.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey, origin)
}

// OriginFrom returns the origin attached by WithOrigin, or "".
func OriginFrom(ctx context.Context) string {
	if o, ok := ctx.Value(originKey).(string); ok {
		return o
	}
	return ""
}
