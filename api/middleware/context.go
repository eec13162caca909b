package middleware

import (
	"context"

	"github.com/angelmondragon/buildmart-backend/internal/session"
)

type contextKey string

const ctxAccessID contextKey = "access_id"

// SessionFromContext returns the caller seeded by Auth.
func SessionFromContext(ctx context.Context) (session.Context, bool) {
	if ctx == nil {
		return session.Context{}, false
	}
	return session.FromContext(ctx)
}

func RoleFromContext(ctx context.Context) string {
	sc, ok := SessionFromContext(ctx)
	if !ok {
		return ""
	}
	return string(sc.Role)
}

// AccessIDFromContext returns the jti of the access token used for the request.
func AccessIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAccessID).(string); ok {
		return v
	}
	return ""
}

// WithSession injects the caller into the context for downstream handlers.
func WithSession(ctx context.Context, sc session.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return session.WithContext(ctx, sc)
}

func withAccessID(ctx context.Context, accessID string) context.Context {
	return context.WithValue(ctx, ctxAccessID, accessID)
}
