package middleware

import (
	"context"

	"github.com/angelmondragon/eventdesk-backend/internal/access"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
)

type contextKey string

const ctxActor contextKey = "actor"

// ActorFromContext returns the actor resolved by Auth.
func ActorFromContext(ctx context.Context) (access.Actor, bool) {
	if ctx == nil {
		return access.Actor{}, false
	}
	actor, ok := ctx.Value(ctxActor).(access.Actor)
	return actor, ok
}

func WithActor(ctx context.Context, actor access.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// RequireActor is ActorFromContext for handlers mounted behind Auth.
func RequireActor(ctx context.Context) (access.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return access.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}
