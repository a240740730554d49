package api

import (
	"context"

	"kitbuild/internal/actor"
)

type ctxKey string

const ctxKeyActor ctxKey = "actor"

func WithActor(ctx context.Context, a actor.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorFromContext returns the authenticated actor, or actor.Anonymous when
// the request carried no token.
func ActorFromContext(ctx context.Context) actor.Actor {
	v := ctx.Value(ctxKeyActor)
	if v == nil {
		return actor.Anonymous
	}
	a, ok := v.(actor.Actor)
	if !ok {
		return actor.Anonymous
	}
	return a
}
