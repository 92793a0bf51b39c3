package middleware

import (
	"context"
	"net/http"

	"github.com/agrilink/marketplace-backend/internal/domain/entities"
)

type contextKey string

const actorContextKey contextKey = "actor"

// Identity header names supplied by the authentication gateway. The gateway
// is trusted for authentication; every ownership decision is re-checked
// downstream against stored party references.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// IdentityMiddleware extracts the authenticated actor from the gateway
// headers and stores it on the request context. Requests without an identity
// pass through; handlers that require one reject them.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}

		role := entities.ActorRole(r.Header.Get(HeaderUserRole))
		switch role {
		case entities.RoleBuyer, entities.RoleSeller, entities.RoleAdmin:
		default:
			role = entities.RoleBuyer
		}

		actor := entities.Actor{ID: userID, Role: role}
		ctx := context.WithValue(r.Context(), actorContextKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (entities.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(entities.Actor)
	return actor, ok
}

// WithActor returns a context carrying the actor, used by tests.
func WithActor(ctx context.Context, actor entities.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}
