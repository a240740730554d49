package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"kitbuild/internal/actor"
	"kitbuild/pkg/authtoken"
)

type AuthOptions struct {
	Secret string
	Issuer string
	Now    func() time.Time
}

// ActorAuth resolves the caller from a bearer token.
//
// Contract:
// - No Authorization header: the request proceeds as actor.Anonymous.
// - A token that fails verification or names an unknown role: 401.
// - Otherwise the verified actor is attached to the request context.
func ActorAuth(opts AuthOptions) func(http.Handler) http.Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor.Anonymous)))
				return
			}

			v, err := authtoken.Verify(authtoken.FromHeader(header), opts.Secret, opts.Issuer, now())
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("actor token rejected")
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
				return
			}
			role, err := actor.ParseRole(v.Role)
			if err != nil || role == actor.RoleAnonymous {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid role")
				return
			}

			a := actor.Actor{ID: v.Subject, Role: role}
			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("actor", a.Label())
			})
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
		})
	}
}

func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActorFromContext(r.Context()).IsStaff() {
			WriteError(w, http.StatusForbidden, "FORBIDDEN", "staff only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActorFromContext(r.Context()).IsAdmin() {
			WriteError(w, http.StatusForbidden, "FORBIDDEN", "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger attaches log to every request context and writes one access
// line per request.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})
	return func(next http.Handler) http.Handler {
		return hlog.NewHandler(log)(hlog.RequestIDHandler("req_id", "X-Request-Id")(access(next)))
	}
}
