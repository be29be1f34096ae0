package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"stackit/application/board"
	"stackit/pkg/auth"
	"stackit/pkg/common"
	pkgerrors "stackit/pkg/errors"
)

// SessionLookup resolves session keys to boards
type SessionLookup interface {
	Get(key string) (*board.Session, bool)
}

// BindIdentity copies the caller's token into the session identity named by
// the {session} route parameter, so sign-in state follows every request.
// Unknown sessions pass through and are reported by the handler.
func BindIdentity(sessions SessionLookup) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := chi.URLParam(r, "session")
			ctx := common.WithSession(r.Context(), key)

			if session, ok := sessions.Get(key); ok {
				token := extractToken(r)
				session.Identity.SetToken(token)
				if sub := auth.Subject(token); sub != "" {
					ctx = common.WithUserID(ctx, sub)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitObserver is told about rejected requests
type RateLimitObserver interface {
	RateLimited()
}

// RateLimit rejects callers over perMinute requests, keyed by client IP and
// by session. Limiter errors are logged and the request is let through.
func RateLimit(ipLimiter, sessionLimiter auth.RateLimiter, perMinute int, errs *pkgerrors.ErrorHandler, observer RateLimitObserver, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			checks := []struct {
				limiter auth.RateLimiter
				key     string
			}{
				{ipLimiter, auth.ClientIP(r)},
				{sessionLimiter, chi.URLParam(r, "session")},
			}

			for _, check := range checks {
				if check.limiter == nil || check.key == "" {
					continue
				}
				allowed, err := check.limiter.Allow(r.Context(), check.key)
				if err != nil {
					logger.Error("Rate limiter error", zap.Error(err))
				}
				if !allowed {
					if observer != nil {
						observer.RateLimited()
					}
					errs.Handle(w, r, pkgerrors.NewRateLimitError(perMinute, "1m"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the bearer token from the Authorization header, the
// auth_token cookie or the token query parameter. Browsers cannot set headers
// on websocket upgrades, which is what the last two are for.
func extractToken(r *http.Request) string {
	if token := auth.ExtractBearer(r); token != "" {
		return token
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}

	return r.URL.Query().Get("token")
}
