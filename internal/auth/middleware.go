package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/motorlot/motorlot/internal/platform/httpx"
	"github.com/motorlot/motorlot/internal/rbac"
	"github.com/motorlot/motorlot/internal/shared"
)

// AccessSource resolves the role and grant lists for a logged in user.
// Satisfied by the rbac store.
type AccessSource interface {
	GetUserAccess(ctx context.Context, userID string) (*rbac.UserAccess, error)
}

// Middleware turns a session into a request principal.
type Middleware struct {
	Logger *slog.Logger
	Access AccessSource
}

// WithPrincipal resolves the session user, if any, and attaches the
// principal to the request context. Requests without a session pass
// through untouched; gated routes reject them downstream.
func (m *Middleware) WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" {
			next.ServeHTTP(w, r)
			return
		}
		access, err := m.Access.GetUserAccess(r.Context(), sess.User())
		if err != nil {
			m.Logger.Error("resolve principal", slog.String("user_id", sess.User()), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not resolve the request principal")
			return
		}
		if access == nil {
			// Session points at a user that no longer exists.
			next.ServeHTTP(w, r)
			return
		}
		principal := rbac.Principal{
			ID:                access.UserID,
			Roles:             access.Roles,
			CustomPermissions: access.CustomPermissions,
		}
		ctx := rbac.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireLogin rejects requests that carry no principal.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := rbac.PrincipalFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
