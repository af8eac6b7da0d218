package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/motorlot/motorlot/internal/platform/httpx"
)

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal set at authentication time.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// DenialRecorder counts denied permission checks. Satisfied by the
// observability metrics; nil disables counting.
type DenialRecorder interface {
	RecordAuthzDenial(permission string)
}

// Middleware wires authorization gates for HTTP handlers. Gates run after
// authentication and before business logic; a failed store lookup denies
// the request rather than letting it through.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Denials DenialRecorder
}

// RequirePermission rejects the request with 403 unless the caller's
// effective permission set, recomputed against current store state,
// contains the permission.
func (m Middleware) RequirePermission(permID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			decision, err := m.Service.CheckPermission(r.Context(), principal.ID, permID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require permission", slog.String("permission", permID), slog.Any("error", err))
				}
				// Fail closed on store errors.
				httpx.RespondError(w, err)
				return
			}
			if !decision.HasPermission {
				if m.Denials != nil {
					m.Denials.RecordAuthzDenial(permID)
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission "+permID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole rejects the request unless the caller's assigned role list
// contains at least one given role id. Flat membership only: there is no
// role inheritance.
func (m Middleware) RequireAnyRole(roleIDs ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(roleIDs) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if !principal.HasAnyRole(roleIDs...) {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "required role missing")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
