package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func performGated(t *testing.T, mw func(http.Handler) http.Handler, principal *Principal) *httptest.ResponseRecorder {
	t.Helper()
	var reached bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if principal != nil {
		req = req.WithContext(ContextWithPrincipal(req.Context(), *principal))
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code == http.StatusOK {
		assert.True(t, reached)
	} else {
		assert.False(t, reached)
	}
	return res
}

func TestRequirePermissionAllowsGranted(t *testing.T) {
	mw := Middleware{Service: NewService(seedStore())}

	res := performGated(t, mw.RequirePermission("perm_view_listings"), &Principal{ID: "u1"})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequirePermissionForbidsMissing(t *testing.T) {
	mw := Middleware{Service: NewService(seedStore())}

	res := performGated(t, mw.RequirePermission("perm_manage_billing"), &Principal{ID: "u1"})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequirePermissionUnauthenticated(t *testing.T) {
	mw := Middleware{Service: NewService(seedStore())}

	res := performGated(t, mw.RequirePermission("perm_view_listings"), nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequirePermissionFailsClosedOnStoreError(t *testing.T) {
	store := seedStore()
	store.failWith = assert.AnError
	mw := Middleware{Service: NewService(store)}

	res := performGated(t, mw.RequirePermission("perm_view_listings"), &Principal{ID: "u1"})
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestRequireAnyRole(t *testing.T) {
	mw := Middleware{Service: NewService(seedStore())}
	principal := &Principal{ID: "u1", Roles: []string{"role_seller_basic"}}

	res := performGated(t, mw.RequireAnyRole("role_admin", "role_seller_basic"), principal)
	assert.Equal(t, http.StatusOK, res.Code)

	res = performGated(t, mw.RequireAnyRole("role_admin"), principal)
	assert.Equal(t, http.StatusForbidden, res.Code)
}
