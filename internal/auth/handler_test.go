package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/motorlot/motorlot/internal/auth"
	"github.com/motorlot/motorlot/internal/shared"
	_ "github.com/motorlot/motorlot/testing"
)

type stubRepo struct {
	account *auth.Account
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	if s.account == nil {
		return nil, shared.ErrInvalidCredentials
	}
	return s.account, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	return nil
}

// commitWriter flushes the session before the first header write, the same
// ordering the application middleware uses: a cookie set after the response
// status goes out would be silently dropped.
type commitWriter struct {
	http.ResponseWriter
	sess          *shared.Session
	manager       *shared.SessionManager
	ctx           context.Context
	req           *http.Request
	headerWritten bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		_ = w.manager.Commit(w.ctx, w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func newRouter(t *testing.T, repo auth.Repository) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := auth.NewHandler(logger, auth.NewService(repo), sessionManager, csrfManager)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			ctx := shared.ContextWithSession(req.Context(), sess)
			wrapped := &commitWriter{
				ResponseWriter: w,
				sess:           sess,
				manager:        sessionManager,
				ctx:            ctx,
				req:            req.WithContext(ctx),
			}
			next.ServeHTTP(wrapped, req.WithContext(ctx))
		})
	})
	handler.MountRoutes(r)
	return r, sessionManager
}

func activeAccount(t *testing.T, password string) *auth.Account {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.Account{
		ID:           "u1",
		Email:        "dealer@test.local",
		Name:         "Dealer",
		PasswordHash: string(hashed),
		IsActive:     true,
	}
}

func TestLoginSuccess(t *testing.T) {
	router, sessionManager := newRouter(t, &stubRepo{account: activeAccount(t, "correct-password")})

	body := `{"email":"dealer@test.local","password":"correct-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var payload struct {
		UserID string `json:"user_id"`
		Email  string `json:"email"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.UserID != "u1" || payload.Email != "dealer@test.local" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	var sessionCookie *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == sessionManager.CookieName() {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatalf("expected session cookie to be set")
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{account: activeAccount(t, "correct-password")})

	body := `{"email":"dealer@test.local","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	account := activeAccount(t, "correct-password")
	account.IsActive = false
	router, _ := newRouter(t, &stubRepo{account: account})

	body := `{"email":"dealer@test.local","password":"correct-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	router, _ := newRouter(t, &stubRepo{})

	body := `{"email":"not-an-email","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	if res.Code != http.StatusUnprocessableEntity && res.Code != http.StatusBadRequest {
		t.Fatalf("expected validation failure, got %d", res.Code)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	router, sessionManager := newRouter(t, &stubRepo{account: activeAccount(t, "correct-password")})

	body := `{"email":"dealer@test.local","password":"correct-password"}`
	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRes := httptest.NewRecorder()
	router.ServeHTTP(loginRes, loginReq)

	var sessionCookie *http.Cookie
	for _, c := range loginRes.Result().Cookies() {
		if c.Name == sessionManager.CookieName() {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatalf("expected session cookie after login")
	}

	logoutReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutReq.AddCookie(sessionCookie)
	logoutRes := httptest.NewRecorder()
	router.ServeHTTP(logoutRes, logoutReq)

	if logoutRes.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", logoutRes.Code)
	}
}
