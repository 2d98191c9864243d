package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/djarekg/tampa-taffy/internal/store"
	"github.com/djarekg/tampa-taffy/internal/telemetry"
	"github.com/djarekg/tampa-taffy/pkg/api"
)

type fakeStore struct {
	users   []api.User
	hash    string
	role    api.Role
	listErr error
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("taffy"), bcrypt.MinCost)
	require.NoError(t, err)
	return &fakeStore{
		users: []api.User{
			{ID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@tampa.test", IsActive: true},
			{ID: "u2", FirstName: "Alan", LastName: "Turing", Email: "alan@tampa.test", IsActive: true},
		},
		hash: string(hash),
		role: api.RoleAdmin,
	}
}

func (f *fakeStore) Ping(context.Context) error { return nil }

func (f *fakeStore) ListUsers(context.Context) ([]api.User, error) {
	return f.users, f.listErr
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*api.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) UserByEmail(_ context.Context, email string) (*api.User, error) {
	for i := range f.users {
		if strings.EqualFold(f.users[i].Email, email) {
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) CredentialByEmail(ctx context.Context, email string) (*store.Credential, error) {
	u, err := f.UserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &store.Credential{UserID: u.ID, PasswordHash: f.hash, Role: f.role}, nil
}

func (f *fakeStore) SearchUsers(_ context.Context, q string, limit int) ([]api.SearchResult, error) {
	out := []api.SearchResult{}
	for _, u := range f.users {
		if strings.Contains(strings.ToLower(u.FullName()), strings.ToLower(q)) {
			out = append(out, api.SearchResult{ID: u.ID, Kind: "user", Title: u.FullName()})
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) SetActive(ctx context.Context, id string, active bool) (*api.User, error) {
	for i := range f.users {
		if f.users[i].ID == id {
			f.users[i].IsActive = active
			u := f.users[i]
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg *Config, opts ...Option) (*Server, *fakeStore) {
	t.Helper()
	st := newFakeStore(t)
	if cfg == nil {
		cfg = DefaultConfig()
		cfg.CORSOrigin = "http://app.test"
	}
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(cfg, st, opts...), st
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestUsersRoutes(t *testing.T) {
	s, _ := newTestServer(t, nil)

	t.Run("list", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/users", "")
		require.Equal(t, http.StatusOK, rec.Code)
		users := decode[[]api.User](t, rec)
		assert.Len(t, users, 2)
		assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("get", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/users/u2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Turing", decode[api.User](t, rec).LastName)
	})

	t.Run("missing", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/users/zz", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		body := decode[errorBody](t, rec)
		assert.Equal(t, "User not found", body.Error)
		assert.Equal(t, 404, body.Status)
		assert.Equal(t, map[string]any{"id": "zz"}, body.Data)
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/nope", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Not found", decode[errorBody](t, rec).Error)
	})
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodOptions, "/users", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, corsMethods, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, corsHeaders, rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestInternalErrorsHiddenInProduction(t *testing.T) {
	for _, prod := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Production = prod
		s, st := newTestServer(t, cfg)
		st.listErr = errors.New("database is locked")

		rec := do(t, s, http.MethodGet, "/users", "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		msg := decode[errorBody](t, rec).Error
		if prod {
			assert.Equal(t, "Internal Server Error", msg)
		} else {
			assert.Equal(t, "database is locked", msg)
		}
	}
}

func TestSignIn(t *testing.T) {
	s, _ := newTestServer(t, nil)

	t.Run("valid", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/auth/signin", `{"email":"ada@tampa.test","password":"taffy"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[api.SignInResult](t, rec)
		assert.True(t, res.Success)
		assert.Equal(t, "u1", res.UserID)
		assert.Equal(t, api.RoleAdmin, res.Role)

		claims, err := s.Tokens().Verify(res.Token)
		require.NoError(t, err)
		assert.Equal(t, "ada@tampa.test", claims.Username)
		assert.Equal(t, "u1", claims.Subject)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/auth/signin", `{"email":"ada@tampa.test","password":"nope"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[api.SignInResult](t, rec)
		assert.False(t, res.Success)
		assert.Empty(t, res.Token)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/auth/signin", `{"email":"x@tampa.test","password":"taffy"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/auth/signin", `{"email":"ada@tampa.test"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Email and password are required", decode[errorBody](t, rec).Error)
	})

	t.Run("bad json", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/auth/signin", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthenticated(t *testing.T) {
	s, _ := newTestServer(t, nil)
	tok, err := s.Tokens().Issue("u1", "ada@tampa.test", api.RoleUser)
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/auth/authenticated", "", "Authorization", "Bearer "+tok)
	assert.Equal(t, "true", strings.TrimSpace(rec.Body.String()))

	rec = do(t, s, http.MethodGet, "/auth/authenticated", "", "Authorization", "Bearer garbage")
	assert.Equal(t, "false", strings.TrimSpace(rec.Body.String()))

	rec = do(t, s, http.MethodGet, "/auth/authenticated", "")
	assert.Equal(t, "false", strings.TrimSpace(rec.Body.String()))

	rec = do(t, s, http.MethodPost, "/auth/signout", "")
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestExpiredToken(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := s.tokens.Issue("u1", "ada@tampa.test", api.RoleUser)
	require.NoError(t, err)
	s.tokens.now = time.Now

	rec := do(t, s, http.MethodGet, "/auth/users/ada@tampa.test", "", "Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token expired", decode[errorBody](t, rec).Error)
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	other := NewTokens([]byte("other"), time.Hour)
	tok, err := other.Issue("u1", "ada", api.RoleUser)
	require.NoError(t, err)

	_, err = NewTokens([]byte("mine"), time.Hour).Verify(tok)
	assert.Error(t, err)
}

func TestProtectedRoutes(t *testing.T) {
	s, st := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/users/u1/active", `{"isActive":false}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := s.Tokens().Issue("u1", "ada@tampa.test", api.RoleAdmin)
	require.NoError(t, err)
	auth := []string{"Authorization", "Bearer " + tok}

	rec = do(t, s, http.MethodPost, "/users/u1/active", `{"isActive":false}`, auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[api.User](t, rec).IsActive)
	assert.False(t, st.users[0].IsActive)

	rec = do(t, s, http.MethodPost, "/users/u1/active", `{}`, auth...)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/auth/users/ALAN@tampa.test", "", auth...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u2", decode[api.User](t, rec).ID)
}

func TestSearchRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SearchRate = 0.001
	cfg.SearchBurst = 2
	s, _ := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		rec := do(t, s, http.MethodGet, "/search/ada", "")
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[[]api.SearchResult](t, rec)
		require.Len(t, res, 1)
		assert.Equal(t, "Ada Lovelace", res[0].Title)
	}

	rec := do(t, s, http.MethodGet, "/search/ada", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/search/ada", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchLimitValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/search/a?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/search/a?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.SearchResult](t, rec), 1)
}

func TestRateLimiterSweep(t *testing.T) {
	rl := newRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.allow("a")
	now = now.Add(time.Hour)
	rl.allow("b")

	assert.Equal(t, 1, rl.sweep(time.Minute))
	assert.Len(t, rl.limiters, 1)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel := telemetry.New(telemetry.WithRegistry(reg))
	s, _ := newTestServer(t, nil, WithTelemetry(tel, reg))

	do(t, s, http.MethodGet, "/users", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `tampa_http_requests_total{method="GET",route="/users`)
	assert.Contains(t, body, "tampa_http_request_duration_seconds")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestConfigFromDefaults(t *testing.T) {
	s := New(nil, newFakeStore(t), WithLogger(quietLogger()))
	assert.Equal(t, ":4000", s.config.Address)
	assert.Equal(t, time.Hour, s.config.TokenTTL)
}
