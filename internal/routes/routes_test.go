package routes_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoms/ecoms_account/internal/config"
	"github.com/ecoms/ecoms_account/internal/logging"
	"github.com/ecoms/ecoms_account/internal/routes"
	"github.com/ecoms/ecoms_account/internal/server"
	"github.com/ecoms/ecoms_account/internal/session"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() config.Config {
	return config.Config{
		AppName:        "ecoms-account-test",
		AppEnv:         "test",
		BcryptCost:     10,
		IdempotencyTTL: time.Minute,
		DBMaxConns:     1,
		Session: config.SessionConfig{
			Backend:        config.SessionBackendMemory,
			TTL:            24 * time.Hour,
			CookieSecure:   true,
			CookieSameSite: "lax",
		},
	}
}

func newApp(t *testing.T, cfg config.Config, cache redis.UniversalClient) (*fiber.App, *clock) {
	t.Helper()
	clk := &clock{now: time.Now().UTC()}
	logger := logging.Discard()
	app := server.NewApp(cfg.AppName, logger)
	require.NoError(t, routes.Setup(app, routes.Deps{Cfg: cfg, Cache: cache, Logger: logger, Clock: clk.Now}))
	return app, clk
}

type response struct {
	status  int
	body    map[string]any
	raw     string
	header  http.Header
	cookies []*http.Cookie
}

func do(t *testing.T, app *fiber.App, method, path, body string, cookie *http.Cookie, headers ...string) response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode, raw: string(raw), header: resp.Header, cookies: resp.Cookies()}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func sessionCookie(t *testing.T, r response) *http.Cookie {
	t.Helper()
	for _, c := range r.cookies {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", session.DefaultCookieName)
	return nil
}

const signUpBody = `{"email":"a@x.io","password":"p1","first_name":"Ada","last_name":"Lovelace","phone_number":"+44 20 7946 0000"}`

func TestAccountLifecycle(t *testing.T) {
	app, _ := newApp(t, testConfig(), nil)

	r := do(t, app, fiber.MethodPost, "/api/v1/sign-up", signUpBody, nil)
	require.Equal(t, fiber.StatusCreated, r.status, r.raw)
	assert.Equal(t, "Account successfully created", r.body["message"])

	r = do(t, app, fiber.MethodPost, "/api/v1/sign-up", strings.Replace(signUpBody, "a@x.io", "A@X.io", 1), nil)
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "email_taken", r.body["reason"])

	wrong := do(t, app, fiber.MethodPost, "/api/v1/login", `{"email":"a@x.io","password":"p2"}`, nil)
	assert.Equal(t, fiber.StatusUnauthorized, wrong.status)
	assert.Equal(t, "invalid_credentials", wrong.body["reason"])
	assert.Empty(t, wrong.cookies)

	unknown := do(t, app, fiber.MethodPost, "/api/v1/login", `{"email":"ghost@x.io","password":"p2"}`, nil)
	assert.Equal(t, wrong.status, unknown.status)
	assert.Equal(t, wrong.raw, unknown.raw, "unknown email and wrong password must be indistinguishable")

	login := do(t, app, fiber.MethodPost, "/api/v1/login", `{"email":"a@x.io","password":"p1"}`, nil)
	require.Equal(t, fiber.StatusOK, login.status, login.raw)
	assert.NotContains(t, login.raw, "password")
	cookie := sessionCookie(t, login)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	me := do(t, app, fiber.MethodGet, "/api/v1/users/my-account", "", cookie)
	require.Equal(t, fiber.StatusOK, me.status, me.raw)
	ident, ok := me.body["identity"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a@x.io", ident["email"])
	assert.NotContains(t, me.raw, "password_hash")
	assert.NotContains(t, me.raw, "$2a$")

	anon := do(t, app, fiber.MethodGet, "/api/v1/users/my-account", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, anon.status)
	assert.Equal(t, "unauthorized", anon.body["reason"])

	upd := do(t, app, fiber.MethodPut, "/api/v1/users/my-account", `{"first_name":"Augusta"}`, cookie)
	require.Equal(t, fiber.StatusOK, upd.status, upd.raw)
	assert.Equal(t, "Augusta", upd.body["identity"].(map[string]any)["first_name"])

	out := do(t, app, fiber.MethodPost, "/api/v1/logout", "", cookie)
	assert.Equal(t, fiber.StatusNoContent, out.status)
	cleared := sessionCookie(t, out)
	assert.Empty(t, cleared.Value)

	after := do(t, app, fiber.MethodGet, "/api/v1/users/my-account", "", cookie)
	assert.Equal(t, fiber.StatusUnauthorized, after.status)
}

func TestPasswordChangeThenLogin(t *testing.T) {
	app, _ := newApp(t, testConfig(), nil)

	require.Equal(t, fiber.StatusCreated, do(t, app, fiber.MethodPost, "/api/v1/sign-up", signUpBody, nil).status)
	login := do(t, app, fiber.MethodPost, "/api/v1/login", `{"email":"a@x.io","password":"p1"}`, nil)
	cookie := sessionCookie(t, login)

	upd := do(t, app, fiber.MethodPut, "/api/v1/users/my-account", `{"password":"p1-new"}`, cookie)
	require.Equal(t, fiber.StatusOK, upd.status, upd.raw)

	assert.Equal(t, fiber.StatusUnauthorized, do(t, app, fiber.MethodPost, "/api/v1/login", `{"email":"a@x.io","password":"p1"}`, nil).status)
	assert.Equal(t, fiber.StatusOK, do(t, app, fiber.MethodPost, "/api/v1/login", `{"email":"a@x.io","password":"p1-new"}`, nil).status)
}

func TestSessionExpires(t *testing.T) {
	app, clk := newApp(t, testConfig(), nil)

	require.Equal(t, fiber.StatusCreated, do(t, app, fiber.MethodPost, "/api/v1/sign-up", signUpBody, nil).status)
	cookie := sessionCookie(t, do(t, app, fiber.MethodPost, "/api/v1/login", `{"email":"a@x.io","password":"p1"}`, nil))

	clk.Advance(23 * time.Hour)
	assert.Equal(t, fiber.StatusOK, do(t, app, fiber.MethodGet, "/api/v1/users/my-account", "", cookie).status)

	clk.Advance(time.Hour)
	r := do(t, app, fiber.MethodGet, "/api/v1/users/my-account", "", cookie)
	assert.Equal(t, fiber.StatusUnauthorized, r.status)
	assert.Empty(t, sessionCookie(t, r).Value, "a rejected cookie is cleared")
}

func TestValidationErrors(t *testing.T) {
	app, _ := newApp(t, testConfig(), nil)

	r := do(t, app, fiber.MethodPost, "/api/v1/sign-up", `{"email":"not-an-email","password":"p1"}`, nil)
	assert.Equal(t, fiber.StatusBadRequest, r.status)
	assert.Equal(t, "validation_error", r.body["reason"])
	assert.NotEmpty(t, r.body["message"])

	r = do(t, app, fiber.MethodPost, "/api/v1/sign-up", `{"email":`, nil)
	assert.Equal(t, fiber.StatusBadRequest, r.status)

	r = do(t, app, fiber.MethodPost, "/api/v1/login", `{"email":"","password":""}`, nil)
	assert.Equal(t, fiber.StatusUnauthorized, r.status)
	assert.Equal(t, "invalid_credentials", r.body["reason"])
}

func TestHealthMetricsAndHeaders(t *testing.T) {
	app, _ := newApp(t, testConfig(), nil)

	do(t, app, fiber.MethodPost, "/api/v1/login", `{"email":"ghost@x.io","password":"p1"}`, nil)

	health := do(t, app, fiber.MethodGet, "/healthz", "", nil)
	assert.Equal(t, fiber.StatusOK, health.status)
	assert.Equal(t, "nosniff", health.header.Get(fiber.HeaderXContentTypeOptions))
	assert.NotEmpty(t, health.header.Get("X-Request-ID"))

	metrics := do(t, app, fiber.MethodGet, "/metrics", "", nil)
	assert.Equal(t, fiber.StatusOK, metrics.status)
	assert.Contains(t, metrics.raw, `ecoms_login_attempts_total{outcome="rejected"} 1`)
}

func TestSignUpIdempotencyWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	cfg := testConfig()
	cfg.Session.Backend = config.SessionBackendRedis
	app, _ := newApp(t, cfg, cache)

	first := do(t, app, fiber.MethodPost, "/api/v1/sign-up", signUpBody, nil, "Idempotency-Key", "signup-1")
	require.Equal(t, fiber.StatusCreated, first.status, first.raw)
	replay := do(t, app, fiber.MethodPost, "/api/v1/sign-up", signUpBody, nil, "Idempotency-Key", "signup-1")
	assert.Equal(t, fiber.StatusCreated, replay.status)
	assert.Equal(t, "true", replay.header.Get("Idempotent-Replayed"))

	fresh := do(t, app, fiber.MethodPost, "/api/v1/sign-up", signUpBody, nil, "Idempotency-Key", "signup-2")
	assert.Equal(t, "email_taken", fresh.body["reason"])

	login := do(t, app, fiber.MethodPost, "/api/v1/login", `{"email":"a@x.io","password":"p1"}`, nil)
	require.Equal(t, fiber.StatusOK, login.status)
	cookie := sessionCookie(t, login)
	assert.Equal(t, fiber.StatusOK, do(t, app, fiber.MethodGet, "/api/v1/users/my-account", "", cookie).status)
}

func TestSetupRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"
	app := server.NewApp(cfg.AppName, nil)
	assert.Error(t, routes.Setup(app, routes.Deps{Cfg: cfg}))
}
