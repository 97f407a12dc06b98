package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/ecoms/ecoms_account/internal/auth"
	"github.com/ecoms/ecoms_account/internal/config"
	"github.com/ecoms/ecoms_account/internal/identity"
	"github.com/ecoms/ecoms_account/internal/logging"
	"github.com/ecoms/ecoms_account/internal/metrics"
	"github.com/ecoms/ecoms_account/internal/middleware"
	"github.com/ecoms/ecoms_account/internal/notification"
	"github.com/ecoms/ecoms_account/internal/password"
	"github.com/ecoms/ecoms_account/internal/session"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development, in which case in-memory stores are used.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    redis.UniversalClient
	Logger   *slog.Logger
	Registry *prometheus.Registry
	// Clock overrides the session clock. Nil means time.Now.
	Clock func() time.Time
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	if d.DB == nil && !d.Cfg.IsDev() {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	identityRepo := newIdentityRepository(d)
	sessions, err := newSessionStore(d)
	if err != nil {
		return err
	}
	cookies, err := session.NewCookiePolicy(
		d.Cfg.Session.CookieName,
		d.Cfg.Session.CookieDomain,
		d.Cfg.Session.CookieSecure,
		d.Cfg.Session.CookieSameSite,
		d.Cfg.Session.TTL,
	)
	if err != nil {
		return fmt.Errorf("session cookie: %w", err)
	}
	hasher, err := password.NewBcrypt(d.Cfg.BcryptCost)
	if err != nil {
		return err
	}

	authMetrics := metrics.NewAuth(d.Registry)
	notifier := notification.NewLoggerNotifier(d.Logger)

	identitySvc := identity.NewService(identityRepo, hasher, notifier)
	codec := auth.NewCodec(identityRepo)
	strategy := auth.NewLocalStrategy(identityRepo, hasher, d.Logger)
	authSvc := auth.NewService(strategy, codec, sessions, authMetrics, d.Logger)
	guard := auth.NewGuard(sessions, codec, authMetrics, d.Logger)

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Registry)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	var idempotency fiber.Handler
	if d.Cache != nil {
		idempotency = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterAuthRoutes(api, auth.NewHandler(authSvc, cookies))

	// Protected routes
	protected := auth.RequireSession(guard, cookies)
	RegisterIdentityRoutes(api, identity.NewHandler(identitySvc), idempotency, protected)

	return nil
}

func newIdentityRepository(d Deps) identity.Repository {
	if d.DB != nil {
		return identity.NewPostgresRepository(d.DB)
	}
	return identity.NewMemoryRepository()
}

func newSessionStore(d Deps) (session.Store, error) {
	policy := session.Policy{TTL: d.Cfg.Session.TTL, Sliding: d.Cfg.Session.Sliding}
	var opts []session.Option
	if d.Clock != nil {
		opts = append(opts, session.WithClock(d.Clock))
	}

	backend := d.Cfg.Session.Backend
	var pool session.Pool
	if d.DB != nil {
		pool = d.DB
	} else if backend == session.BackendPostgres || backend == "" {
		backend = session.BackendMemory
	}
	return session.Open(backend, pool, d.Cache, policy, opts...)
}
