package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/fastmart-backend/api/controllers"
	"github.com/angelmondragon/fastmart-backend/api/middleware"
	"github.com/angelmondragon/fastmart-backend/internal/auth"
	"github.com/angelmondragon/fastmart-backend/internal/cart"
	"github.com/angelmondragon/fastmart-backend/internal/catalog"
	"github.com/angelmondragon/fastmart-backend/pkg/config"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
	"github.com/angelmondragon/fastmart-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/fastmart-backend/pkg/redis"
)

// RedisStore is what the HTTP layer needs from redis. A nil store disables
// idempotent replay and auth throttling, and /health reports redis as disabled.
type RedisStore interface {
	controllers.Pinger
	pkgredis.IdempotencyStore
	middleware.RateLimiterStore
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger controllers.Pinger,
	redisClient RedisStore,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	authService auth.Service,
	registerService auth.RegisterService,
	catalogService catalog.Service,
	cartService cart.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.SecurityHeaders,
		middleware.CORS(cfg.App.FrontendURL),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Get("/", controllers.Root())
	r.Route("/health", func(r chi.Router) {
		r.Get("/", controllers.Health(cfg, logg,
			controllers.HealthCheck{Name: "database", Pinger: dbPinger},
			controllers.HealthCheck{Name: "redis", Pinger: redisClient},
		))
		r.Get("/live", controllers.HealthLive(cfg))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/token", controllers.AuthToken(authService, logg))
		r.With(middleware.Auth(cfg.JWT, logg)).Get("/me", controllers.AuthMe(authService, logg))
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(catalogService, logg))
		r.Get("/search", controllers.ProductsSearch(catalogService, logg))
		r.Get("/{id}", controllers.ProductGet(catalogService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(redisClient, logg))
			r.Post("/", controllers.ProductCreate(catalogService, logg))
			r.Put("/{id}", controllers.ProductUpdate(catalogService, logg))
			r.Delete("/{id}", controllers.ProductDelete(catalogService, logg))
		})
	})

	r.Route("/cart", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(redisClient, logg))
			r.Get("/", controllers.CartList(cartService, logg))
			r.Post("/", controllers.CartAdd(cartService, logg))
			r.Delete("/", controllers.CartClear(cartService, logg))
			r.Put("/{id}", controllers.CartUpdate(cartService, logg))
			r.Delete("/{id}", controllers.CartRemove(cartService, logg))
		})
	})

	return r
}
