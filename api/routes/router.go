package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/farmlink-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/farmlink-backend/api/controllers/orders"
	walletcontrollers "github.com/angelmondragon/farmlink-backend/api/controllers/wallet"
	"github.com/angelmondragon/farmlink-backend/api/middleware"
	"github.com/angelmondragon/farmlink-backend/internal/auth"
	"github.com/angelmondragon/farmlink-backend/internal/ledger"
	"github.com/angelmondragon/farmlink-backend/internal/orders"
	"github.com/angelmondragon/farmlink-backend/internal/products"
	"github.com/angelmondragon/farmlink-backend/pkg/auth/session"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/farmlink-backend/pkg/redis"
)

// RedisStore is the subset of the redis client the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

// Dependencies carries everything NewRouter wires into handlers.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    RedisStore
	Sessions session.AccessSessionChecker

	Auth     auth.Service
	Products products.Service
	Orders   orders.Service
	Ledger   ledger.Service

	// Metrics and Gatherer are optional; /metrics is mounted when Gatherer is set.
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}

	loginPolicy := middleware.RateLimitPolicy{
		Name:       "login",
		Window:     cfg.AuthRateLimit.LoginWindow,
		IPLimit:    cfg.AuthRateLimit.LoginIPLimit,
		EmailLimit: cfg.AuthRateLimit.LoginEmailLimit,
	}
	registerPolicy := middleware.RateLimitPolicy{
		Name:       "register",
		Window:     cfg.AuthRateLimit.RegisterWindow,
		IPLimit:    cfg.AuthRateLimit.RegisterIPLimit,
		EmailLimit: cfg.AuthRateLimit.RegisterEmailLimit,
	}
	resetPolicy := middleware.RateLimitPolicy{
		Name:       "password_reset",
		Window:     cfg.AuthRateLimit.ResetWindow,
		IPLimit:    cfg.AuthRateLimit.ResetIPLimit,
		EmailLimit: cfg.AuthRateLimit.ResetEmailLimit,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	authenticate := middleware.Auth(cfg.JWT, deps.Sessions, logg)
	farmer := middleware.RequireRole(logg, enums.UserRoleFarmer)
	customer := middleware.RequireRole(logg, enums.UserRoleCustomer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(resetPolicy, deps.Redis, logg)).Post("/forgot-password", controllers.AuthForgotPassword(deps.Auth, logg))
			r.With(middleware.AuthRateLimit(resetPolicy, deps.Redis, logg)).Post("/reset-password", controllers.AuthResetPassword(deps.Auth, logg))
			r.With(authenticate).Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Idempotency(deps.Redis, logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ListCatalog(deps.Products, logg))
				r.With(farmer).Get("/farmer/my-products", controllers.ListMyProducts(deps.Products, logg))
				r.With(farmer).Post("/", controllers.CreateProduct(deps.Products, logg))
				r.Get("/{id}", controllers.GetProduct(deps.Products, logg))
				r.With(farmer).Put("/{id}", controllers.UpdateProduct(deps.Products, logg))
				r.With(farmer).Delete("/{id}", controllers.DeleteProduct(deps.Products, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(customer).Post("/", ordercontrollers.Create(deps.Orders, logg))
				r.With(customer).Get("/buyer", ordercontrollers.ListBuyer(deps.Orders, logg))
				r.With(farmer).Get("/farmer", ordercontrollers.ListFarmer(deps.Orders, logg))
				r.Get("/{id}", ordercontrollers.Detail(deps.Orders, logg))
				r.Group(func(r chi.Router) {
					r.Use(farmer)
					r.Put("/{id}/accept", ordercontrollers.Accept(deps.Orders, logg))
					r.Put("/{id}/reject", ordercontrollers.Reject(deps.Orders, logg))
					r.Put("/{id}/ship", ordercontrollers.Ship(deps.Orders, logg))
					r.Put("/{id}/deliver", ordercontrollers.Deliver(deps.Orders, logg))
				})
			})

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/balance", walletcontrollers.Balance(deps.Ledger, logg))
				r.Get("/transactions", walletcontrollers.Transactions(deps.Ledger, logg))
				r.Get("/summary", walletcontrollers.Summary(deps.Ledger, logg))
				r.Post("/add-money", walletcontrollers.AddMoney(deps.Ledger, logg))
			})
		})
	})

	return r
}
