package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/farmlink-backend/api/routes"
	"github.com/angelmondragon/farmlink-backend/internal/auth"
	"github.com/angelmondragon/farmlink-backend/internal/bootstrap"
	"github.com/angelmondragon/farmlink-backend/internal/ledger"
	"github.com/angelmondragon/farmlink-backend/internal/orders"
	"github.com/angelmondragon/farmlink-backend/internal/products"
	"github.com/angelmondragon/farmlink-backend/internal/users"
	"github.com/angelmondragon/farmlink-backend/pkg/auth/reset"
	"github.com/angelmondragon/farmlink-backend/pkg/auth/session"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/security"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootstrap.Main("api", run)
}

func run(ctx context.Context, app *bootstrap.App) error {
	cfg, logg := app.Config, app.Logger

	dbClient, err := app.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := app.Redis(ctx)
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	// A nil registerer turns every collector into a no-op.
	var (
		registerer prometheus.Registerer
		gatherer   prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		registerer, gatherer = prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	}
	domainMetrics := metrics.NewDomainMetrics(registerer)

	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	resetCodes, err := reset.NewManager(redisClient)
	if err != nil {
		return err
	}
	resetNotifier, err := auth.NewOutboxNotifier(dbClient, emitter)
	if err != nil {
		return err
	}
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessions,
		Hasher:         security.NewHasher(cfg.Password),
		JWTConfig:      cfg.JWT,
		ResetCodes:     resetCodes,
		ResetNotifier:  resetNotifier,
	})
	if err != nil {
		return err
	}
	productRepo := products.NewRepository(dbClient.DB())
	productService, err := products.NewService(productRepo)
	if err != nil {
		return err
	}
	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, emitter, cfg.Wallet, domainMetrics)
	if err != nil {
		return err
	}
	orderService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		emitter,
		products.NewStock(productRepo),
		ledgerService,
		cfg.Orders,
		domainMetrics,
	)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              listenAddr(cfg.App.Port),
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Sessions:    sessions,
			Auth:        authService,
			Products:    productService,
			Orders:      orderService,
			Ledger:      ledgerService,
			HTTPMetrics: metrics.NewHTTPMetrics(registerer),
			Gatherer:    gatherer,
		}),
	}
	return serve(logg.WithField(ctx, "addr", server.Addr), app, server)
}

// listenAddr honours PORT, which hosting platforms set, over the config.
func listenAddr(configured string) string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + configured
}

func serve(ctx context.Context, app *bootstrap.App, server *http.Server) error {
	failed := make(chan error, 1)
	go func() {
		app.Logger.Info(ctx, "api.listening")
		failed <- server.ListenAndServe()
	}()

	select {
	case err := <-failed:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(drainCtx)
}
