package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/angelmondragon/farmlink-backend/internal/bootstrap"
	"github.com/angelmondragon/farmlink-backend/internal/cron"
	"github.com/angelmondragon/farmlink-backend/internal/ledger"
	"github.com/angelmondragon/farmlink-backend/internal/orders"
	"github.com/angelmondragon/farmlink-backend/internal/products"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
)

var once = pflag.Bool("once", false, "run a single cycle and exit")

func main() {
	pflag.Parse()
	bootstrap.Main("cron-worker", run)
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

	domainMetrics := metrics.NewDomainMetrics(prometheus.DefaultRegisterer)
	outboxRepo := outbox.NewRepository(dbClient.DB())
	emitter := outbox.NewService(outboxRepo, logg)

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, emitter, cfg.Wallet, domainMetrics)
	if err != nil {
		return err
	}
	orderService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		emitter,
		products.NewStock(products.NewRepository(dbClient.DB())),
		ledgerService,
		cfg.Orders,
		domainMetrics,
	)
	if err != nil {
		return err
	}

	jobs, err := buildJobs(
		func() (cron.Job, error) {
			return cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{Logger: logg, Orders: orderService})
		},
		func() (cron.Job, error) {
			return cron.NewWalletReconcileJob(cron.WalletReconcileJobParams{Logger: logg, Ledger: ledgerService})
		},
		func() (cron.Job, error) {
			return cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{Logger: logg, Repository: outboxRepo, Retention: cfg.Outbox.Retention})
		},
	)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	registry := cron.NewRegistry(jobs...)
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "cron-worker.started")
	if *once {
		return scheduler.RunOnce(ctx)
	}
	return scheduler.Run(ctx)
}

func buildJobs(builders ...func() (cron.Job, error)) ([]cron.Job, error) {
	jobs := make([]cron.Job, 0, len(builders))
	for _, build := range builders {
		job, err := build()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
