package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/bootstrap"
	"github.com/angelmondragon/farmlink-backend/pkg/events"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/registry"
)

// deliveryClaimTTL outlives the longest retry schedule of a row.
const deliveryClaimTTL = 7 * 24 * time.Hour

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, app *bootstrap.App) error {
	dbClient, err := app.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := app.Redis(ctx)
	if err != nil {
		return err
	}
	sink, err := events.NewSink(ctx, app.Config, app.Logger)
	if err != nil {
		return fmt.Errorf("bootstrap event sink: %w", err)
	}
	app.OnClose("sink", sink)

	eventRegistry, err := registry.NewEventRegistry(events.Topic(app.Config.Events))
	if err != nil {
		return err
	}
	guard, err := idempotency.NewGuard(redisClient, deliveryClaimTTL)
	if err != nil {
		return err
	}

	repo := outbox.NewRepository(dbClient.DB())
	relay, err := NewRelay(RelayParams{
		Outbox:   app.Config.Outbox,
		Logger:   app.Logger,
		DB:       dbClient,
		Sink:     sink,
		Registry: eventRegistry,
		StoreFor: func(tx *gorm.DB) outboxStore { return repo.WithTx(tx) },
		Guard:    guard,
		Metrics:  metrics.NewDomainMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	app.Logger.Info(app.Logger.WithField(ctx, "sink", sink.Name()), "outbox-publisher.started")
	return relay.Run(ctx)
}
