package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

// ShouldAutoRun is true only in dev with FARMLINK_AUTO_MIGRATE set.
func ShouldAutoRun(cfg *config.Config) bool {
	return cfg != nil && cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate
}

// MaybeRunDev brings a dev database up to date at boot. Other environments
// run the migrate command explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !ShouldAutoRun(cfg) {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	migrator, err := NewMigrator(sqlDB, DefaultDir)
	if err != nil {
		return err
	}
	done, err := migrator.Up(ctx)
	for _, m := range done {
		logg.Info(logg.WithFields(ctx, map[string]any{"version": m.Version, "path": m.Path}), "migration.applied")
	}
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "applied", len(done)), "migration.up_to_date")
	return nil
}
