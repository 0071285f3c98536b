package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	"github.com/angelmondragon/eventdesk-backend/pkg/db"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
)

// MaybeRunDev brings a dev database up to date at boot when EVENTDESK_AUTO_MIGRATE is set.
// Other environments migrate through cmd/migrate.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	runner, err := NewRunner(sqlDB, EmbeddedFS())
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	applied, err := runner.Up(ctx)
	for _, step := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"migration_version": step.Version,
			"migration_path":    step.Path,
		}), "migration applied")
	}
	if err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	logg.Info(logg.WithField(ctx, "applied", len(applied)), "schema up to date")
	return nil
}
