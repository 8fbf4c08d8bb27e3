package migrate

import (
	"context"
	"fmt"

	"github.com/freshcut/chickenshop/pkg/config"
	"github.com/freshcut/chickenshop/pkg/db"
	"github.com/freshcut/chickenshop/pkg/db/models"
	"github.com/freshcut/chickenshop/pkg/logger"
)

// MaybeRunDev installs the row-change triggers automatically when the app is
// running in dev mode and the feature flag is enabled. A sqlite database gets
// the model tables instead, since it has no triggers to install.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if client.IsSQLite() {
		logg.Info(ctx, "creating sqlite tables (dev auto-run)")
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite auto-migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "installing row change triggers (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up", logg); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "row change triggers installed")
	return nil
}
