package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/buildmart-backend/pkg/config"
	"github.com/angelmondragon/buildmart-backend/pkg/db"
	"github.com/angelmondragon/buildmart-backend/pkg/db/models"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

// MaybeRunDev prepares the documents table when the SQL document store is in use.
// SQLite databases are always brought up to date via AutoMigrate because the
// goose migrations target postgres collation rules. Postgres migrations run
// automatically only in dev with the auto-migrate flag set.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || cfg.DocStore.Backend != config.DocStoreBackendSQL {
		return nil
	}

	if cfg.DB.IsSQLite() {
		logg.Info(ctx, "ensuring sqlite documents schema")
		if err := client.DB().WithContext(ctx).AutoMigrate(&models.Document{}); err != nil {
			return fmt.Errorf("auto-migrating documents: %w", err)
		}
		return nil
	}

	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDialect, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
