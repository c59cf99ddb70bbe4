package admin

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cloo-solutions/newsweave/internal/database"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply pending migrations from NEWSWEAVE_MIGRATIONS_PATH and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			return runMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger)
		},
	}
}

func runMigrations(databaseURL, sourceURL string, logger *zap.Logger) error {
	result, err := database.Migrate(databaseURL, sourceURL)
	if err != nil {
		return err
	}
	switch {
	case result.Empty:
		logger.Info("migrations: no migrations applied")
	case result.Changed:
		logger.Info("migrations: applied successfully", zap.Uint("version", result.Version))
	default:
		logger.Info("migrations: database is up to date", zap.Uint("version", result.Version))
	}
	return nil
}
