package cmd

import (
	"github.com/nodeledger/rewards-tracker/internal/config"
	"github.com/nodeledger/rewards-tracker/internal/logger"
	"github.com/nodeledger/rewards-tracker/pkg/postgres"
	"github.com/nodeledger/rewards-tracker/pkg/postgres/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Create the database if needed and run all migrations",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
		pgConfig.CreateDbIfNotExists = true

		pg, err := postgres.NewPostgres(pgConfig)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup postgres connection", zap.Error(err))
		}

		grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			l.Sugar().Fatalw("Failed to create gorm instance", zap.Error(err))
		}

		migrator := migrations.NewMigrator(pg.Db, grm, l)
		if err := migrator.MigrateAll(); err != nil {
			l.Sugar().Fatalw("Failed to migrate database", zap.Error(err))
		}

		l.Sugar().Infow("Database is up to date")
	},
}
