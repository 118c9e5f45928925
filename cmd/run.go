package cmd

import (
	"context"
	"time"

	"github.com/nodeledger/rewards-tracker/internal/config"
	"github.com/nodeledger/rewards-tracker/internal/logger"
	"github.com/nodeledger/rewards-tracker/internal/tracer"
	"github.com/nodeledger/rewards-tracker/internal/version"
	"github.com/nodeledger/rewards-tracker/pkg/clients/beaconchain"
	"github.com/nodeledger/rewards-tracker/pkg/clients/coingecko"
	"github.com/nodeledger/rewards-tracker/pkg/clients/etherscan"
	"github.com/nodeledger/rewards-tracker/pkg/epochs"
	"github.com/nodeledger/rewards-tracker/pkg/exemption"
	"github.com/nodeledger/rewards-tracker/pkg/ingestion"
	"github.com/nodeledger/rewards-tracker/pkg/metrics"
	"github.com/nodeledger/rewards-tracker/pkg/pipeline"
	"github.com/nodeledger/rewards-tracker/pkg/postgres"
	"github.com/nodeledger/rewards-tracker/pkg/postgres/migrations"
	"github.com/nodeledger/rewards-tracker/pkg/priceIndex"
	"github.com/nodeledger/rewards-tracker/pkg/reconciliation"
	"github.com/nodeledger/rewards-tracker/pkg/shutdown"
	"github.com/nodeledger/rewards-tracker/pkg/storage/levelDbStore"
	"github.com/nodeledger/rewards-tracker/pkg/storage/postgresStore"
	"github.com/nodeledger/rewards-tracker/pkg/syncQueue"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the rewards tracker sync loop",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		if err := cfg.ValidateChain(); err != nil {
			l.Sugar().Fatalw("Invalid chain", zap.Error(err))
		}

		l.Sugar().Infow("rewards-tracker run",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
			zap.String("chain", cfg.Chain.String()),
		)

		tracer.StartTracer(cfg.StatsdConfig.Enabled, cfg.Chain)

		metricsClients, err := metrics.InitMetricsSinksFromConfig(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		sink, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, metricsClients)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
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

		remoteStore := postgresStore.NewPostgresStore(grm, l)

		localCache, err := levelDbStore.NewLevelDbStore(cfg.LocalCacheConfig.Path, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to open local cache", zap.Error(err))
		}
		defer localCache.Close()

		policyTable := exemption.DefaultPolicyTable()
		if cfg.ExemptionConfig.PolicyFile != "" {
			policyTable, err = exemption.LoadPolicyTable(cfg.ExemptionConfig.PolicyFile)
			if err != nil {
				l.Sugar().Fatalw("Failed to load exemption policy table", zap.Error(err))
			}
		}

		explorerClient := etherscan.NewClient(cfg.EtherscanConfig.BaseUrl, cfg.EtherscanConfig.ApiKeys, l)
		beaconClient := beaconchain.NewClient(cfg.BeaconConfig.BaseUrl, cfg.BeaconConfig.ApiKey, l)
		oracleClient := coingecko.NewClient(&coingecko.ClientConfig{
			BaseUrl:            cfg.PriceOracleConfig.BaseUrl,
			ApiKey:             cfg.PriceOracleConfig.ApiKey,
			CoinId:             cfg.PriceOracleConfig.CoinId,
			MinRequestInterval: time.Duration(cfg.PriceOracleConfig.MinRequestIntervalMs) * time.Millisecond,
			MaxRetries:         cfg.PriceOracleConfig.MaxRetries,
		}, l)

		adapter := ingestion.NewAdapter(explorerClient, l)
		engine := reconciliation.NewEngine(localCache, remoteStore, l)
		backfiller := priceIndex.NewBackfiller(oracleClient, remoteStore, sink, l)
		epochCalculator := epochs.NewCalculator(cfg.BeaconGenesisTimestamp())

		p := pipeline.NewPipeline(
			adapter,
			beaconClient,
			engine,
			backfiller,
			localCache,
			remoteStore,
			epochCalculator,
			policyTable,
			cfg,
			sink,
			l,
		)

		sq := syncQueue.NewSyncQueue(l)

		ctx, cancel := context.WithCancel(context.Background())

		go p.ConsumeQueue(ctx, sq)

		interval := time.Duration(cfg.SyncConfig.IntervalSec) * time.Second
		if interval <= 0 {
			interval = 15 * time.Minute
		}

		done := make(chan bool)
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			if err := p.RunSyncCycle(ctx); err != nil {
				l.Sugar().Errorw("Sync cycle failed", zap.Error(err))
			}
			for {
				select {
				case <-ticker.C:
					if err := p.RunSyncCycle(ctx); err != nil {
						l.Sugar().Errorw("Sync cycle failed", zap.Error(err))
					}
				case <-ctx.Done():
					done <- true
					return
				}
			}
		}()

		l.Sugar().Info("Started rewards tracker")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			sq.Close()
			cancel()
			sink.Flush()
		}, time.Second*5, l)
	},
}
