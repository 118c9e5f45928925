package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/nodeledger/rewards-tracker/internal/config"
	"github.com/nodeledger/rewards-tracker/internal/logger"
	"github.com/nodeledger/rewards-tracker/pkg/postgres"
	"github.com/nodeledger/rewards-tracker/pkg/postgres/migrations"
	"github.com/nodeledger/rewards-tracker/pkg/reconciliation"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/nodeledger/rewards-tracker/pkg/storage/levelDbStore"
	"github.com/nodeledger/rewards-tracker/pkg/storage/postgresStore"
	"github.com/nodeledger/rewards-tracker/pkg/trackerRegistry"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trackerCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Manage tracked addresses",
}

var trackerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new tracked address",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, cleanup, err := buildTrackerRegistry()
		if err != nil {
			return err
		}
		defer cleanup()

		tracker, err := trackerFromFlags(cmd)
		if err != nil {
			return err
		}

		created, err := registry.CreateTracker(tracker)
		if err != nil {
			return fmt.Errorf("failed to create tracker: %w", err)
		}
		return printTrackers([]*rewardTypes.Tracker{created})
	},
}

var trackerUpdateCmd = &cobra.Command{
	Use:   "update [tracker-id]",
	Short: "Update a tracked address. Changing the address purges its ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, cleanup, err := buildTrackerRegistry()
		if err != nil {
			return err
		}
		defer cleanup()

		tracker, err := trackerFromFlags(cmd)
		if err != nil {
			return err
		}
		tracker.Id = args[0]

		updated, err := registry.UpdateTracker(tracker)
		if err != nil {
			return fmt.Errorf("failed to update tracker: %w", err)
		}
		return printTrackers([]*rewardTypes.Tracker{updated})
	},
}

var trackerRemoveCmd = &cobra.Command{
	Use:   "remove [tracker-id]",
	Short: "Delete a tracked address and its ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, cleanup, err := buildTrackerRegistry()
		if err != nil {
			return err
		}
		defer cleanup()

		if err := registry.DeleteTracker(args[0]); err != nil {
			return fmt.Errorf("failed to delete tracker: %w", err)
		}
		fmt.Printf("Deleted tracker '%s'\n", args[0])
		return nil
	},
}

var trackerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, cleanup, err := buildTrackerRegistry()
		if err != nil {
			return err
		}
		defer cleanup()

		trackers, err := registry.ListTrackers()
		if err != nil {
			return fmt.Errorf("failed to list trackers: %w", err)
		}
		return printTrackers(trackers)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{trackerAddCmd, trackerUpdateCmd} {
		cmd.Flags().String("withdrawal-address", "", "Execution-layer address receiving rewards")
		cmd.Flags().String("fee-recipient-address", "", "Optional separate fee recipient address")
		cmd.Flags().String("validator-pubkey", "", "Optional consensus validator public key")
		cmd.Flags().String("country", "", "ISO country code for the exemption policy")
		cmd.Flags().String("currency", "eur", "Fiat currency for valuation")
		cmd.Flags().String("tax-rate", "0", "Income tax rate in percent")
	}
	trackerCmd.AddCommand(trackerAddCmd, trackerUpdateCmd, trackerRemoveCmd, trackerListCmd)
}

func trackerFromFlags(cmd *cobra.Command) (*rewardTypes.Tracker, error) {
	withdrawalAddress, _ := cmd.Flags().GetString("withdrawal-address")
	feeRecipientAddress, _ := cmd.Flags().GetString("fee-recipient-address")
	validatorPubkey, _ := cmd.Flags().GetString("validator-pubkey")
	country, _ := cmd.Flags().GetString("country")
	currency, _ := cmd.Flags().GetString("currency")
	taxRate, _ := cmd.Flags().GetString("tax-rate")

	taxRatePercent, err := decimal.NewFromString(taxRate)
	if err != nil {
		return nil, fmt.Errorf("invalid tax rate '%s': %w", taxRate, err)
	}

	return &rewardTypes.Tracker{
		WithdrawalAddress:   withdrawalAddress,
		FeeRecipientAddress: feeRecipientAddress,
		ValidatorPubkey:     validatorPubkey,
		Country:             country,
		Currency:            currency,
		TaxRatePercent:      taxRatePercent,
	}, nil
}

func buildTrackerRegistry() (*trackerRegistry.TrackerRegistry, func(), error) {
	cfg := config.NewConfig()

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
	pg, err := postgres.NewPostgres(pgConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup postgres connection: %w", err)
	}

	grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create gorm instance: %w", err)
	}

	migrator := migrations.NewMigrator(pg.Db, grm, l)
	if err := migrator.MigrateAll(); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	remoteStore := postgresStore.NewPostgresStore(grm, l)

	localCache, err := levelDbStore.NewLevelDbStore(cfg.LocalCacheConfig.Path, l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	cleanup := func() {
		if err := localCache.Close(); err != nil {
			l.Sugar().Errorw("Failed to close local cache", zap.Error(err))
		}
	}

	engine := reconciliation.NewEngine(localCache, remoteStore, l)
	return trackerRegistry.NewTrackerRegistry(remoteStore, engine, l), cleanup, nil
}

func printTrackers(trackers []*rewardTypes.Tracker) error {
	rendered, err := json.MarshalIndent(trackers, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(rendered))
	return nil
}
