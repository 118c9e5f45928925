package cmd

import (
	"os"
	"strings"

	"github.com/nodeledger/rewards-tracker/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "rewards-tracker",
	Short: "Tracks staking rewards per address and builds the valued, tax-aware ledger",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool("debug", false, `"true" or "false"`)
	rootCmd.PersistentFlags().StringP("chain", "c", "mainnet", "The chain to use (mainnet, holesky)")

	rootCmd.PersistentFlags().String("etherscan.base-url", "https://api.etherscan.io/api", `Etherscan-compatible explorer API url`)
	rootCmd.PersistentFlags().StringSlice("etherscan.api-keys", []string{}, `Explorer API keys, rotated round-robin`)

	rootCmd.PersistentFlags().String("beacon.base-url", "https://beaconcha.in/api/v1", `Beacon chain explorer API url`)
	rootCmd.PersistentFlags().String("beacon.api-key", "", `Beacon chain explorer API key`)

	rootCmd.PersistentFlags().String("price-oracle.base-url", "https://api.coingecko.com/api/v3", `Price oracle API url`)
	rootCmd.PersistentFlags().String("price-oracle.api-key", "", `Price oracle API key`)
	rootCmd.PersistentFlags().String("price-oracle.coin-id", "ethereum", `Oracle identifier of the reward asset`)
	rootCmd.PersistentFlags().Int("price-oracle.min-request-interval", 2000, `Minimum gap between oracle calls in milliseconds`)
	rootCmd.PersistentFlags().Int("price-oracle.max-retries", 3, `Retries per oracle call when rate limited`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "rewards_tracker", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String("database.db-name", "rewards_tracker", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String("database.schema-name", "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String("database.ssl-mode", "disable", `PostgreSQL ssl mode`)

	rootCmd.PersistentFlags().String("local-cache.path", "", `Local cache directory. Empty runs an in-memory cache`)

	rootCmd.PersistentFlags().Int("sync.workers", 4, `Number of tracker sync workers`)
	rootCmd.PersistentFlags().Uint64("sync.epoch-max-batch", 25, `Maximum consensus epochs per sync pass`)
	rootCmd.PersistentFlags().Int("sync.interval", 900, `Seconds between sync cycles`)

	rootCmd.PersistentFlags().String("exemption.policy-file", "", `YAML file overriding the built-in exemption policy table`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	rootCmd.PersistentFlags().Bool("datadog.statsd.enabled", false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String("datadog.statsd.url", "", `e.g. "localhost:8125"`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(runVersionCmd)
	rootCmd.AddCommand(trackerCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}
