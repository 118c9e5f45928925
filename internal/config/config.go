package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Chain identifies which network the tracked addresses live on.
type Chain string

const (
	Chain_Mainnet Chain = "mainnet"
	Chain_Holesky Chain = "holesky"
)

func (c Chain) String() string {
	return string(c)
}

const ENV_PREFIX = "REWARDS_TRACKER"

// Viper keys for all supported flags. Flag names are kebab-case and get
// normalized to these snake_case keys before binding.
const (
	Debug     = "debug"
	ChainFlag = "chain"

	EtherscanBaseUrl = "etherscan.base_url"
	EtherscanApiKeys = "etherscan.api_keys"

	BeaconBaseUrl = "beacon.base_url"
	BeaconApiKey  = "beacon.api_key"

	PriceOracleBaseUrl            = "price_oracle.base_url"
	PriceOracleApiKey             = "price_oracle.api_key"
	PriceOracleCoinId             = "price_oracle.coin_id"
	PriceOracleMinRequestInterval = "price_oracle.min_request_interval"
	PriceOracleMaxRetries         = "price_oracle.max_retries"

	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db_name"
	DatabaseSchemaName = "database.schema_name"
	DatabaseSSLMode    = "database.ssl_mode"

	LocalCachePath = "local_cache.path"

	SyncWorkers       = "sync.workers"
	SyncEpochMaxBatch = "sync.epoch_max_batch"
	SyncInterval      = "sync.interval"

	ExemptionPolicyFile = "exemption.policy_file"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	StatsdEnabled = "datadog.statsd.enabled"
	StatsdUrl     = "datadog.statsd.url"
)

type EtherscanConfig struct {
	BaseUrl string
	ApiKeys []string
}

type BeaconConfig struct {
	BaseUrl string
	ApiKey  string
}

type PriceOracleConfig struct {
	BaseUrl string
	ApiKey  string
	// CoinId is the oracle's identifier for the reward asset, e.g. "ethereum"
	CoinId string
	// MinRequestIntervalMs is the enforced gap between consecutive oracle
	// calls, respecting the oracle's published rate limit
	MinRequestIntervalMs int
	MaxRetries           uint
}

type DatabaseConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
	SSLMode    string
}

type LocalCacheConfig struct {
	// Path is the leveldb directory. Empty means an in-memory store,
	// which is what the tests use.
	Path string
}

type SyncConfig struct {
	Workers       int
	EpochMaxBatch uint64
	IntervalSec   int
}

type ExemptionConfig struct {
	PolicyFile string
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type StatsdConfig struct {
	Enabled bool
	Url     string
}

type Config struct {
	Debug             bool
	Chain             Chain
	EtherscanConfig   EtherscanConfig
	BeaconConfig      BeaconConfig
	PriceOracleConfig PriceOracleConfig
	DatabaseConfig    DatabaseConfig
	LocalCacheConfig  LocalCacheConfig
	SyncConfig        SyncConfig
	ExemptionConfig   ExemptionConfig
	PrometheusConfig  PrometheusConfig
	StatsdConfig      StatsdConfig
}

// KebabToSnakeCase normalizes a kebab-case flag name into the snake_case
// key viper stores it under.
func KebabToSnakeCase(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

func StringWithDefault(key, defaultValue string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return defaultValue
}

func IntWithDefault(key string, defaultValue int) int {
	if v := viper.GetInt(key); v != 0 {
		return v
	}
	return defaultValue
}

// UintWithDefault falls back on zero and on negative values, which a
// flag or env var can carry.
func UintWithDefault(key string, defaultValue uint) uint {
	if v := viper.GetInt(key); v > 0 {
		return uint(v)
	}
	return defaultValue
}

func parseListString(s string) []string {
	parts := strings.Split(s, ",")
	l := make([]string, 0)
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			l = append(l, trimmed)
		}
	}
	return l
}

// NewConfig builds a Config from the current viper state. Flags are bound
// in cmd/root.go; every value is also settable through the environment
// with the REWARDS_TRACKER_ prefix.
func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(Debug),
		Chain: Chain(StringWithDefault(ChainFlag, Chain_Mainnet.String())),

		EtherscanConfig: EtherscanConfig{
			BaseUrl: StringWithDefault(EtherscanBaseUrl, "https://api.etherscan.io/api"),
			ApiKeys: parseListString(viper.GetString(EtherscanApiKeys)),
		},

		BeaconConfig: BeaconConfig{
			BaseUrl: StringWithDefault(BeaconBaseUrl, "https://beaconcha.in/api/v1"),
			ApiKey:  viper.GetString(BeaconApiKey),
		},

		PriceOracleConfig: PriceOracleConfig{
			BaseUrl:              StringWithDefault(PriceOracleBaseUrl, "https://api.coingecko.com/api/v3"),
			ApiKey:               viper.GetString(PriceOracleApiKey),
			CoinId:               StringWithDefault(PriceOracleCoinId, "ethereum"),
			MinRequestIntervalMs: IntWithDefault(PriceOracleMinRequestInterval, 2000),
			MaxRetries:           UintWithDefault(PriceOracleMaxRetries, 5),
		},

		DatabaseConfig: DatabaseConfig{
			Host:       StringWithDefault(DatabaseHost, "localhost"),
			Port:       IntWithDefault(DatabasePort, 5432),
			User:       StringWithDefault(DatabaseUser, "rewards_tracker"),
			Password:   viper.GetString(DatabasePassword),
			DbName:     StringWithDefault(DatabaseDbName, "rewards_tracker"),
			SchemaName: viper.GetString(DatabaseSchemaName),
			SSLMode:    viper.GetString(DatabaseSSLMode),
		},

		LocalCacheConfig: LocalCacheConfig{
			Path: viper.GetString(LocalCachePath),
		},

		SyncConfig: SyncConfig{
			Workers:       IntWithDefault(SyncWorkers, 4),
			EpochMaxBatch: uint64(IntWithDefault(SyncEpochMaxBatch, 100)),
			IntervalSec:   IntWithDefault(SyncInterval, 300),
		},

		ExemptionConfig: ExemptionConfig{
			PolicyFile: viper.GetString(ExemptionPolicyFile),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(PrometheusEnabled),
			Port:    IntWithDefault(PrometheusPort, 2112),
		},

		StatsdConfig: StatsdConfig{
			Enabled: viper.GetBool(StatsdEnabled),
			Url:     viper.GetString(StatsdUrl),
		},
	}
}

func (c *Config) ValidateChain() error {
	switch c.Chain {
	case Chain_Mainnet, Chain_Holesky:
		return nil
	}
	return fmt.Errorf("unsupported chain %s", c.Chain)
}

// BeaconGenesisTimestamp returns the consensus-layer genesis time for the
// configured chain, used for epoch math.
func (c *Config) BeaconGenesisTimestamp() uint64 {
	switch c.Chain {
	case Chain_Holesky:
		return 1695902400
	default:
		return 1606824023
	}
}
