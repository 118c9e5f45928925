package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func Test_Config(t *testing.T) {
	t.Run("Defaults when nothing is set", func(t *testing.T) {
		viper.Reset()
		c := NewConfig()

		assert.Equal(t, Chain_Mainnet, c.Chain)
		assert.Equal(t, "https://api.etherscan.io/api", c.EtherscanConfig.BaseUrl)
		assert.Equal(t, 5432, c.DatabaseConfig.Port)
		assert.Equal(t, 2000, c.PriceOracleConfig.MinRequestIntervalMs)
		assert.Equal(t, uint(5), c.PriceOracleConfig.MaxRetries)
		assert.Equal(t, uint64(100), c.SyncConfig.EpochMaxBatch)
		assert.Nil(t, c.ValidateChain())
	})

	t.Run("Negative oracle retry count falls back to the default", func(t *testing.T) {
		viper.Reset()
		viper.Set(PriceOracleMaxRetries, -2)
		c := NewConfig()

		assert.Equal(t, uint(5), c.PriceOracleConfig.MaxRetries)
	})

	t.Run("Etherscan api keys parse as a comma list", func(t *testing.T) {
		viper.Reset()
		viper.Set(EtherscanApiKeys, "key-one, key-two ,,key-three")
		c := NewConfig()

		assert.Equal(t, []string{"key-one", "key-two", "key-three"}, c.EtherscanConfig.ApiKeys)
	})

	t.Run("Invalid chain is rejected", func(t *testing.T) {
		viper.Reset()
		viper.Set(ChainFlag, "sepolia")
		c := NewConfig()

		assert.NotNil(t, c.ValidateChain())
	})

	t.Run("Genesis timestamp follows the chain", func(t *testing.T) {
		viper.Reset()
		c := NewConfig()
		assert.Equal(t, uint64(1606824023), c.BeaconGenesisTimestamp())

		viper.Set(ChainFlag, "holesky")
		c = NewConfig()
		assert.Equal(t, uint64(1695902400), c.BeaconGenesisTimestamp())
	})

	t.Run("KebabToSnakeCase", func(t *testing.T) {
		assert.Equal(t, "price_oracle.min_request_interval", KebabToSnakeCase("price-oracle.min-request-interval"))
	})
}
