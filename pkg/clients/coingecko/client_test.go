package coingecko

import (
	"context"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/nodeledger/rewards-tracker/internal/logger"
	"github.com/nodeledger/rewards-tracker/pkg/clients/clientErrors"
	"github.com/stretchr/testify/assert"
)

const testBaseURL = "https://api.coingecko.com/api/v3"

func newTestClient(t *testing.T) *Client {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	c := NewClient(&ClientConfig{
		BaseUrl:            testBaseURL,
		CoinId:             "ethereum",
		MinRequestInterval: time.Millisecond,
		MaxRetries:         2,
	}, l)

	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func Test_GetHistoricalPrice(t *testing.T) {
	historyURL := testBaseURL + "/coins/ethereum/history"

	t.Run("Parses the price for the requested currency", func(t *testing.T) {
		c := newTestClient(t)
		httpmock.RegisterResponder("GET", historyURL,
			httpmock.NewStringResponder(200, `{
				"id": "ethereum",
				"market_data": {"current_price": {"eur": 1712.43, "usd": 1850.12}}
			}`))

		price, err := c.GetHistoricalPrice(context.Background(), "2023-06-15", "EUR")
		assert.Nil(t, err)
		assert.Equal(t, "1712.43", price.String())

		// the oracle takes DD-MM-YYYY
		info := httpmock.GetCallCountInfo()
		assert.Equal(t, 1, info["GET "+historyURL])
	})

	t.Run("Currency absent from the response is not found", func(t *testing.T) {
		c := newTestClient(t)
		httpmock.RegisterResponder("GET", historyURL,
			httpmock.NewStringResponder(200, `{"id": "ethereum", "market_data": {"current_price": {"usd": 1850.12}}}`))

		_, err := c.GetHistoricalPrice(context.Background(), "2023-06-15", "CHF")
		assert.True(t, clientErrors.IsNotFound(err))
	})

	t.Run("Rate limit retries up to the ceiling", func(t *testing.T) {
		c := newTestClient(t)
		httpmock.RegisterResponder("GET", historyURL,
			httpmock.NewStringResponder(429, `rate limited`))

		_, err := c.GetHistoricalPrice(context.Background(), "2023-06-15", "EUR")
		assert.NotNil(t, err)

		var providerErr *clientErrors.ProviderError
		assert.ErrorAs(t, err, &providerErr)
		assert.Equal(t, 2, httpmock.GetTotalCallCount())
	})

	t.Run("Invalid date key is rejected without a request", func(t *testing.T) {
		c := newTestClient(t)

		_, err := c.GetHistoricalPrice(context.Background(), "15-06-2023", "EUR")
		assert.True(t, clientErrors.IsPermanent(err))
		assert.Equal(t, 0, httpmock.GetTotalCallCount())
	})
}

func Test_ToOracleDate(t *testing.T) {
	date, err := toOracleDate("2021-12-30")
	assert.Nil(t, err)
	assert.Equal(t, "30-12-2021", date)
}
