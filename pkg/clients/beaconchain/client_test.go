package beaconchain

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/nodeledger/rewards-tracker/internal/logger"
	"github.com/nodeledger/rewards-tracker/pkg/clients/clientErrors"
	"github.com/stretchr/testify/assert"
)

const testBaseURL = "https://beaconcha.in/api/v1"

var testPubkey = "0x" + strings.Repeat("ab", 48)

func newTestClient(t *testing.T) *Client {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	c := NewClient(testBaseURL, "test-key", l)

	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func Test_GetValidator(t *testing.T) {
	t.Run("Parses validator status and balance", func(t *testing.T) {
		c := newTestClient(t)
		httpmock.RegisterResponder("GET", fmt.Sprintf("%s/validator/%s", testBaseURL, testPubkey),
			httpmock.NewStringResponder(200, fmt.Sprintf(`{
				"status": "OK",
				"data": {"pubkey": "%s", "validatorindex": 123456, "balance": 32000145000, "status": "active_online"}
			}`, testPubkey)))

		validator, err := c.GetValidator(context.Background(), testPubkey)
		assert.Nil(t, err)
		assert.Equal(t, uint64(123456), validator.Index)
		assert.Equal(t, uint64(32000145000), validator.Balance)
		assert.Equal(t, "active_online", validator.Status)
	})

	t.Run("Unknown validator is a not-found error", func(t *testing.T) {
		c := newTestClient(t)
		httpmock.RegisterResponder("GET", fmt.Sprintf("%s/validator/%s", testBaseURL, testPubkey),
			httpmock.NewStringResponder(404, `not found`))

		_, err := c.GetValidator(context.Background(), testPubkey)
		assert.True(t, clientErrors.IsNotFound(err))
	})

	t.Run("Malformed pubkey is rejected without a request", func(t *testing.T) {
		c := newTestClient(t)

		_, err := c.GetValidator(context.Background(), "0x1234")
		assert.True(t, clientErrors.IsPermanent(err))
		assert.Equal(t, 0, httpmock.GetTotalCallCount())
	})
}

func Test_GetEpochIncome(t *testing.T) {
	t.Run("Parses epoch income", func(t *testing.T) {
		c := newTestClient(t)
		httpmock.RegisterResponder("GET", fmt.Sprintf("%s/validator/%s/income", testBaseURL, testPubkey),
			httpmock.NewStringResponder(200, `{"status": "OK", "data": {"income": 14230}}`))

		income, err := c.GetEpochIncome(context.Background(), testPubkey, 250000)
		assert.Nil(t, err)
		assert.Equal(t, uint64(250000), income.Epoch)
		assert.Equal(t, uint64(14230), income.IncomeGwei)
	})

	t.Run("Null data means zero income, not an error", func(t *testing.T) {
		c := newTestClient(t)
		httpmock.RegisterResponder("GET", fmt.Sprintf("%s/validator/%s/income", testBaseURL, testPubkey),
			httpmock.NewStringResponder(200, `{"status": "OK", "data": null}`))

		income, err := c.GetEpochIncome(context.Background(), testPubkey, 250000)
		assert.Nil(t, err)
		assert.Equal(t, uint64(0), income.IncomeGwei)
	})

	t.Run("Error envelope is a provider error", func(t *testing.T) {
		c := newTestClient(t)
		httpmock.RegisterResponder("GET", fmt.Sprintf("%s/validator/%s/income", testBaseURL, testPubkey),
			httpmock.NewStringResponder(200, `{"status": "ERROR: invalid epoch", "data": null}`))

		_, err := c.GetEpochIncome(context.Background(), testPubkey, 250000)
		var providerErr *clientErrors.ProviderError
		assert.ErrorAs(t, err, &providerErr)
	})
}
