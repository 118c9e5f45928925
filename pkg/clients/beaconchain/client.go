// Package beaconchain is the consensus-layer rewards API client, keyed
// by validator public key.
package beaconchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/nodeledger/rewards-tracker/pkg/clients/clientErrors"
	"go.uber.org/zap"
)

const (
	providerName = "beaconchain"
	maxRetries   = 3
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

// Validator is the consensus-layer view of one validator.
type Validator struct {
	PubKey string `json:"pubkey"`
	Index  uint64 `json:"validatorindex"`
	// Balance is in gwei
	Balance uint64 `json:"balance"`
	Status  string `json:"status"`
}

// EpochIncome is the reward total credited to a validator for one epoch.
type EpochIncome struct {
	Epoch uint64 `json:"epoch"`
	// IncomeGwei is the total income for the epoch in gwei. Can be zero
	// for epochs where the validator earned nothing.
	IncomeGwei uint64 `json:"income"`
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func NewClient(baseURL string, apiKey string, l *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  l,
	}
}

// GetValidator fetches the current status and balance for a validator.
func (c *Client) GetValidator(ctx context.Context, pubkey string) (*Validator, error) {
	if !isValidPubkey(pubkey) {
		return nil, &clientErrors.PermanentInvalidInputError{Provider: providerName, Message: fmt.Sprintf("not a validator pubkey: %s", pubkey)}
	}

	data, err := c.fetchData(ctx, fmt.Sprintf("%s/validator/%s", c.baseURL, pubkey))
	if err != nil {
		return nil, err
	}

	var validator Validator
	if err := json.Unmarshal(data, &validator); err != nil {
		return nil, &clientErrors.ProviderError{Provider: providerName, Message: fmt.Sprintf("malformed validator response: %v", err)}
	}
	return &validator, nil
}

// GetEpochIncome fetches the reward total for one validator and one
// epoch. An epoch the provider has no record for comes back as zero
// income, not as an error.
func (c *Client) GetEpochIncome(ctx context.Context, pubkey string, epoch uint64) (*EpochIncome, error) {
	if !isValidPubkey(pubkey) {
		return nil, &clientErrors.PermanentInvalidInputError{Provider: providerName, Message: fmt.Sprintf("not a validator pubkey: %s", pubkey)}
	}

	data, err := c.fetchData(ctx, fmt.Sprintf("%s/validator/%s/income?epoch=%d", c.baseURL, pubkey, epoch))
	if err != nil {
		return nil, err
	}

	if string(data) == "null" {
		return &EpochIncome{Epoch: epoch}, nil
	}

	var income EpochIncome
	if err := json.Unmarshal(data, &income); err != nil {
		return nil, &clientErrors.ProviderError{Provider: providerName, Message: fmt.Sprintf("malformed income response: %v", err)}
	}
	income.Epoch = epoch
	return &income, nil
}

func (c *Client) fetchData(ctx context.Context, url string) (json.RawMessage, error) {
	var data json.RawMessage

	err := retry.Do(
		func() error {
			var err error
			data, err = c.doRequest(ctx, url)
			return err
		},
		retry.Attempts(maxRetries),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(clientErrors.IsRateLimited),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Sugar().Warnw("Retrying beacon request after rate limit",
				zap.Uint("attempt", n),
				zap.String("url", url),
			)
		}),
	)
	if err != nil {
		if clientErrors.IsRateLimited(err) {
			return nil, &clientErrors.ProviderError{Provider: providerName, StatusCode: http.StatusTooManyRequests, Message: "rate limit retries exhausted"}
		}
		return nil, err
	}
	return data, nil
}

func (c *Client) doRequest(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &clientErrors.TransientNetworkError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &clientErrors.RateLimitedError{Provider: providerName}
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &clientErrors.NotFoundError{Provider: providerName, Entity: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &clientErrors.TransientNetworkError{Provider: providerName, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &clientErrors.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &clientErrors.ProviderError{Provider: providerName, Message: fmt.Sprintf("malformed envelope: %v", err)}
	}

	if env.Status != "OK" {
		return nil, &clientErrors.ProviderError{Provider: providerName, Message: env.Status}
	}

	return env.Data, nil
}

// isValidPubkey checks for a 48-byte hex BLS pubkey with 0x prefix.
func isValidPubkey(pubkey string) bool {
	if !strings.HasPrefix(pubkey, "0x") || len(pubkey) != 98 {
		return false
	}
	for _, r := range pubkey[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
