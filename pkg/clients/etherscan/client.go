// Package etherscan is the blockchain explorer client. The explorer is
// untrusted and partially unreliable: an empty result set and an error
// response share the same envelope status, so the two are told apart
// here and never conflated further up.
package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/ethereum/go-ethereum/common"
	"github.com/nodeledger/rewards-tracker/pkg/clients/clientErrors"
	"go.uber.org/zap"
)

const (
	providerName = "etherscan"
	pageSize     = 1000
	maxRetries   = 3
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKeys    []string
	keyCursor  atomic.Uint64
	logger     *zap.Logger
}

// Transaction is one raw explorer record, shared by the direct and
// internal transfer feeds. All numeric fields arrive as decimal strings.
type Transaction struct {
	Hash      string `json:"hash"`
	TimeStamp string `json:"timeStamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	// Value is in wei (1e18 per unit)
	Value   string `json:"value"`
	IsError string `json:"isError"`
}

// BeaconWithdrawal is one consensus-layer withdrawal credited through
// the execution layer. It has no transaction hash of its own.
type BeaconWithdrawal struct {
	WithdrawalIndex string `json:"withdrawalIndex"`
	ValidatorIndex  string `json:"validatorIndex"`
	Address         string `json:"address"`
	// Amount is in gwei (1e9 per unit)
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func NewClient(baseURL string, apiKeys []string, l *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		apiKeys: apiKeys,
		logger:  l,
	}
}

// nextApiKey rotates through the configured keys round-robin to spread
// request volume across them.
func (c *Client) nextApiKey() string {
	if len(c.apiKeys) == 0 {
		return ""
	}
	n := c.keyCursor.Add(1)
	return c.apiKeys[(n-1)%uint64(len(c.apiKeys))]
}

// ListTransactions returns the direct incoming/outgoing transfers for an
// address, oldest first, paginated until exhausted.
func (c *Client) ListTransactions(ctx context.Context, address string) ([]*Transaction, error) {
	return c.listTransactionsForAction(ctx, address, "txlist")
}

// ListInternalTransactions returns the internal (contract-initiated)
// transfers for an address.
func (c *Client) ListInternalTransactions(ctx context.Context, address string) ([]*Transaction, error) {
	return c.listTransactionsForAction(ctx, address, "txlistinternal")
}

func (c *Client) listTransactionsForAction(ctx context.Context, address string, action string) ([]*Transaction, error) {
	if !common.IsHexAddress(address) {
		return nil, &clientErrors.PermanentInvalidInputError{Provider: providerName, Message: fmt.Sprintf("not a hex address: %s", address)}
	}

	all := make([]*Transaction, 0)
	for page := 1; ; page++ {
		result, err := c.fetchResult(ctx, map[string]string{
			"module":  "account",
			"action":  action,
			"address": strings.ToLower(address),
			"page":    fmt.Sprintf("%d", page),
			"offset":  fmt.Sprintf("%d", pageSize),
			"sort":    "asc",
		})
		if err != nil {
			return nil, err
		}
		if result == nil {
			break
		}

		batch := make([]*Transaction, 0)
		if err := json.Unmarshal(result, &batch); err != nil {
			return nil, &clientErrors.ProviderError{Provider: providerName, Message: fmt.Sprintf("malformed %s result: %v", action, err)}
		}
		all = append(all, batch...)

		if len(batch) < pageSize {
			break
		}
	}
	return all, nil
}

// ListBeaconWithdrawals returns the consensus-layer withdrawals credited
// to an address.
func (c *Client) ListBeaconWithdrawals(ctx context.Context, address string) ([]*BeaconWithdrawal, error) {
	if !common.IsHexAddress(address) {
		return nil, &clientErrors.PermanentInvalidInputError{Provider: providerName, Message: fmt.Sprintf("not a hex address: %s", address)}
	}

	all := make([]*BeaconWithdrawal, 0)
	for page := 1; ; page++ {
		result, err := c.fetchResult(ctx, map[string]string{
			"module":  "account",
			"action":  "txsBeaconWithdrawal",
			"address": strings.ToLower(address),
			"page":    fmt.Sprintf("%d", page),
			"offset":  fmt.Sprintf("%d", pageSize),
			"sort":    "asc",
		})
		if err != nil {
			return nil, err
		}
		if result == nil {
			break
		}

		batch := make([]*BeaconWithdrawal, 0)
		if err := json.Unmarshal(result, &batch); err != nil {
			return nil, &clientErrors.ProviderError{Provider: providerName, Message: fmt.Sprintf("malformed withdrawal result: %v", err)}
		}
		all = append(all, batch...)

		if len(batch) < pageSize {
			break
		}
	}
	return all, nil
}

// fetchResult performs one explorer call with bounded backoff on rate
// limiting. A nil result with nil error means the provider reported
// "nothing to report" for this query, the common case for idle nodes.
func (c *Client) fetchResult(ctx context.Context, params map[string]string) (json.RawMessage, error) {
	var result json.RawMessage

	err := retry.Do(
		func() error {
			var err error
			result, err = c.doRequest(ctx, params)
			return err
		},
		retry.Attempts(maxRetries),
		retry.Delay(time.Second),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(clientErrors.IsRateLimited),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Sugar().Warnw("Retrying explorer request after rate limit",
				zap.Uint("attempt", n),
				zap.String("action", params["action"]),
			)
		}),
	)
	if err != nil {
		if clientErrors.IsRateLimited(err) {
			return nil, &clientErrors.ProviderError{Provider: providerName, StatusCode: http.StatusTooManyRequests, Message: "rate limit retries exhausted"}
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, params map[string]string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	if key := c.nextApiKey(); key != "" {
		q.Add("apikey", key)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &clientErrors.TransientNetworkError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &clientErrors.RateLimitedError{Provider: providerName}
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

	if env.Status != "1" {
		// "No transactions found" rides the same status=0 envelope as
		// genuine failures; it is a benign empty result
		if strings.Contains(env.Message, "No transactions found") {
			return nil, nil
		}
		var resultMessage string
		_ = json.Unmarshal(env.Result, &resultMessage)
		if strings.Contains(resultMessage, "rate limit") {
			return nil, &clientErrors.RateLimitedError{Provider: providerName}
		}
		return nil, &clientErrors.ProviderError{Provider: providerName, Message: fmt.Sprintf("%s: %s", env.Message, resultMessage)}
	}

	return env.Result, nil
}
