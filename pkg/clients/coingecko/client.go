// Package coingecko is the historical price oracle client. Each client
// instance owns its own rate limiter, so concurrent tracker workers
// sharing one client queue behind the same interval instead of sharing
// hidden global state.
package coingecko

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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const providerName = "coingecko"

type ClientConfig struct {
	BaseUrl string
	ApiKey  string
	CoinId  string
	// MinRequestInterval is the enforced gap between consecutive
	// requests, honoring the oracle's published rate limit
	MinRequestInterval time.Duration
	MaxRetries         uint
}

type Client struct {
	httpClient *http.Client
	config     *ClientConfig
	limiter    *rate.Limiter
	logger     *zap.Logger
}

type historicalData struct {
	ID         string `json:"id"`
	MarketData struct {
		CurrentPrice map[string]float64 `json:"current_price"`
	} `json:"market_data"`
}

func NewClient(cfg *ClientConfig, l *zap.Logger) *Client {
	interval := cfg.MinRequestInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		config:  cfg,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  l,
	}
}

// GetHistoricalPrice fetches the fiat price of the reward asset for one
// UTC calendar date (dateKey is "YYYY-MM-DD") in the given currency.
// A date the oracle has no price for returns a NotFoundError; the
// valuation layer decides how to degrade.
func (c *Client) GetHistoricalPrice(ctx context.Context, dateKey string, currency string) (decimal.Decimal, error) {
	oracleDate, err := toOracleDate(dateKey)
	if err != nil {
		return decimal.Zero, &clientErrors.PermanentInvalidInputError{Provider: providerName, Message: err.Error()}
	}

	var data *historicalData

	err = retry.Do(
		func() error {
			var err error
			data, err = c.fetchHistory(ctx, oracleDate)
			return err
		},
		retry.Attempts(c.maxRetries()),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(clientErrors.IsRateLimited),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Sugar().Warnw("Retrying price oracle request after rate limit",
				zap.Uint("attempt", n),
				zap.String("date", dateKey),
			)
		}),
	)
	if err != nil {
		if clientErrors.IsRateLimited(err) {
			return decimal.Zero, &clientErrors.ProviderError{Provider: providerName, StatusCode: http.StatusTooManyRequests, Message: "rate limit retries exhausted"}
		}
		return decimal.Zero, err
	}

	price, ok := data.MarketData.CurrentPrice[strings.ToLower(currency)]
	if !ok {
		return decimal.Zero, &clientErrors.NotFoundError{Provider: providerName, Entity: fmt.Sprintf("price for %s on %s", currency, dateKey)}
	}
	return decimal.NewFromFloat(price), nil
}

func (c *Client) maxRetries() uint {
	if c.config.MaxRetries == 0 {
		return 5
	}
	return c.config.MaxRetries
}

func (c *Client) fetchHistory(ctx context.Context, oracleDate string) (*historicalData, error) {
	// token-bucket-of-one sleep before every oracle call
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/coins/%s/history", c.config.BaseUrl, c.config.CoinId)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	q.Add("date", oracleDate)
	q.Add("localization", "false")
	req.URL.RawQuery = q.Encode()

	req.Header.Set("accept", "application/json")
	if c.config.ApiKey != "" {
		req.Header.Set("x-cg-pro-api-key", c.config.ApiKey)
	}

	c.logger.Sugar().Debugw("Making price oracle request",
		zap.String("url", req.URL.String()),
		zap.String("date", oracleDate),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &clientErrors.TransientNetworkError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &clientErrors.RateLimitedError{Provider: providerName}
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &clientErrors.NotFoundError{Provider: providerName, Entity: c.config.CoinId}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &clientErrors.TransientNetworkError{Provider: providerName, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &clientErrors.ProviderError{Provider: providerName, StatusCode: resp.StatusCode, Message: string(body)}
	}

	var data historicalData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &clientErrors.ProviderError{Provider: providerName, Message: fmt.Sprintf("malformed history response: %v", err)}
	}
	return &data, nil
}

// toOracleDate converts a "YYYY-MM-DD" date key into the oracle's
// "DD-MM-YYYY" history format.
func toOracleDate(dateKey string) (string, error) {
	t, err := time.Parse("2006-01-02", dateKey)
	if err != nil {
		return "", fmt.Errorf("invalid date key %q: %w", dateKey, err)
	}
	return t.Format("02-01-2006"), nil
}
