package priceIndex

import (
	"context"
	"fmt"
	"sort"

	"github.com/nodeledger/rewards-tracker/pkg/clients/clientErrors"
	"github.com/nodeledger/rewards-tracker/pkg/metrics"
	"github.com/nodeledger/rewards-tracker/pkg/metrics/metricsTypes"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/nodeledger/rewards-tracker/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceSource is the oracle the backfiller pulls missing prices from.
// The concrete client owns its own rate limiting.
type PriceSource interface {
	GetHistoricalPrice(ctx context.Context, dateKey string, currency string) (decimal.Decimal, error)
}

// Backfiller fills the gaps in the price table for the dates a set of
// reward events needs, including each date's previous day so the
// valuation fallback has something to land on.
type Backfiller struct {
	source      PriceSource
	store       storage.RemoteStore
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger
}

func NewBackfiller(source PriceSource, store storage.RemoteStore, ms *metrics.MetricsSink, l *zap.Logger) *Backfiller {
	return &Backfiller{
		source:      source,
		store:       store,
		metricsSink: ms,
		logger:      l,
	}
}

// neededDateKeys returns the sorted distinct set of date keys the events
// require, each paired with its previous day.
func neededDateKeys(events []*rewardTypes.RewardEvent) []string {
	seen := make(map[string]bool)
	for _, event := range events {
		dateKey := rewardTypes.DateKeyFromTimestamp(event.TimestampSec)
		seen[dateKey] = true
		seen[rewardTypes.PreviousDateKey(dateKey)] = true
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// BackfillForEvents fetches every missing price the events need and
// returns an index covering the full set. Oracle misses for single
// dates are logged and skipped; the valuation layer degrades those
// events to unvalued.
func (b *Backfiller) BackfillForEvents(ctx context.Context, events []*rewardTypes.RewardEvent, currency string) (Index, error) {
	index, err := LoadFromStore(b.store, currency)
	if err != nil {
		return nil, err
	}

	fetched := make([]*rewardTypes.PriceEntry, 0)
	for _, dateKey := range neededDateKeys(events) {
		if _, ok := index[dateKey]; ok {
			continue
		}
		price, err := b.source.GetHistoricalPrice(ctx, dateKey, currency)
		if err != nil {
			if clientErrors.IsNotFound(err) {
				b.logger.Sugar().Debugw("No oracle price for date",
					zap.String("dateKey", dateKey),
					zap.String("currency", currency),
				)
				continue
			}
			return nil, fmt.Errorf("failed to fetch price for '%s': %w", dateKey, err)
		}
		index[dateKey] = price
		fetched = append(fetched, &rewardTypes.PriceEntry{
			DateKey:     dateKey,
			Currency:    currency,
			FiatPerUnit: price,
		})
		_ = b.metricsSink.Incr(metricsTypes.Metric_Incr_PriceFetched, []metricsTypes.MetricsLabel{
			{Name: "currency", Value: currency},
		}, 1)
	}

	if len(fetched) > 0 {
		if err := b.store.UpsertPriceEntries(fetched); err != nil {
			return nil, fmt.Errorf("failed to store fetched prices: %w", err)
		}
		b.logger.Sugar().Infow("Backfilled price entries",
			zap.Int("count", len(fetched)),
			zap.String("currency", currency),
		)
	}
	return index, nil
}
