package priceIndex

import (
	"context"
	"testing"

	"github.com/nodeledger/rewards-tracker/internal/logger"
	"github.com/nodeledger/rewards-tracker/internal/tests"
	"github.com/nodeledger/rewards-tracker/pkg/clients/clientErrors"
	"github.com/nodeledger/rewards-tracker/pkg/metrics"
	"github.com/nodeledger/rewards-tracker/pkg/metrics/metricsTypes"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type fakePriceSource struct {
	prices  map[string]decimal.Decimal
	fetched []string
}

func (f *fakePriceSource) GetHistoricalPrice(ctx context.Context, dateKey string, currency string) (decimal.Decimal, error) {
	f.fetched = append(f.fetched, dateKey)
	price, ok := f.prices[dateKey]
	if !ok {
		return decimal.Zero, &clientErrors.NotFoundError{Provider: "fakeOracle", Entity: dateKey}
	}
	return price, nil
}

func setup(t *testing.T) (*tests.InMemoryRemoteStore, *fakePriceSource, *Backfiller) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	sink, _ := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, []metricsTypes.IMetricsClient{})
	store := tests.NewInMemoryRemoteStore()
	source := &fakePriceSource{prices: map[string]decimal.Decimal{}}
	return store, source, NewBackfiller(source, store, sink, l)
}

// 2023-11-14T22:13:20Z
const ts = uint64(1700000000)

func event(hash string, timestampSec uint64) *rewardTypes.RewardEvent {
	return &rewardTypes.RewardEvent{
		TrackerId:    "t1",
		Hash:         hash,
		TimestampSec: timestampSec,
		Amount:       decimal.NewFromInt(1),
	}
}

func Test_Backfiller(t *testing.T) {
	t.Run("Fetches the event date and its previous day", func(t *testing.T) {
		store, source, backfiller := setup(t)
		source.prices["2023-11-14"] = decimal.NewFromInt(1900)
		source.prices["2023-11-13"] = decimal.NewFromInt(1880)

		index, err := backfiller.BackfillForEvents(context.Background(), []*rewardTypes.RewardEvent{event("0xaaa", ts)}, "eur")
		assert.Nil(t, err)

		price, ok := index.GetPrice("2023-11-14")
		assert.True(t, ok)
		assert.True(t, price.Equal(decimal.NewFromInt(1900)))
		_, ok = index.GetPrice("2023-11-13")
		assert.True(t, ok)

		stored, err := store.ListPriceEntries("eur")
		assert.Nil(t, err)
		assert.Equal(t, 2, len(stored))
	})

	t.Run("Already stored dates are not re-fetched", func(t *testing.T) {
		store, source, backfiller := setup(t)
		assert.Nil(t, store.UpsertPriceEntries([]*rewardTypes.PriceEntry{
			{DateKey: "2023-11-14", Currency: "eur", FiatPerUnit: decimal.NewFromInt(1900)},
			{DateKey: "2023-11-13", Currency: "eur", FiatPerUnit: decimal.NewFromInt(1880)},
		}))

		_, err := backfiller.BackfillForEvents(context.Background(), []*rewardTypes.RewardEvent{event("0xaaa", ts)}, "eur")
		assert.Nil(t, err)
		assert.Equal(t, 0, len(source.fetched))
	})

	t.Run("Oracle miss for one date is skipped, not fatal", func(t *testing.T) {
		_, source, backfiller := setup(t)
		source.prices["2023-11-14"] = decimal.NewFromInt(1900)
		// 2023-11-13 missing from the oracle

		index, err := backfiller.BackfillForEvents(context.Background(), []*rewardTypes.RewardEvent{event("0xaaa", ts)}, "eur")
		assert.Nil(t, err)

		_, ok := index.GetPrice("2023-11-14")
		assert.True(t, ok)
		_, ok = index.GetPrice("2023-11-13")
		assert.False(t, ok)
	})

	t.Run("Dates shared by events are fetched once", func(t *testing.T) {
		_, source, backfiller := setup(t)
		source.prices["2023-11-14"] = decimal.NewFromInt(1900)
		source.prices["2023-11-13"] = decimal.NewFromInt(1880)

		_, err := backfiller.BackfillForEvents(context.Background(), []*rewardTypes.RewardEvent{
			event("0xaaa", ts),
			event("0xbbb", ts+600),
		}, "eur")
		assert.Nil(t, err)
		assert.Equal(t, 2, len(source.fetched))
	})
}
