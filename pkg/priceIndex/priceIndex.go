// Package priceIndex exposes the date-keyed table of historical fiat
// prices for the reward asset. The engine treats it as read-only;
// filling it from the oracle is the price backfill service's job.
package priceIndex

import (
	"fmt"

	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/nodeledger/rewards-tracker/pkg/storage"
	"github.com/shopspring/decimal"
)

// Index is a date-keyed lookup of fiat prices. Lookups are by UTC
// calendar date, never by timestamp range.
type Index interface {
	GetPrice(dateKey string) (decimal.Decimal, bool)
}

// MapIndex is an in-memory Index, used directly in tests and as the
// materialized form of the store-backed index.
type MapIndex map[string]decimal.Decimal

func (m MapIndex) GetPrice(dateKey string) (decimal.Decimal, bool) {
	price, ok := m[dateKey]
	return price, ok
}

// LoadFromStore materializes the price entries for one currency into a
// MapIndex. The snapshot is immutable once loaded; a sync pass loads it
// once and values every event against the same table.
func LoadFromStore(store storage.RemoteStore, currency string) (MapIndex, error) {
	entries, err := store.ListPriceEntries(currency)
	if err != nil {
		return nil, fmt.Errorf("failed to load price entries: %w", err)
	}

	index := make(MapIndex, len(entries))
	for _, entry := range entries {
		index[entry.DateKey] = entry.FiatPerUnit
	}
	return index, nil
}

// FromEntries builds a MapIndex from loose entries.
func FromEntries(entries []*rewardTypes.PriceEntry) MapIndex {
	index := make(MapIndex, len(entries))
	for _, entry := range entries {
		index[entry.DateKey] = entry.FiatPerUnit
	}
	return index
}
