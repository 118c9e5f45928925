// Package valuation attaches fiat value and tax figures to reward
// events. Valuate is a pure function: the same event, price index and
// tax rate always produce the same result.
package valuation

import (
	"github.com/nodeledger/rewards-tracker/pkg/priceIndex"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Result carries the fiat valuation of one reward event. Unvalued marks
// events whose date had no price even after the one-day-back fallback;
// their fiat figures are zero but the event itself stays in the ledger.
type Result struct {
	FiatValue decimal.Decimal
	TaxFiat   decimal.Decimal
	TaxAsset  decimal.Decimal
	PriceUsed decimal.Decimal
	DateKey   string
	// UsedFallback is set when the previous day's price was used.
	UsedFallback bool
	Unvalued     bool
}

// Valuate resolves a historical price for the event's UTC calendar date
// and derives fiat value and tax figures from it. A missing price falls
// back exactly once to the previous day; if that is also missing the
// event is valued at zero and flagged, never rejected, so a gap in the
// price table cannot block ledger construction.
func Valuate(
	event *rewardTypes.RewardEvent,
	index priceIndex.Index,
	taxRatePercent decimal.Decimal,
) Result {
	dateKey := rewardTypes.DateKeyFromTimestamp(event.TimestampSec)

	result := Result{DateKey: dateKey}

	price, ok := index.GetPrice(dateKey)
	if !ok {
		price, ok = index.GetPrice(rewardTypes.PreviousDateKey(dateKey))
		result.UsedFallback = ok
	}
	if !ok {
		result.Unvalued = true
		price = decimal.Zero
	}

	result.PriceUsed = price
	result.FiatValue = event.Amount.Mul(price)
	result.TaxAsset = event.Amount.Mul(taxRatePercent).Div(oneHundred)
	result.TaxFiat = result.FiatValue.Mul(taxRatePercent).Div(oneHundred)
	return result
}
