package pipeline

import (
	"fmt"
	"time"

	"github.com/nodeledger/rewards-tracker/pkg/exemption"
	"github.com/nodeledger/rewards-tracker/pkg/metrics/metricsTypes"
	"github.com/nodeledger/rewards-tracker/pkg/priceIndex"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/nodeledger/rewards-tracker/pkg/valuation"
	"github.com/shopspring/decimal"
)

// Aggregates are the per-tracker totals over the canonical event set.
type Aggregates struct {
	TotalRewards  decimal.Decimal
	TotalFiat     decimal.Decimal
	TotalTaxFiat  decimal.Decimal
	TotalTaxAsset decimal.Decimal
	EventCount    int
	UnpaidCount   int
	UnvaluedCount int
	ExemptCount   int
}

// ComputeAggregates values every event in the canonical set against the
// price index and folds in the user's holding overrides for the
// exemption counts.
func (p *Pipeline) ComputeAggregates(
	tracker *rewardTypes.Tracker,
	events []*rewardTypes.RewardEvent,
	index priceIndex.Index,
	now time.Time,
) (*Aggregates, error) {
	overrides, err := p.localCache.ListHoldingOverrides(tracker.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to load holding overrides: %w", err)
	}

	agg := &Aggregates{
		TotalRewards:  decimal.Zero,
		TotalFiat:     decimal.Zero,
		TotalTaxFiat:  decimal.Zero,
		TotalTaxAsset: decimal.Zero,
		EventCount:    len(events),
	}

	for _, event := range events {
		v := valuation.Valuate(event, index, tracker.TaxRatePercent)
		agg.TotalRewards = agg.TotalRewards.Add(event.Amount)
		agg.TotalFiat = agg.TotalFiat.Add(v.FiatValue)
		agg.TotalTaxFiat = agg.TotalTaxFiat.Add(v.TaxFiat)
		agg.TotalTaxAsset = agg.TotalTaxAsset.Add(v.TaxAsset)

		if v.Unvalued {
			agg.UnvaluedCount++
			_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_EventUnvalued, []metricsTypes.MetricsLabel{
				{Name: "trackerId", Value: tracker.Id},
			}, 1)
		}
		if v.UsedFallback {
			_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_PriceFallback, []metricsTypes.MetricsLabel{
				{Name: "dateKey", Value: v.DateKey},
			}, 1)
		}
		if event.Status == rewardTypes.SettlementStatus_Unpaid {
			agg.UnpaidCount++
		}

		holding := rewardTypes.HoldingState_Holding
		if state, ok := overrides[event.Hash]; ok {
			holding = state
		}
		ex := exemption.Evaluate(event, holding, p.policyTable, tracker.Country, now)
		if ex.Exempt {
			agg.ExemptCount++
		}
	}
	return agg, nil
}
