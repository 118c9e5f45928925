package rewardTypes

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_DateKeys(t *testing.T) {
	t.Run("Date key is derived in UTC", func(t *testing.T) {
		// 2021-12-31T23:59:59Z
		assert.Equal(t, "2021-12-31", DateKeyFromTimestamp(1640995199))
		// one second later rolls the UTC day
		assert.Equal(t, "2022-01-01", DateKeyFromTimestamp(1640995200))
	})

	t.Run("Previous date key crosses month and year boundaries", func(t *testing.T) {
		assert.Equal(t, "2021-12-31", PreviousDateKey("2022-01-01"))
		assert.Equal(t, "2022-02-28", PreviousDateKey("2022-03-01"))
		assert.Equal(t, "2024-02-29", PreviousDateKey("2024-03-01"))
	})

	t.Run("Invalid date key is returned unchanged", func(t *testing.T) {
		assert.Equal(t, "not-a-date", PreviousDateKey("not-a-date"))
	})
}

func Test_RewardEventClone(t *testing.T) {
	event := &RewardEvent{
		TrackerId:    "tracker-1",
		Hash:         "0xabc",
		TimestampSec: 1700000000,
		Amount:       decimal.NewFromFloat(0.25),
		SourceKind:   SourceKind_DirectTransfer,
		Status:       SettlementStatus_Unpaid,
	}

	clone := event.Clone()
	clone.Status = SettlementStatus_Paid
	clone.SettlementRef = "0xdef"

	assert.Equal(t, SettlementStatus_Unpaid, event.Status)
	assert.Equal(t, "", event.SettlementRef)
	assert.True(t, clone.Amount.Equal(event.Amount))
}
