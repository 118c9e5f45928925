package levelDbStore

import (
	"testing"

	"github.com/nodeledger/rewards-tracker/internal/logger"
	"github.com/nodeledger/rewards-tracker/pkg/clients/clientErrors"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func setup(t *testing.T) *LevelDbStore {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	store, err := NewLevelDbStore("", l)
	assert.Nil(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func event(trackerId string, hash string, ts uint64) *rewardTypes.RewardEvent {
	return &rewardTypes.RewardEvent{
		TrackerId:    trackerId,
		Hash:         hash,
		TimestampSec: ts,
		Amount:       decimal.NewFromFloat(0.25),
		SourceKind:   rewardTypes.SourceKind_DirectTransfer,
		Status:       rewardTypes.SettlementStatus_Unpaid,
	}
}

func Test_LevelDbStore(t *testing.T) {
	t.Run("ReplaceSnapshot replaces the full set", func(t *testing.T) {
		store := setup(t)

		assert.Nil(t, store.ReplaceSnapshot("t1", []*rewardTypes.RewardEvent{
			event("t1", "0xaaa", 100),
			event("t1", "0xbbb", 200),
		}))
		assert.Nil(t, store.ReplaceSnapshot("t1", []*rewardTypes.RewardEvent{
			event("t1", "0xccc", 300),
		}))

		snapshot, err := store.GetSnapshot("t1")
		assert.Nil(t, err)
		assert.Equal(t, 1, len(snapshot))
		assert.Equal(t, "0xccc", snapshot[0].Hash)
	})

	t.Run("Snapshots are isolated per tracker", func(t *testing.T) {
		store := setup(t)

		assert.Nil(t, store.PutEvent(event("t1", "0xaaa", 100)))
		assert.Nil(t, store.PutEvent(event("t2", "0xbbb", 200)))

		snapshot, err := store.GetSnapshot("t1")
		assert.Nil(t, err)
		assert.Equal(t, 1, len(snapshot))
		assert.Equal(t, "0xaaa", snapshot[0].Hash)
	})

	t.Run("GetEvent round-trips decimals and returns typed not-found", func(t *testing.T) {
		store := setup(t)

		assert.Nil(t, store.PutEvent(event("t1", "0xaaa", 100)))

		found, err := store.GetEvent("t1", "0xaaa")
		assert.Nil(t, err)
		assert.True(t, found.Amount.Equal(decimal.NewFromFloat(0.25)))

		_, err = store.GetEvent("t1", "0xmissing")
		assert.True(t, clientErrors.IsNotFound(err))
	})

	t.Run("Holding overrides survive a snapshot replace", func(t *testing.T) {
		store := setup(t)

		assert.Nil(t, store.PutEvent(event("t1", "0xaaa", 100)))
		assert.Nil(t, store.PutHoldingOverride("t1", "0xaaa", rewardTypes.HoldingState_Sold))

		assert.Nil(t, store.ReplaceSnapshot("t1", []*rewardTypes.RewardEvent{
			event("t1", "0xbbb", 200),
		}))

		state, ok, err := store.GetHoldingOverride("t1", "0xaaa")
		assert.Nil(t, err)
		assert.True(t, ok)
		assert.Equal(t, rewardTypes.HoldingState_Sold, state)
	})

	t.Run("Unset override reports absence without error", func(t *testing.T) {
		store := setup(t)

		_, ok, err := store.GetHoldingOverride("t1", "0xnothing")
		assert.Nil(t, err)
		assert.False(t, ok)
	})

	t.Run("ListHoldingOverrides strips the key prefix", func(t *testing.T) {
		store := setup(t)

		assert.Nil(t, store.PutHoldingOverride("t1", "0xaaa", rewardTypes.HoldingState_Sold))
		assert.Nil(t, store.PutHoldingOverride("t1", "0xbbb", rewardTypes.HoldingState_Holding))
		assert.Nil(t, store.PutHoldingOverride("t2", "0xccc", rewardTypes.HoldingState_Sold))

		overrides, err := store.ListHoldingOverrides("t1")
		assert.Nil(t, err)
		assert.Equal(t, 2, len(overrides))
		assert.Equal(t, rewardTypes.HoldingState_Sold, overrides["0xaaa"])
		assert.Equal(t, rewardTypes.HoldingState_Holding, overrides["0xbbb"])
	})

	t.Run("DeleteSnapshot and DeleteHoldingOverrides clear one tracker only", func(t *testing.T) {
		store := setup(t)

		assert.Nil(t, store.PutEvent(event("t1", "0xaaa", 100)))
		assert.Nil(t, store.PutEvent(event("t2", "0xbbb", 200)))
		assert.Nil(t, store.PutHoldingOverride("t1", "0xaaa", rewardTypes.HoldingState_Sold))

		assert.Nil(t, store.DeleteSnapshot("t1"))
		assert.Nil(t, store.DeleteHoldingOverrides("t1"))

		snapshot, err := store.GetSnapshot("t1")
		assert.Nil(t, err)
		assert.Equal(t, 0, len(snapshot))

		overrides, err := store.ListHoldingOverrides("t1")
		assert.Nil(t, err)
		assert.Equal(t, 0, len(overrides))

		other, err := store.GetSnapshot("t2")
		assert.Nil(t, err)
		assert.Equal(t, 1, len(other))
	})
}
