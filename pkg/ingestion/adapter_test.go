package ingestion

import (
	"context"
	"fmt"
	"testing"

	"github.com/nodeledger/rewards-tracker/internal/logger"
	"github.com/nodeledger/rewards-tracker/pkg/clients/beaconchain"
	"github.com/nodeledger/rewards-tracker/pkg/clients/etherscan"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

const trackedAddress = "0x1f9090aaE28b8a3dCeaDf281B0F12828e676c326"

type fakeExplorer struct {
	transactions []*etherscan.Transaction
	internal     []*etherscan.Transaction
	withdrawals  []*etherscan.BeaconWithdrawal

	transactionsErr error
	internalErr     error
	withdrawalsErr  error
}

func (f *fakeExplorer) ListTransactions(ctx context.Context, address string) ([]*etherscan.Transaction, error) {
	return f.transactions, f.transactionsErr
}

func (f *fakeExplorer) ListInternalTransactions(ctx context.Context, address string) ([]*etherscan.Transaction, error) {
	return f.internal, f.internalErr
}

func (f *fakeExplorer) ListBeaconWithdrawals(ctx context.Context, address string) ([]*etherscan.BeaconWithdrawal, error) {
	return f.withdrawals, f.withdrawalsErr
}

func testTracker() *rewardTypes.Tracker {
	return &rewardTypes.Tracker{
		Id:                "tracker-1",
		WithdrawalAddress: trackedAddress,
	}
}

func newAdapter(explorer ExplorerSource) *Adapter {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	return NewAdapter(explorer, l)
}

func Test_Ingest(t *testing.T) {
	t.Run("Filters to incoming, positive, non-failed transfers", func(t *testing.T) {
		explorer := &fakeExplorer{
			transactions: []*etherscan.Transaction{
				{Hash: "0xAAA", TimeStamp: "1700000100", To: trackedAddress, Value: "120000000000000000", IsError: "0"},
				// outgoing
				{Hash: "0xbbb", TimeStamp: "1700000200", To: "0x000000000000000000000000000000000000dead", Value: "5", IsError: "0"},
				// zero value
				{Hash: "0xccc", TimeStamp: "1700000300", To: trackedAddress, Value: "0", IsError: "0"},
				// failed
				{Hash: "0xddd", TimeStamp: "1700000400", To: trackedAddress, Value: "10", IsError: "1"},
			},
		}

		events, feedErrors := newAdapter(explorer).Ingest(context.Background(), testTracker(), 0)

		assert.Equal(t, 0, len(feedErrors))
		assert.Equal(t, 1, len(events))
		assert.Equal(t, "0xaaa", events[0].Hash)
		assert.True(t, events[0].Amount.Equal(decimal.NewFromFloat(0.12)))
		assert.Equal(t, rewardTypes.SourceKind_DirectTransfer, events[0].SourceKind)
	})

	t.Run("Destination match is case-insensitive", func(t *testing.T) {
		explorer := &fakeExplorer{
			transactions: []*etherscan.Transaction{
				{Hash: "0xaaa", TimeStamp: "1700000100", To: "0x1F9090AAE28B8A3DCEADF281B0F12828E676C326", Value: "1000000000000000000", IsError: "0"},
			},
		}

		events, _ := newAdapter(explorer).Ingest(context.Background(), testTracker(), 0)
		assert.Equal(t, 1, len(events))
	})

	t.Run("Events at or before the lower bound are excluded", func(t *testing.T) {
		explorer := &fakeExplorer{
			transactions: []*etherscan.Transaction{
				{Hash: "0xaaa", TimeStamp: "1700000100", To: trackedAddress, Value: "10", IsError: "0"},
				{Hash: "0xbbb", TimeStamp: "1700000101", To: trackedAddress, Value: "10", IsError: "0"},
			},
		}

		events, _ := newAdapter(explorer).Ingest(context.Background(), testTracker(), 1700000100)
		assert.Equal(t, 1, len(events))
		assert.Equal(t, "0xbbb", events[0].Hash)
	})

	t.Run("First-seen entry wins on cross-feed duplicate hash", func(t *testing.T) {
		explorer := &fakeExplorer{
			transactions: []*etherscan.Transaction{
				{Hash: "0xabc", TimeStamp: "1700000100", To: trackedAddress, Value: "1000000000000000000", IsError: "0"},
			},
			internal: []*etherscan.Transaction{
				{Hash: "0xabc", TimeStamp: "1700000100", To: trackedAddress, Value: "2000000000000000000", IsError: "0"},
			},
		}

		events, _ := newAdapter(explorer).Ingest(context.Background(), testTracker(), 0)

		assert.Equal(t, 1, len(events))
		assert.Equal(t, rewardTypes.SourceKind_DirectTransfer, events[0].SourceKind)
		assert.True(t, events[0].Amount.Equal(decimal.NewFromInt(1)))
	})

	t.Run("Withdrawal amounts are gwei and hashes are synthesized", func(t *testing.T) {
		explorer := &fakeExplorer{
			withdrawals: []*etherscan.BeaconWithdrawal{
				{WithdrawalIndex: "14740849", Address: trackedAddress, Amount: "18283983", Timestamp: "1700003000"},
			},
		}

		events, _ := newAdapter(explorer).Ingest(context.Background(), testTracker(), 0)

		assert.Equal(t, 1, len(events))
		assert.Equal(t, "wd_tracker-1_14740849", events[0].Hash)
		assert.True(t, events[0].Amount.Equal(decimal.NewFromFloat(0.018283983)))
		assert.Equal(t, rewardTypes.SourceKind_ConsensusWithdrawal, events[0].SourceKind)
	})

	t.Run("One failed sub-feed does not abort the others", func(t *testing.T) {
		explorer := &fakeExplorer{
			transactions: []*etherscan.Transaction{
				{Hash: "0xaaa", TimeStamp: "1700000100", To: trackedAddress, Value: "10", IsError: "0"},
			},
			internalErr: fmt.Errorf("internal feed unavailable"),
			withdrawals: []*etherscan.BeaconWithdrawal{
				{WithdrawalIndex: "1", Address: trackedAddress, Amount: "5000", Timestamp: "1700000200"},
			},
		}

		events, feedErrors := newAdapter(explorer).Ingest(context.Background(), testTracker(), 0)

		assert.Equal(t, 2, len(events))
		assert.Equal(t, 1, len(feedErrors))
		assert.Equal(t, Feed_InternalTransfers, feedErrors[0].Feed)
	})

	t.Run("Fee recipient address is also ingested", func(t *testing.T) {
		tracker := testTracker()
		tracker.FeeRecipientAddress = "0x000000000000000000000000000000000000beef"

		calls := 0
		explorer := &countingExplorer{inner: &fakeExplorer{}, calls: &calls}

		_, _ = newAdapter(explorer).Ingest(context.Background(), tracker, 0)

		// direct + internal for each of the two addresses, withdrawals once
		assert.Equal(t, 5, calls)
	})
}

type countingExplorer struct {
	inner ExplorerSource
	calls *int
}

func (c *countingExplorer) ListTransactions(ctx context.Context, address string) ([]*etherscan.Transaction, error) {
	*c.calls++
	return c.inner.ListTransactions(ctx, address)
}

func (c *countingExplorer) ListInternalTransactions(ctx context.Context, address string) ([]*etherscan.Transaction, error) {
	*c.calls++
	return c.inner.ListInternalTransactions(ctx, address)
}

func (c *countingExplorer) ListBeaconWithdrawals(ctx context.Context, address string) ([]*etherscan.BeaconWithdrawal, error) {
	*c.calls++
	return c.inner.ListBeaconWithdrawals(ctx, address)
}

func Test_EventFromEpochIncome(t *testing.T) {
	tracker := testTracker()

	t.Run("Synthesizes a collision-free hash and normalizes gwei", func(t *testing.T) {
		event, ok := EventFromEpochIncome(tracker, &beaconchain.EpochIncome{Epoch: 250000, IncomeGwei: 14230}, 1700099999)

		assert.True(t, ok)
		assert.Equal(t, "beacon_tracker-1_250000", event.Hash)
		assert.Equal(t, uint64(1700099999), event.TimestampSec)
		assert.True(t, event.Amount.Equal(decimal.NewFromFloat(0.00001423)))
	})

	t.Run("Zero income yields no event", func(t *testing.T) {
		_, ok := EventFromEpochIncome(tracker, &beaconchain.EpochIncome{Epoch: 250000, IncomeGwei: 0}, 1700099999)
		assert.False(t, ok)
	})
}
