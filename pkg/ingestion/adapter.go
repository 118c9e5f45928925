// Package ingestion normalizes raw explorer and consensus records into
// reward events. Provider-shaped payloads never flow past this boundary:
// everything is validated and converted into the strict RewardEvent
// shape here.
package ingestion

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/nodeledger/rewards-tracker/pkg/clients/beaconchain"
	"github.com/nodeledger/rewards-tracker/pkg/clients/etherscan"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/nodeledger/rewards-tracker/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExplorerSource is the slice of the explorer client the adapter needs.
type ExplorerSource interface {
	ListTransactions(ctx context.Context, address string) ([]*etherscan.Transaction, error)
	ListInternalTransactions(ctx context.Context, address string) ([]*etherscan.Transaction, error)
	ListBeaconWithdrawals(ctx context.Context, address string) ([]*etherscan.BeaconWithdrawal, error)
}

// Feed names a sub-feed for failure reporting.
type Feed string

const (
	Feed_DirectTransfers   Feed = "direct_transfers"
	Feed_InternalTransfers Feed = "internal_transfers"
	Feed_BeaconWithdrawals Feed = "beacon_withdrawals"
)

// FeedError is a failure of one sub-feed. One feed failing does not
// abort ingestion of the others; the merge proceeds with what succeeded.
type FeedError struct {
	Feed Feed
	Err  error
}

func (e FeedError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.Feed, e.Err)
}

type Adapter struct {
	explorer ExplorerSource
	logger   *zap.Logger
}

func NewAdapter(explorer ExplorerSource, l *zap.Logger) *Adapter {
	return &Adapter{
		explorer: explorer,
		logger:   l,
	}
}

// Ingest fetches the three explorer sub-feeds for a tracker's addresses
// and returns the deduplicated reward events newer than sinceSec. Each
// sub-feed is independently fallible; failures come back as FeedErrors
// alongside whatever the other feeds produced.
func (a *Adapter) Ingest(ctx context.Context, tracker *rewardTypes.Tracker, sinceSec uint64) ([]*rewardTypes.RewardEvent, []FeedError) {
	feedErrors := make([]FeedError, 0)

	// first-seen entry wins when the same hash shows up twice
	merged := orderedmap.New[string, *rewardTypes.RewardEvent]()

	addresses := a.trackedAddresses(tracker)

	for _, address := range addresses {
		direct, err := a.explorer.ListTransactions(ctx, address)
		if err != nil {
			a.logFeedFailure(Feed_DirectTransfers, address, err)
			feedErrors = append(feedErrors, FeedError{Feed: Feed_DirectTransfers, Err: err})
		} else {
			a.mergeTransactions(merged, tracker, address, direct, rewardTypes.SourceKind_DirectTransfer, sinceSec)
		}

		internal, err := a.explorer.ListInternalTransactions(ctx, address)
		if err != nil {
			a.logFeedFailure(Feed_InternalTransfers, address, err)
			feedErrors = append(feedErrors, FeedError{Feed: Feed_InternalTransfers, Err: err})
		} else {
			a.mergeTransactions(merged, tracker, address, internal, rewardTypes.SourceKind_InternalTransfer, sinceSec)
		}
	}

	withdrawals, err := a.explorer.ListBeaconWithdrawals(ctx, tracker.WithdrawalAddress)
	if err != nil {
		a.logFeedFailure(Feed_BeaconWithdrawals, tracker.WithdrawalAddress, err)
		feedErrors = append(feedErrors, FeedError{Feed: Feed_BeaconWithdrawals, Err: err})
	} else {
		a.mergeWithdrawals(merged, tracker, withdrawals, sinceSec)
	}

	events := make([]*rewardTypes.RewardEvent, 0, merged.Len())
	for pair := merged.Oldest(); pair != nil; pair = pair.Next() {
		events = append(events, pair.Value)
	}
	return events, feedErrors
}

func (a *Adapter) trackedAddresses(tracker *rewardTypes.Tracker) []string {
	addresses := []string{tracker.WithdrawalAddress}
	fee := tracker.FeeRecipientAddress
	if fee != "" && !utils.AreAddressesEqual(fee, tracker.WithdrawalAddress) {
		addresses = append(addresses, fee)
	}
	return addresses
}

func (a *Adapter) logFeedFailure(feed Feed, address string, err error) {
	a.logger.Sugar().Errorw("Sub-feed ingestion failed",
		zap.String("feed", string(feed)),
		zap.String("address", address),
		zap.Error(err),
	)
}

func (a *Adapter) mergeTransactions(
	merged *orderedmap.OrderedMap[string, *rewardTypes.RewardEvent],
	tracker *rewardTypes.Tracker,
	address string,
	txs []*etherscan.Transaction,
	kind rewardTypes.SourceKind,
	sinceSec uint64,
) {
	for _, tx := range txs {
		event, ok := a.normalizeTransaction(tracker, address, tx, kind, sinceSec)
		if !ok {
			continue
		}
		if _, exists := merged.Get(event.Hash); exists {
			continue
		}
		merged.Set(event.Hash, event)
	}
}

// normalizeTransaction converts one raw explorer record into a reward
// event, or rejects it: only incoming, strictly positive, non-failed
// transfers newer than the cursor bound survive.
func (a *Adapter) normalizeTransaction(
	tracker *rewardTypes.Tracker,
	address string,
	tx *etherscan.Transaction,
	kind rewardTypes.SourceKind,
	sinceSec uint64,
) (*rewardTypes.RewardEvent, bool) {
	if !utils.AreAddressesEqual(tx.To, address) {
		return nil, false
	}
	if tx.IsError == "1" {
		return nil, false
	}

	timestamp, err := parseUint(tx.TimeStamp)
	if err != nil {
		a.logger.Sugar().Warnw("Skipping transaction with unparseable timestamp",
			zap.String("hash", tx.Hash),
			zap.String("timeStamp", tx.TimeStamp),
		)
		return nil, false
	}
	if timestamp <= sinceSec {
		return nil, false
	}

	wei, err := decimal.NewFromString(tx.Value)
	if err != nil || !wei.IsPositive() {
		return nil, false
	}

	return &rewardTypes.RewardEvent{
		TrackerId:    tracker.Id,
		Hash:         strings.ToLower(tx.Hash),
		TimestampSec: timestamp,
		Amount:       wei.Shift(-18),
		SourceKind:   kind,
		Status:       rewardTypes.SettlementStatus_Unpaid,
	}, true
}

func (a *Adapter) mergeWithdrawals(
	merged *orderedmap.OrderedMap[string, *rewardTypes.RewardEvent],
	tracker *rewardTypes.Tracker,
	withdrawals []*etherscan.BeaconWithdrawal,
	sinceSec uint64,
) {
	for _, wd := range withdrawals {
		event, ok := a.normalizeWithdrawal(tracker, wd, sinceSec)
		if !ok {
			continue
		}
		if _, exists := merged.Get(event.Hash); exists {
			continue
		}
		merged.Set(event.Hash, event)
	}
}

func (a *Adapter) normalizeWithdrawal(
	tracker *rewardTypes.Tracker,
	wd *etherscan.BeaconWithdrawal,
	sinceSec uint64,
) (*rewardTypes.RewardEvent, bool) {
	if !utils.AreAddressesEqual(wd.Address, tracker.WithdrawalAddress) {
		return nil, false
	}

	timestamp, err := parseUint(wd.Timestamp)
	if err != nil {
		a.logger.Sugar().Warnw("Skipping withdrawal with unparseable timestamp",
			zap.String("withdrawalIndex", wd.WithdrawalIndex),
			zap.String("timestamp", wd.Timestamp),
		)
		return nil, false
	}
	if timestamp <= sinceSec {
		return nil, false
	}

	gwei, err := decimal.NewFromString(wd.Amount)
	if err != nil || !gwei.IsPositive() {
		return nil, false
	}

	return &rewardTypes.RewardEvent{
		TrackerId: tracker.Id,
		// withdrawals have no native transaction hash, so the key is
		// synthesized; the prefix keeps it clear of 32-byte tx hashes
		Hash:         WithdrawalHash(tracker.Id, wd.WithdrawalIndex),
		TimestampSec: timestamp,
		Amount:       gwei.Shift(-9),
		SourceKind:   rewardTypes.SourceKind_ConsensusWithdrawal,
		Status:       rewardTypes.SettlementStatus_Unpaid,
	}, true
}

// WithdrawalHash synthesizes the merge key for an explorer beacon
// withdrawal record.
func WithdrawalHash(trackerId string, withdrawalIndex string) string {
	return fmt.Sprintf("wd_%s_%s", trackerId, withdrawalIndex)
}

// BeaconEpochHash synthesizes the merge key for a per-epoch consensus
// income record.
func BeaconEpochHash(trackerId string, epoch uint64) string {
	return fmt.Sprintf("beacon_%s_%d", trackerId, epoch)
}

// EventFromEpochIncome converts one consensus-layer epoch income record
// into a reward event stamped with the epoch's closing second. Zero
// income yields no event.
func EventFromEpochIncome(
	tracker *rewardTypes.Tracker,
	income *beaconchain.EpochIncome,
	epochEndSec uint64,
) (*rewardTypes.RewardEvent, bool) {
	if income.IncomeGwei == 0 {
		return nil, false
	}
	return &rewardTypes.RewardEvent{
		TrackerId:    tracker.Id,
		Hash:         BeaconEpochHash(tracker.Id, income.Epoch),
		TimestampSec: epochEndSec,
		Amount:       decimal.NewFromUint64(income.IncomeGwei).Shift(-9),
		SourceKind:   rewardTypes.SourceKind_ConsensusWithdrawal,
		Status:       rewardTypes.SettlementStatus_Unpaid,
	}, true
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
