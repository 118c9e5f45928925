// Package reconciliation owns the merge between the three views of a
// tracker's ledger: the local snapshot, the remote store, and a fresh
// ingestion pass. The merge key is the event hash.
package reconciliation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/nodeledger/rewards-tracker/pkg/storage"
	"go.uber.org/zap"
)

// Merge combines the local snapshot, the remote delta and a fresh
// ingestion result into one canonical set. Precedence:
//
//   - economic fields (amount, timestamp, source kind) are immutable
//     after first write; later appearances of the same hash never
//     change them
//   - settlement fields (status, settlementRef) from the remote delta
//     win over both local and fresh
//   - holding overrides live in a separate map and are not touched here
//
// The output is sorted descending by timestamp, ties broken by hash
// ascending, so repeated merges of the same inputs are byte-identical.
// Inputs are never mutated.
func Merge(local []*rewardTypes.RewardEvent, remoteDelta []*rewardTypes.RewardEvent, fresh []*rewardTypes.RewardEvent) []*rewardTypes.RewardEvent {
	byHash := make(map[string]*rewardTypes.RewardEvent, len(local)+len(fresh))

	for _, e := range local {
		byHash[e.Hash] = e.Clone()
	}
	for _, e := range fresh {
		if _, seen := byHash[e.Hash]; !seen {
			byHash[e.Hash] = e.Clone()
		}
	}
	for _, e := range remoteDelta {
		existing, seen := byHash[e.Hash]
		if !seen {
			byHash[e.Hash] = e.Clone()
			continue
		}
		existing.Status = e.Status
		existing.SettlementRef = e.SettlementRef
	}

	merged := make([]*rewardTypes.RewardEvent, 0, len(byHash))
	for _, e := range byHash {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].TimestampSec != merged[j].TimestampSec {
			return merged[i].TimestampSec > merged[j].TimestampSec
		}
		return merged[i].Hash < merged[j].Hash
	})
	return merged
}

// Engine applies merges to the two stores and carries the user-facing
// settlement and holding mutators.
type Engine struct {
	localCache  storage.LocalCache
	remoteStore storage.RemoteStore
	logger      *zap.Logger
}

func NewEngine(localCache storage.LocalCache, remoteStore storage.RemoteStore, l *zap.Logger) *Engine {
	return &Engine{
		localCache:  localCache,
		remoteStore: remoteStore,
		logger:      l,
	}
}

// Reconcile merges a fresh ingestion result for the tracker and writes
// the canonical set back to both stores. The local snapshot is replaced
// wholesale; the remote store gets an idempotent upsert. A remote write
// failure is logged and does not fail the reconciliation, the next pass
// converges.
func (e *Engine) Reconcile(tracker *rewardTypes.Tracker, fresh []*rewardTypes.RewardEvent) ([]*rewardTypes.RewardEvent, error) {
	local, err := e.localCache.GetSnapshot(tracker.Id)
	if err != nil {
		return nil, fmt.Errorf("failed to load local snapshot: %w", err)
	}
	remote, err := e.remoteStore.ListRewardEventsSince(tracker.Id, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load remote events: %w", err)
	}

	merged := Merge(local, remote, fresh)

	if err := e.localCache.ReplaceSnapshot(tracker.Id, merged); err != nil {
		return nil, fmt.Errorf("failed to replace local snapshot: %w", err)
	}
	if err := e.remoteStore.UpsertRewardEvents(merged); err != nil {
		e.logger.Sugar().Errorw("Failed to upsert reward events to remote store",
			zap.String("trackerId", tracker.Id),
			zap.Int("eventCount", len(merged)),
			zap.Error(err),
		)
	}
	return merged, nil
}

// MarkPaid records a settlement for one event in both stores. The
// settlement reference identifies the payout that covered the reward.
func (e *Engine) MarkPaid(trackerId string, hash string, settlementRef string) error {
	return e.setSettlement(trackerId, hash, rewardTypes.SettlementStatus_Paid, settlementRef)
}

// MarkUnpaid reverts an event to unpaid and clears its settlement
// reference.
func (e *Engine) MarkUnpaid(trackerId string, hash string) error {
	return e.setSettlement(trackerId, hash, rewardTypes.SettlementStatus_Unpaid, "")
}

func (e *Engine) setSettlement(trackerId string, hash string, status rewardTypes.SettlementStatus, settlementRef string) error {
	event, err := e.localCache.GetEvent(trackerId, hash)
	if err != nil {
		return fmt.Errorf("failed to load event '%s': %w", hash, err)
	}
	updated := event.Clone()
	updated.Status = status
	updated.SettlementRef = settlementRef

	// Remote first. It is the source of truth for settlement state, so a
	// remote failure must not leave the local copy ahead of it.
	if err := e.remoteStore.UpsertRewardEvents([]*rewardTypes.RewardEvent{updated}); err != nil {
		return fmt.Errorf("failed to upsert settlement to remote store: %w", err)
	}
	if err := e.localCache.PutEvent(updated); err != nil {
		return fmt.Errorf("failed to update local event: %w", err)
	}
	return nil
}

// SetHoldingOverride records the user's holding state for one event. The
// override map is local-only and survives snapshot replaces.
func (e *Engine) SetHoldingOverride(trackerId string, hash string, state rewardTypes.HoldingState) error {
	if err := e.localCache.PutHoldingOverride(trackerId, hash, state); err != nil {
		return fmt.Errorf("failed to store holding override: %w", err)
	}
	return nil
}

// PurgeTracker deletes every trace of a tracker's ledger: the local
// snapshot, the holding override map and the remote rows. All three
// deletions are attempted even when an earlier one fails; failures are
// joined and returned, never swallowed.
func (e *Engine) PurgeTracker(trackerId string) error {
	var purgeErrors []error

	if err := e.localCache.DeleteSnapshot(trackerId); err != nil {
		purgeErrors = append(purgeErrors, fmt.Errorf("failed to delete local snapshot: %w", err))
	}
	if err := e.localCache.DeleteHoldingOverrides(trackerId); err != nil {
		purgeErrors = append(purgeErrors, fmt.Errorf("failed to delete holding overrides: %w", err))
	}
	if err := e.remoteStore.DeleteRewardEvents(trackerId); err != nil {
		purgeErrors = append(purgeErrors, fmt.Errorf("failed to delete remote events: %w", err))
	}

	if len(purgeErrors) > 0 {
		e.logger.Sugar().Errorw("Tracker purge completed with failures",
			zap.String("trackerId", trackerId),
			zap.Int("failureCount", len(purgeErrors)),
		)
		return errors.Join(purgeErrors...)
	}
	return nil
}
