// Package storage defines the two persistence surfaces the engine talks
// to: the durable remote store and the fast local cache. The two are
// independently writable; the reconciliation engine owns the merge
// between them.
package storage

import (
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
)

// RemoteStore is the durable per-tracker store. It is the source of
// truth for settlement state (status, settlementRef) and for tracker
// configuration. Writes are idempotent upserts keyed by (tracker, hash).
type RemoteStore interface {
	ListTrackers() ([]*rewardTypes.Tracker, error)
	GetTracker(trackerId string) (*rewardTypes.Tracker, error)
	UpsertTracker(tracker *rewardTypes.Tracker) error
	DeleteTracker(trackerId string) error

	// UpsertRewardEvents inserts new events and updates settlement fields
	// of existing ones. Economic fields of existing rows are never
	// touched.
	UpsertRewardEvents(events []*rewardTypes.RewardEvent) error
	ListRewardEvents(trackerId string) ([]*rewardTypes.RewardEvent, error)
	// ListRewardEventsSince returns events with a timestamp strictly
	// greater than sinceSec, the remote delta for reconciliation.
	ListRewardEventsSince(trackerId string, sinceSec uint64) ([]*rewardTypes.RewardEvent, error)
	DeleteRewardEvents(trackerId string) error

	UpsertPriceEntries(entries []*rewardTypes.PriceEntry) error
	GetPriceEntry(dateKey string, currency string) (*rewardTypes.PriceEntry, error)
	ListPriceEntries(currency string) ([]*rewardTypes.PriceEntry, error)
}

// LocalCache is the cheap local store holding the canonical snapshot per
// tracker plus the user's holding overrides. The snapshot is only ever
// replaced wholesale by the reconciliation engine or patched by the
// explicit user mutators.
type LocalCache interface {
	GetSnapshot(trackerId string) ([]*rewardTypes.RewardEvent, error)
	ReplaceSnapshot(trackerId string, events []*rewardTypes.RewardEvent) error
	GetEvent(trackerId string, hash string) (*rewardTypes.RewardEvent, error)
	PutEvent(event *rewardTypes.RewardEvent) error
	DeleteSnapshot(trackerId string) error

	GetHoldingOverride(trackerId string, hash string) (rewardTypes.HoldingState, bool, error)
	PutHoldingOverride(trackerId string, hash string, state rewardTypes.HoldingState) error
	ListHoldingOverrides(trackerId string) (map[string]rewardTypes.HoldingState, error)
	DeleteHoldingOverrides(trackerId string) error

	Close() error
}
