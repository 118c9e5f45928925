package rewardTypes

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind distinguishes which explorer feed a reward event came from.
type SourceKind string

const (
	SourceKind_DirectTransfer      SourceKind = "direct_transfer"
	SourceKind_InternalTransfer    SourceKind = "internal_transfer"
	SourceKind_ConsensusWithdrawal SourceKind = "consensus_withdrawal"
)

// SettlementStatus tracks whether a reward has been swapped to fiat.
type SettlementStatus string

const (
	SettlementStatus_Unpaid SettlementStatus = "unpaid"
	SettlementStatus_Paid   SettlementStatus = "paid"
)

// HoldingState is user-set, local-first UI state, independent of the
// settlement status.
type HoldingState string

const (
	HoldingState_Holding HoldingState = "holding"
	HoldingState_Sold    HoldingState = "sold"
)

// RewardEvent is one canonical incoming value transfer credited to a
// tracked address. Hash is the merge key: two events with the same hash
// are the same economic event. Amount, TimestampSec and SourceKind are
// immutable once first written.
type RewardEvent struct {
	TrackerId     string           `json:"trackerId" gorm:"primaryKey;type:varchar(64)"`
	Hash          string           `json:"hash" gorm:"primaryKey;type:varchar(128)"`
	TimestampSec  uint64           `json:"timestampSec" gorm:"index"`
	Amount        decimal.Decimal  `json:"amount" gorm:"type:numeric"`
	SourceKind    SourceKind       `json:"sourceKind" gorm:"type:varchar(32)"`
	Status        SettlementStatus `json:"status" gorm:"type:varchar(16)"`
	SettlementRef string           `json:"settlementRef" gorm:"type:varchar(128)"`
	CreatedAt     time.Time        `json:"-"`
	UpdatedAt     time.Time        `json:"-"`
}

func (r *RewardEvent) TableName() string {
	return "reward_events"
}

// Clone returns a deep copy. The merge engine never mutates its inputs.
func (r *RewardEvent) Clone() *RewardEvent {
	c := *r
	return &c
}

// HoldingOverride is the per-hash user override, kept in a separate
// key-value map layered over the canonical set.
type HoldingOverride struct {
	TrackerId string       `json:"trackerId"`
	Hash      string       `json:"hash"`
	State     HoldingState `json:"state"`
}

// Tracker is one tracked address configuration, owning zero or more
// reward events and the per-source sync cursors.
type Tracker struct {
	Id                  string          `json:"id" gorm:"primaryKey;type:varchar(64)"`
	WithdrawalAddress   string          `json:"withdrawalAddress" gorm:"type:varchar(64);index"`
	FeeRecipientAddress string          `json:"feeRecipientAddress" gorm:"type:varchar(64)"`
	ValidatorPubkey     string          `json:"validatorPubkey" gorm:"type:varchar(128)"`
	Country             string          `json:"country" gorm:"type:varchar(8)"`
	TaxRatePercent      decimal.Decimal `json:"taxRatePercent" gorm:"type:numeric"`
	Currency            string          `json:"currency" gorm:"type:varchar(8)"`

	// LastFetchedTimestamp backs the EVM-style polling cursor. Zero means
	// the tracker has never been synced.
	LastFetchedTimestamp uint64 `json:"lastFetchedTimestamp"`

	// LastSyncedEpoch backs the consensus-layer cursor. Nil means the
	// cursor is uninitialized and tracking starts from the current epoch.
	LastSyncedEpoch    *uint64 `json:"lastSyncedEpoch"`
	TrackingStartEpoch uint64  `json:"trackingStartEpoch"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (t *Tracker) TableName() string {
	return "trackers"
}

// PriceEntry is one historical fiat price for the reward asset, immutable
// once published and looked up by UTC calendar date, never by range.
type PriceEntry struct {
	DateKey     string          `json:"dateKey" gorm:"primaryKey;type:varchar(10)"`
	Currency    string          `json:"currency" gorm:"primaryKey;type:varchar(8)"`
	FiatPerUnit decimal.Decimal `json:"fiatPerUnit" gorm:"type:numeric"`
	CreatedAt   time.Time       `json:"-"`
}

func (p *PriceEntry) TableName() string {
	return "price_entries"
}

// DateKeyFromTimestamp derives the UTC calendar date key for a unix
// timestamp. UTC, not local time, so valuation is deterministic across
// user timezones.
func DateKeyFromTimestamp(timestampSec uint64) string {
	return time.Unix(int64(timestampSec), 0).UTC().Format("2006-01-02")
}

// PreviousDateKey returns the date key one calendar day before the given
// one. Invalid keys come back unchanged.
func PreviousDateKey(dateKey string) string {
	t, err := time.Parse("2006-01-02", dateKey)
	if err != nil {
		return dateKey
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}
