package trackerRegistry

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/nodeledger/rewards-tracker/pkg/reconciliation"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/nodeledger/rewards-tracker/pkg/storage"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TrackerRegistry owns the tracker lifecycle. Changing a tracker's
// on-chain identity (addresses or validator pubkey) purges its ledger
// and resets both sync cursors, since the old events no longer belong
// to the tracked identity.
type TrackerRegistry struct {
	remoteStore storage.RemoteStore
	engine      *reconciliation.Engine
	logger      *zap.Logger
}

func NewTrackerRegistry(
	remoteStore storage.RemoteStore,
	engine *reconciliation.Engine,
	l *zap.Logger,
) *TrackerRegistry {
	return &TrackerRegistry{
		remoteStore: remoteStore,
		engine:      engine,
		logger:      l,
	}
}

var maxTaxRate = decimal.NewFromInt(100)

func validateTracker(tracker *rewardTypes.Tracker) error {
	if tracker.WithdrawalAddress == "" {
		return errors.New("withdrawal address is required")
	}
	if !common.IsHexAddress(tracker.WithdrawalAddress) {
		return errors.Errorf("invalid withdrawal address '%s'", tracker.WithdrawalAddress)
	}
	if tracker.FeeRecipientAddress != "" && !common.IsHexAddress(tracker.FeeRecipientAddress) {
		return errors.Errorf("invalid fee recipient address '%s'", tracker.FeeRecipientAddress)
	}
	if tracker.ValidatorPubkey != "" && !isValidPubkey(tracker.ValidatorPubkey) {
		return errors.Errorf("invalid validator pubkey '%s'", tracker.ValidatorPubkey)
	}
	if tracker.Currency == "" {
		return errors.New("currency is required")
	}
	if tracker.TaxRatePercent.IsNegative() || tracker.TaxRatePercent.GreaterThan(maxTaxRate) {
		return errors.Errorf("tax rate must be between 0 and 100, got '%s'", tracker.TaxRatePercent)
	}
	return nil
}

// isValidPubkey checks for a 48-byte hex BLS pubkey, with or without
// the 0x prefix.
func isValidPubkey(pubkey string) bool {
	hexPart := strings.TrimPrefix(strings.ToLower(pubkey), "0x")
	if len(hexPart) != 96 {
		return false
	}
	for _, r := range hexPart {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// normalizeTracker canonicalizes casing. The pubkey keeps its 0x
// prefix, which is the form the beacon explorer client expects.
func normalizeTracker(tracker *rewardTypes.Tracker) {
	tracker.WithdrawalAddress = strings.ToLower(tracker.WithdrawalAddress)
	tracker.FeeRecipientAddress = strings.ToLower(tracker.FeeRecipientAddress)
	if tracker.ValidatorPubkey != "" {
		tracker.ValidatorPubkey = "0x" + strings.TrimPrefix(strings.ToLower(tracker.ValidatorPubkey), "0x")
	}
	tracker.Country = strings.ToUpper(tracker.Country)
	tracker.Currency = strings.ToLower(tracker.Currency)
}

// CreateTracker registers a new tracked address. An empty Id gets a
// generated one. Both cursors start unset so the first sync pass
// backfills the explorer feeds and pins the epoch cursor.
func (tr *TrackerRegistry) CreateTracker(tracker *rewardTypes.Tracker) (*rewardTypes.Tracker, error) {
	if err := validateTracker(tracker); err != nil {
		return nil, err
	}
	normalizeTracker(tracker)

	if tracker.Id == "" {
		tracker.Id = uuid.New().String()
	}
	tracker.LastFetchedTimestamp = 0
	tracker.LastSyncedEpoch = nil

	if err := tr.remoteStore.UpsertTracker(tracker); err != nil {
		return nil, errors.Wrap(err, "failed to create tracker")
	}
	tr.logger.Sugar().Infow("Created tracker",
		zap.String("trackerId", tracker.Id),
		zap.String("withdrawalAddress", tracker.WithdrawalAddress),
	)
	return tracker, nil
}

// UpdateTracker applies changes to an existing tracker. Tax fields
// update in place. An identity change wipes the tracker's events and
// resets the cursors so the next sync rebuilds the ledger from scratch.
func (tr *TrackerRegistry) UpdateTracker(tracker *rewardTypes.Tracker) (*rewardTypes.Tracker, error) {
	if tracker.Id == "" {
		return nil, errors.New("tracker id is required")
	}
	existing, err := tr.remoteStore.GetTracker(tracker.Id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load tracker")
	}
	if err := validateTracker(tracker); err != nil {
		return nil, err
	}
	normalizeTracker(tracker)

	if identityChanged(existing, tracker) {
		tr.logger.Sugar().Infow("Tracker identity changed, purging ledger",
			zap.String("trackerId", tracker.Id),
		)
		if err := tr.engine.PurgeTracker(tracker.Id); err != nil {
			return nil, errors.Wrap(err, "failed to purge tracker ledger")
		}
		tracker.LastFetchedTimestamp = 0
		tracker.LastSyncedEpoch = nil
	} else {
		tracker.LastFetchedTimestamp = existing.LastFetchedTimestamp
		tracker.LastSyncedEpoch = existing.LastSyncedEpoch
	}

	if err := tr.remoteStore.UpsertTracker(tracker); err != nil {
		return nil, errors.Wrap(err, "failed to update tracker")
	}
	return tracker, nil
}

// DeleteTracker removes the tracker and every trace of its ledger from
// both stores.
func (tr *TrackerRegistry) DeleteTracker(trackerId string) error {
	if _, err := tr.remoteStore.GetTracker(trackerId); err != nil {
		return errors.Wrap(err, "failed to load tracker")
	}
	if err := tr.engine.PurgeTracker(trackerId); err != nil {
		return errors.Wrap(err, "failed to purge tracker ledger")
	}
	if err := tr.remoteStore.DeleteTracker(trackerId); err != nil {
		return errors.Wrap(err, "failed to delete tracker")
	}
	tr.logger.Sugar().Infow("Deleted tracker", zap.String("trackerId", trackerId))
	return nil
}

func (tr *TrackerRegistry) GetTracker(trackerId string) (*rewardTypes.Tracker, error) {
	return tr.remoteStore.GetTracker(trackerId)
}

func (tr *TrackerRegistry) ListTrackers() ([]*rewardTypes.Tracker, error) {
	return tr.remoteStore.ListTrackers()
}

func identityChanged(existing *rewardTypes.Tracker, updated *rewardTypes.Tracker) bool {
	return existing.WithdrawalAddress != updated.WithdrawalAddress ||
		existing.FeeRecipientAddress != updated.FeeRecipientAddress ||
		existing.ValidatorPubkey != updated.ValidatorPubkey
}
