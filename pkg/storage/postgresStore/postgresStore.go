// Package postgresStore implements the remote store on gorm/postgres.
// Reward event upserts only ever touch the settlement columns of
// existing rows; the economic columns keep their first-written values.
package postgresStore

import (
	"errors"
	"fmt"

	"github.com/nodeledger/rewards-tracker/pkg/clients/clientErrors"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresStore struct {
	Db     *gorm.DB
	logger *zap.Logger
}

func NewPostgresStore(db *gorm.DB, l *zap.Logger) *PostgresStore {
	return &PostgresStore{
		Db:     db,
		logger: l,
	}
}

func (s *PostgresStore) ListTrackers() ([]*rewardTypes.Tracker, error) {
	var trackers []*rewardTypes.Tracker
	res := s.Db.Model(&rewardTypes.Tracker{}).Order("id asc").Find(&trackers)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to list trackers: %w", res.Error)
	}
	return trackers, nil
}

func (s *PostgresStore) GetTracker(trackerId string) (*rewardTypes.Tracker, error) {
	var tracker rewardTypes.Tracker
	res := s.Db.First(&tracker, "id = ?", trackerId)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, &clientErrors.NotFoundError{Provider: "remoteStore", Entity: fmt.Sprintf("tracker '%s'", trackerId)}
	}
	if res.Error != nil {
		return nil, fmt.Errorf("failed to get tracker '%s': %w", trackerId, res.Error)
	}
	return &tracker, nil
}

func (s *PostgresStore) UpsertTracker(tracker *rewardTypes.Tracker) error {
	res := s.Db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(tracker)
	if res.Error != nil {
		return fmt.Errorf("failed to upsert tracker '%s': %w", tracker.Id, res.Error)
	}
	return nil
}

func (s *PostgresStore) DeleteTracker(trackerId string) error {
	res := s.Db.Delete(&rewardTypes.Tracker{}, "id = ?", trackerId)
	if res.Error != nil {
		return fmt.Errorf("failed to delete tracker '%s': %w", trackerId, res.Error)
	}
	return nil
}

// UpsertRewardEvents inserts new rows and refreshes only the settlement
// columns of existing ones. amount, timestamp_sec and source_kind are
// written once and never updated.
func (s *PostgresStore) UpsertRewardEvents(events []*rewardTypes.RewardEvent) error {
	if len(events) == 0 {
		return nil
	}
	res := s.Db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tracker_id"}, {Name: "hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "settlement_ref", "updated_at"}),
	}).CreateInBatches(&events, 500)
	if res.Error != nil {
		return fmt.Errorf("failed to upsert reward events: %w", res.Error)
	}
	return nil
}

func (s *PostgresStore) ListRewardEvents(trackerId string) ([]*rewardTypes.RewardEvent, error) {
	return s.ListRewardEventsSince(trackerId, 0)
}

func (s *PostgresStore) ListRewardEventsSince(trackerId string, sinceSec uint64) ([]*rewardTypes.RewardEvent, error) {
	var events []*rewardTypes.RewardEvent
	res := s.Db.Model(&rewardTypes.RewardEvent{}).
		Where("tracker_id = ? and timestamp_sec > ?", trackerId, sinceSec).
		Order("timestamp_sec desc, hash asc").
		Find(&events)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to list reward events for tracker '%s': %w", trackerId, res.Error)
	}
	return events, nil
}

func (s *PostgresStore) DeleteRewardEvents(trackerId string) error {
	res := s.Db.Delete(&rewardTypes.RewardEvent{}, "tracker_id = ?", trackerId)
	if res.Error != nil {
		return fmt.Errorf("failed to delete reward events for tracker '%s': %w", trackerId, res.Error)
	}
	return nil
}

// UpsertPriceEntries ignores conflicts: a published price for a date is
// immutable, so a re-fetch never overwrites it.
func (s *PostgresStore) UpsertPriceEntries(entries []*rewardTypes.PriceEntry) error {
	if len(entries) == 0 {
		return nil
	}
	res := s.Db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date_key"}, {Name: "currency"}},
		DoNothing: true,
	}).CreateInBatches(&entries, 500)
	if res.Error != nil {
		return fmt.Errorf("failed to upsert price entries: %w", res.Error)
	}
	return nil
}

func (s *PostgresStore) GetPriceEntry(dateKey string, currency string) (*rewardTypes.PriceEntry, error) {
	var entry rewardTypes.PriceEntry
	res := s.Db.First(&entry, "date_key = ? and currency = ?", dateKey, currency)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, &clientErrors.NotFoundError{Provider: "remoteStore", Entity: fmt.Sprintf("price entry '%s/%s'", dateKey, currency)}
	}
	if res.Error != nil {
		return nil, fmt.Errorf("failed to get price entry '%s/%s': %w", dateKey, currency, res.Error)
	}
	return &entry, nil
}

func (s *PostgresStore) ListPriceEntries(currency string) ([]*rewardTypes.PriceEntry, error) {
	var entries []*rewardTypes.PriceEntry
	res := s.Db.Model(&rewardTypes.PriceEntry{}).
		Where("currency = ?", currency).
		Order("date_key asc").
		Find(&entries)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to list price entries: %w", res.Error)
	}
	return entries, nil
}
