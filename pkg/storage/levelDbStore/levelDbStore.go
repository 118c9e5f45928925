// Package levelDbStore implements the local cache on LevelDB. Events
// and holding overrides are stored as JSON values under composite keys
// so one tracker's records share a key prefix and can be scanned or
// dropped in one pass.
package levelDbStore

import (
	"encoding/json"
	"fmt"

	"github.com/nodeledger/rewards-tracker/pkg/clients/clientErrors"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbStorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
)

type LevelDbStore struct {
	db     *leveldb.DB
	logger *zap.Logger
}

// NewLevelDbStore opens the cache at path. An empty path opens an
// in-memory database, used by tests and by runs that opt out of a
// persistent cache.
func NewLevelDbStore(path string, l *zap.Logger) (*LevelDbStore, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(leveldbStorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}
	return &LevelDbStore{db: db, logger: l}, nil
}

func eventKey(trackerId string, hash string) []byte {
	return []byte(fmt.Sprintf("event:%s:%s", trackerId, hash))
}

func eventPrefix(trackerId string) []byte {
	return []byte(fmt.Sprintf("event:%s:", trackerId))
}

func overrideKey(trackerId string, hash string) []byte {
	return []byte(fmt.Sprintf("override:%s:%s", trackerId, hash))
}

func overridePrefix(trackerId string) []byte {
	return []byte(fmt.Sprintf("override:%s:", trackerId))
}

func (s *LevelDbStore) GetSnapshot(trackerId string) ([]*rewardTypes.RewardEvent, error) {
	events := make([]*rewardTypes.RewardEvent, 0)
	iter := s.db.NewIterator(util.BytesPrefix(eventPrefix(trackerId)), nil)
	defer iter.Release()
	for iter.Next() {
		event := &rewardTypes.RewardEvent{}
		if err := json.Unmarshal(iter.Value(), event); err != nil {
			return nil, fmt.Errorf("failed to decode cached event '%s': %w", string(iter.Key()), err)
		}
		events = append(events, event)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to scan local snapshot: %w", err)
	}
	return events, nil
}

// ReplaceSnapshot swaps the full event set for the tracker in one write
// batch. Holding overrides are untouched.
func (s *LevelDbStore) ReplaceSnapshot(trackerId string, events []*rewardTypes.RewardEvent) error {
	batch := new(leveldb.Batch)

	iter := s.db.NewIterator(util.BytesPrefix(eventPrefix(trackerId)), nil)
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("failed to scan local snapshot: %w", err)
	}

	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to encode event '%s': %w", event.Hash, err)
		}
		batch.Put(eventKey(trackerId, event.Hash), value)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (s *LevelDbStore) GetEvent(trackerId string, hash string) (*rewardTypes.RewardEvent, error) {
	value, err := s.db.Get(eventKey(trackerId, hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, &clientErrors.NotFoundError{Provider: "localCache", Entity: fmt.Sprintf("event '%s'", hash)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read event '%s': %w", hash, err)
	}
	event := &rewardTypes.RewardEvent{}
	if err := json.Unmarshal(value, event); err != nil {
		return nil, fmt.Errorf("failed to decode event '%s': %w", hash, err)
	}
	return event, nil
}

func (s *LevelDbStore) PutEvent(event *rewardTypes.RewardEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event '%s': %w", event.Hash, err)
	}
	if err := s.db.Put(eventKey(event.TrackerId, event.Hash), value, nil); err != nil {
		return fmt.Errorf("failed to write event '%s': %w", event.Hash, err)
	}
	return nil
}

func (s *LevelDbStore) DeleteSnapshot(trackerId string) error {
	return s.deletePrefix(eventPrefix(trackerId))
}

func (s *LevelDbStore) GetHoldingOverride(trackerId string, hash string) (rewardTypes.HoldingState, bool, error) {
	value, err := s.db.Get(overrideKey(trackerId, hash), nil)
	if err == leveldb.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read holding override '%s': %w", hash, err)
	}
	var override rewardTypes.HoldingOverride
	if err := json.Unmarshal(value, &override); err != nil {
		return "", false, fmt.Errorf("failed to decode holding override '%s': %w", hash, err)
	}
	return override.State, true, nil
}

func (s *LevelDbStore) PutHoldingOverride(trackerId string, hash string, state rewardTypes.HoldingState) error {
	value, err := json.Marshal(&rewardTypes.HoldingOverride{TrackerId: trackerId, Hash: hash, State: state})
	if err != nil {
		return fmt.Errorf("failed to encode holding override '%s': %w", hash, err)
	}
	if err := s.db.Put(overrideKey(trackerId, hash), value, nil); err != nil {
		return fmt.Errorf("failed to write holding override '%s': %w", hash, err)
	}
	return nil
}

func (s *LevelDbStore) ListHoldingOverrides(trackerId string) (map[string]rewardTypes.HoldingState, error) {
	prefix := overridePrefix(trackerId)
	overrides := make(map[string]rewardTypes.HoldingState)
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		var override rewardTypes.HoldingOverride
		if err := json.Unmarshal(iter.Value(), &override); err != nil {
			return nil, fmt.Errorf("failed to decode holding override '%s': %w", string(iter.Key()), err)
		}
		overrides[override.Hash] = override.State
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to scan holding overrides: %w", err)
	}
	return overrides, nil
}

func (s *LevelDbStore) DeleteHoldingOverrides(trackerId string) error {
	return s.deletePrefix(overridePrefix(trackerId))
}

func (s *LevelDbStore) deletePrefix(prefix []byte) error {
	batch := new(leveldb.Batch)
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		batch.Delete(key)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return fmt.Errorf("failed to scan keys for delete: %w", err)
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

func (s *LevelDbStore) Close() error {
	return s.db.Close()
}
