// Package tests holds helpers shared by package tests.
package tests

import (
	"fmt"
	"sort"
	"sync"

	"github.com/nodeledger/rewards-tracker/pkg/clients/clientErrors"
	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
)

// InMemoryRemoteStore is a storage.RemoteStore for tests. Every write
// path has an injectable error so failure handling can be exercised.
type InMemoryRemoteStore struct {
	mu       sync.Mutex
	trackers map[string]*rewardTypes.Tracker
	events   map[string]*rewardTypes.RewardEvent
	prices   map[string]*rewardTypes.PriceEntry

	UpsertEventsErr error
	DeleteEventsErr error
	UpsertPricesErr error
}

func NewInMemoryRemoteStore() *InMemoryRemoteStore {
	return &InMemoryRemoteStore{
		trackers: make(map[string]*rewardTypes.Tracker),
		events:   make(map[string]*rewardTypes.RewardEvent),
		prices:   make(map[string]*rewardTypes.PriceEntry),
	}
}

func eventKey(trackerId string, hash string) string {
	return fmt.Sprintf("%s:%s", trackerId, hash)
}

func priceKey(dateKey string, currency string) string {
	return fmt.Sprintf("%s:%s", dateKey, currency)
}

func (s *InMemoryRemoteStore) ListTrackers() ([]*rewardTypes.Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*rewardTypes.Tracker, 0, len(s.trackers))
	for _, t := range s.trackers {
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (s *InMemoryRemoteStore) GetTracker(trackerId string) (*rewardTypes.Tracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trackers[trackerId]
	if !ok {
		return nil, &clientErrors.NotFoundError{Provider: "inMemoryRemoteStore", Entity: fmt.Sprintf("tracker '%s'", trackerId)}
	}
	c := *t
	return &c, nil
}

func (s *InMemoryRemoteStore) UpsertTracker(tracker *rewardTypes.Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *tracker
	s.trackers[tracker.Id] = &c
	return nil
}

func (s *InMemoryRemoteStore) DeleteTracker(trackerId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trackers, trackerId)
	return nil
}

func (s *InMemoryRemoteStore) UpsertRewardEvents(events []*rewardTypes.RewardEvent) error {
	if s.UpsertEventsErr != nil {
		return s.UpsertEventsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		key := eventKey(e.TrackerId, e.Hash)
		if existing, ok := s.events[key]; ok {
			// settlement columns only, like the real store
			existing.Status = e.Status
			existing.SettlementRef = e.SettlementRef
			continue
		}
		s.events[key] = e.Clone()
	}
	return nil
}

func (s *InMemoryRemoteStore) ListRewardEvents(trackerId string) ([]*rewardTypes.RewardEvent, error) {
	return s.ListRewardEventsSince(trackerId, 0)
}

func (s *InMemoryRemoteStore) ListRewardEventsSince(trackerId string, sinceSec uint64) ([]*rewardTypes.RewardEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*rewardTypes.RewardEvent, 0)
	for _, e := range s.events {
		if e.TrackerId == trackerId && e.TimestampSec > sinceSec {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimestampSec != out[j].TimestampSec {
			return out[i].TimestampSec > out[j].TimestampSec
		}
		return out[i].Hash < out[j].Hash
	})
	return out, nil
}

func (s *InMemoryRemoteStore) DeleteRewardEvents(trackerId string) error {
	if s.DeleteEventsErr != nil {
		return s.DeleteEventsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.events {
		if e.TrackerId == trackerId {
			delete(s.events, key)
		}
	}
	return nil
}

func (s *InMemoryRemoteStore) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *InMemoryRemoteStore) GetEvent(trackerId string, hash string) *rewardTypes.RewardEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[eventKey(trackerId, hash)]
	if !ok {
		return nil
	}
	return e.Clone()
}

func (s *InMemoryRemoteStore) UpsertPriceEntries(entries []*rewardTypes.PriceEntry) error {
	if s.UpsertPricesErr != nil {
		return s.UpsertPricesErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		key := priceKey(e.DateKey, e.Currency)
		if _, ok := s.prices[key]; ok {
			continue
		}
		c := *e
		s.prices[key] = &c
	}
	return nil
}

func (s *InMemoryRemoteStore) GetPriceEntry(dateKey string, currency string) (*rewardTypes.PriceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.prices[priceKey(dateKey, currency)]
	if !ok {
		return nil, &clientErrors.NotFoundError{Provider: "inMemoryRemoteStore", Entity: fmt.Sprintf("price entry '%s/%s'", dateKey, currency)}
	}
	c := *e
	return &c, nil
}

func (s *InMemoryRemoteStore) ListPriceEntries(currency string) ([]*rewardTypes.PriceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*rewardTypes.PriceEntry, 0)
	for _, e := range s.prices {
		if e.Currency == currency {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateKey < out[j].DateKey })
	return out, nil
}
