package exemption

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nodeledger/rewards-tracker/pkg/rewardTypes"
	"github.com/stretchr/testify/assert"
)

func testEvent(timestampSec uint64) *rewardTypes.RewardEvent {
	return &rewardTypes.RewardEvent{
		TrackerId:    "tracker-1",
		Hash:         "0xabc",
		TimestampSec: timestampSec,
	}
}

func Test_Evaluate(t *testing.T) {
	table := DefaultPolicyTable()
	eventTime := time.Date(2022, 3, 15, 12, 0, 0, 0, time.UTC)
	event := testEvent(uint64(eventTime.Unix()))

	t.Run("One second before the holding period completes", func(t *testing.T) {
		now := eventTime.Add(time.Duration(twoYearsSec)*time.Second - time.Second)
		result := Evaluate(event, "", table, "DE", now)

		assert.False(t, result.Exempt)
		assert.InDelta(t, 1.0, result.ProgressRatio, 0.001)
		assert.Equal(t, event.TimestampSec+twoYearsSec, result.ExemptSince)
	})

	t.Run("Exactly at the holding period boundary", func(t *testing.T) {
		now := eventTime.Add(time.Duration(twoYearsSec) * time.Second)
		result := Evaluate(event, "", table, "DE", now)

		assert.True(t, result.Exempt)
		assert.Equal(t, 1.0, result.ProgressRatio)
	})

	t.Run("Halfway through the holding period", func(t *testing.T) {
		now := eventTime.Add(time.Duration(twoYearsSec/2) * time.Second)
		result := Evaluate(event, "", table, "DE", now)

		assert.False(t, result.Exempt)
		assert.InDelta(t, 0.5, result.ProgressRatio, 0.001)
	})

	t.Run("Sold rewards are never exempt", func(t *testing.T) {
		now := eventTime.Add(3 * time.Duration(twoYearsSec) * time.Second)
		result := Evaluate(event, rewardTypes.HoldingState_Sold, table, "DE", now)

		assert.False(t, result.Exempt)
		assert.Equal(t, 0.0, result.ProgressRatio)
	})

	t.Run("Countries without a policy are never exempt", func(t *testing.T) {
		now := eventTime.Add(3 * time.Duration(twoYearsSec) * time.Second)
		result := Evaluate(event, "", table, "US", now)

		assert.False(t, result.Exempt)
		assert.Equal(t, uint64(0), result.ExemptSince)
	})

	t.Run("Country lookup is case-insensitive", func(t *testing.T) {
		now := eventTime.Add(3 * time.Duration(twoYearsSec) * time.Second)
		result := Evaluate(event, "", table, "de", now)

		assert.True(t, result.Exempt)
	})

	t.Run("Identical inputs produce identical outputs", func(t *testing.T) {
		now := eventTime.Add(400 * 24 * time.Hour)
		first := Evaluate(event, "", table, "DE", now)
		second := Evaluate(event, "", table, "DE", now)

		assert.Equal(t, first, second)
	})
}

func Test_LoadPolicyTable(t *testing.T) {
	t.Run("Empty path returns the default table", func(t *testing.T) {
		table, err := LoadPolicyTable("")
		assert.Nil(t, err)

		policy, ok := table.Lookup("DE")
		assert.True(t, ok)
		assert.True(t, policy.Enabled)
	})

	t.Run("File entries layer over the defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policies.yaml")
		contents := "PT:\n  enabled: true\n  holdingPeriodSeconds: 31536000\nDE:\n  enabled: false\n"
		assert.Nil(t, os.WriteFile(path, []byte(contents), 0644))

		table, err := LoadPolicyTable(path)
		assert.Nil(t, err)

		pt, ok := table.Lookup("PT")
		assert.True(t, ok)
		assert.Equal(t, uint64(31536000), pt.HoldingPeriodSeconds)

		de, ok := table.Lookup("DE")
		assert.True(t, ok)
		assert.False(t, de.Enabled)

		// untouched default survives
		at, ok := table.Lookup("AT")
		assert.True(t, ok)
		assert.True(t, at.Enabled)
	})

	t.Run("Missing file is an error", func(t *testing.T) {
		_, err := LoadPolicyTable("/nonexistent/policies.yaml")
		assert.NotNil(t, err)
	})
}
