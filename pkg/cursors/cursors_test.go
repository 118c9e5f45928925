package cursors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_TimestampCursor(t *testing.T) {
	t.Run("Never-synced cursor always syncs", func(t *testing.T) {
		c := NewTimestampCursor(0)
		assert.True(t, c.ShouldSync(time.Now()))
	})

	t.Run("No sync within the same UTC day", func(t *testing.T) {
		last := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
		c := NewTimestampCursor(uint64(last.Unix()))
		assert.False(t, c.ShouldSync(last.Add(2*time.Hour)))
	})

	t.Run("Sync when the UTC day advances even under 24h", func(t *testing.T) {
		last := time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC)
		c := NewTimestampCursor(uint64(last.Unix()))
		assert.True(t, c.ShouldSync(last.Add(2*time.Hour)))
	})

	t.Run("Sync after more than a day", func(t *testing.T) {
		last := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
		c := NewTimestampCursor(uint64(last.Unix()))
		assert.True(t, c.ShouldSync(last.Add(25*time.Hour)))
	})

	t.Run("Advance never moves backwards", func(t *testing.T) {
		now := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
		c := NewTimestampCursor(uint64(now.Unix()))
		c.Advance(now.Add(-time.Hour))
		assert.Equal(t, uint64(now.Unix()), c.LastFetchedSec)

		c.Advance(now.Add(time.Hour))
		assert.Equal(t, uint64(now.Add(time.Hour).Unix()), c.LastFetchedSec)
	})
}

func uintPtr(v uint64) *uint64 {
	return &v
}

func Test_EpochCursor(t *testing.T) {
	t.Run("Uninitialized cursor pins to current epoch with no backfill", func(t *testing.T) {
		c := NewEpochCursor(nil, 100)

		called := 0
		processed, err := c.RunBatch(5000, func(epoch uint64) error {
			called++
			return nil
		})

		assert.Nil(t, err)
		assert.Equal(t, uint64(0), processed)
		assert.Equal(t, 0, called)
		assert.Equal(t, uint64(5000), *c.LastSynced)
	})

	t.Run("Batch is bounded by MaxBatch", func(t *testing.T) {
		c := NewEpochCursor(uintPtr(100), 10)

		var seen []uint64
		processed, err := c.RunBatch(5000, func(epoch uint64) error {
			seen = append(seen, epoch)
			return nil
		})

		assert.Nil(t, err)
		assert.Equal(t, uint64(10), processed)
		assert.Equal(t, uint64(101), seen[0])
		assert.Equal(t, uint64(110), seen[len(seen)-1])
		assert.Equal(t, uint64(110), *c.LastSynced)
	})

	t.Run("Batch never advances past the current epoch", func(t *testing.T) {
		c := NewEpochCursor(uintPtr(100), 100)

		processed, err := c.RunBatch(103, func(epoch uint64) error { return nil })

		assert.Nil(t, err)
		assert.Equal(t, uint64(3), processed)
		assert.Equal(t, uint64(103), *c.LastSynced)
	})

	t.Run("Failure stops the batch but keeps partial credit", func(t *testing.T) {
		c := NewEpochCursor(uintPtr(100), 10)

		processed, err := c.RunBatch(5000, func(epoch uint64) error {
			if epoch == 105 {
				return fmt.Errorf("provider unavailable")
			}
			return nil
		})

		assert.NotNil(t, err)
		assert.Equal(t, uint64(4), processed)
		// 101..104 committed, 105 failed
		assert.Equal(t, uint64(104), *c.LastSynced)
	})

	t.Run("Cursor never decreases", func(t *testing.T) {
		c := NewEpochCursor(uintPtr(200), 10)
		assert.NotNil(t, c.Commit(200))
		assert.NotNil(t, c.Commit(150))
		assert.Nil(t, c.Commit(201))
		assert.Equal(t, uint64(201), *c.LastSynced)
	})

	t.Run("Already-caught-up cursor plans an empty batch", func(t *testing.T) {
		c := NewEpochCursor(uintPtr(5000), 10)
		plan := c.Plan(5000)
		assert.True(t, plan.Empty())

		processed, err := c.RunBatch(5000, func(epoch uint64) error {
			t.Fatal("should not be called")
			return nil
		})
		assert.Nil(t, err)
		assert.Equal(t, uint64(0), processed)
	})
}
