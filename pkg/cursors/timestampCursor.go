// Package cursors implements the per-tracker forward-only sync cursors.
// Two flavors exist because the two reward sources measure progress in
// different units: wall-clock timestamps for EVM-style polling and
// epochs for the consensus layer.
package cursors

import "time"

// TimestampCursor is the EVM-style polling cursor. A zero
// LastFetchedSec means no sync has ever happened.
type TimestampCursor struct {
	LastFetchedSec uint64
}

func NewTimestampCursor(lastFetchedSec uint64) *TimestampCursor {
	return &TimestampCursor{LastFetchedSec: lastFetchedSec}
}

// ShouldSync reports whether a new ingestion run is due: never synced,
// more than a day since the last run, or the UTC calendar day advanced
// since the last run.
func (c *TimestampCursor) ShouldSync(now time.Time) bool {
	if c.LastFetchedSec == 0 {
		return true
	}
	last := time.Unix(int64(c.LastFetchedSec), 0).UTC()
	nowUtc := now.UTC()
	if nowUtc.Sub(last) > 24*time.Hour {
		return true
	}
	return last.Format("2006-01-02") != nowUtc.Format("2006-01-02")
}

// LowerBound is the timestamp ingestion should fetch from.
func (c *TimestampCursor) LowerBound() uint64 {
	return c.LastFetchedSec
}

// Advance moves the cursor to `now`. Only called after a successful
// ingestion run; the cursor never moves backwards.
func (c *TimestampCursor) Advance(now time.Time) {
	ts := uint64(now.Unix())
	if ts > c.LastFetchedSec {
		c.LastFetchedSec = ts
	}
}
