// Package epochs holds the consensus-layer epoch math. An epoch is a
// fixed window of wall-clock time anchored at the chain's genesis.
package epochs

import "time"

const (
	SlotsPerEpoch    = 32
	SecondsPerSlot   = 12
	EpochDurationSec = SlotsPerEpoch * SecondsPerSlot
)

type Calculator struct {
	GenesisTimestamp uint64
}

func NewCalculator(genesisTimestamp uint64) *Calculator {
	return &Calculator{GenesisTimestamp: genesisTimestamp}
}

// CurrentEpoch returns the epoch containing `now`. Times before genesis
// map to epoch 0.
func (c *Calculator) CurrentEpoch(now time.Time) uint64 {
	ts := uint64(now.Unix())
	if ts <= c.GenesisTimestamp {
		return 0
	}
	return (ts - c.GenesisTimestamp) / EpochDurationSec
}

// EpochStartTimestamp returns the first second of the given epoch.
func (c *Calculator) EpochStartTimestamp(epoch uint64) uint64 {
	return c.GenesisTimestamp + epoch*EpochDurationSec
}

// EpochEndTimestamp returns the last second of the given epoch, which is
// the timestamp reward events synthesized for that epoch carry.
func (c *Calculator) EpochEndTimestamp(epoch uint64) uint64 {
	return c.GenesisTimestamp + (epoch+1)*EpochDurationSec - 1
}
