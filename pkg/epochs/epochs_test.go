package epochs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const mainnetGenesis = uint64(1606824023)

func Test_EpochCalculator(t *testing.T) {
	calc := NewCalculator(mainnetGenesis)

	t.Run("Epoch zero starts at genesis", func(t *testing.T) {
		assert.Equal(t, uint64(0), calc.CurrentEpoch(time.Unix(int64(mainnetGenesis), 0)))
		assert.Equal(t, mainnetGenesis, calc.EpochStartTimestamp(0))
		assert.Equal(t, mainnetGenesis+EpochDurationSec-1, calc.EpochEndTimestamp(0))
	})

	t.Run("Times before genesis map to epoch zero", func(t *testing.T) {
		assert.Equal(t, uint64(0), calc.CurrentEpoch(time.Unix(int64(mainnetGenesis)-1000, 0)))
	})

	t.Run("Epoch advances every 384 seconds", func(t *testing.T) {
		assert.Equal(t, uint64(0), calc.CurrentEpoch(time.Unix(int64(mainnetGenesis)+EpochDurationSec-1, 0)))
		assert.Equal(t, uint64(1), calc.CurrentEpoch(time.Unix(int64(mainnetGenesis)+EpochDurationSec, 0)))
		assert.Equal(t, uint64(10), calc.CurrentEpoch(time.Unix(int64(mainnetGenesis)+10*EpochDurationSec, 0)))
	})

	t.Run("Epoch end is one second before the next start", func(t *testing.T) {
		for _, epoch := range []uint64{0, 1, 12345, 300000} {
			assert.Equal(t, calc.EpochStartTimestamp(epoch+1)-1, calc.EpochEndTimestamp(epoch))
		}
	})
}
