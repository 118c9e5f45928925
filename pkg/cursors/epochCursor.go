package cursors

import "fmt"

// EpochCursor is the consensus-layer cursor. A nil LastSynced means the
// cursor is uninitialized: it jumps to the current epoch without
// backfilling, so tracking starts from "now" rather than reconstructing
// historical consensus rewards.
type EpochCursor struct {
	LastSynced *uint64
	MaxBatch   uint64
}

func NewEpochCursor(lastSynced *uint64, maxBatch uint64) *EpochCursor {
	return &EpochCursor{LastSynced: lastSynced, MaxBatch: maxBatch}
}

// BatchPlan is the inclusive epoch range the next run should process.
// Initialize set means the cursor was uninitialized and should simply be
// pinned at the current epoch with no epochs processed.
type BatchPlan struct {
	Start      uint64
	End        uint64
	Initialize bool
}

// Empty reports whether the plan contains no epochs to process.
func (p BatchPlan) Empty() bool {
	return p.Initialize || p.Start > p.End
}

// Plan computes the next batch given the current epoch.
func (c *EpochCursor) Plan(currentEpoch uint64) BatchPlan {
	if c.LastSynced == nil {
		return BatchPlan{Initialize: true, Start: currentEpoch, End: currentEpoch}
	}
	start := *c.LastSynced + 1
	end := *c.LastSynced + c.MaxBatch
	if end > currentEpoch {
		end = currentEpoch
	}
	return BatchPlan{Start: start, End: end}
}

// Commit advances the cursor to the given epoch. The cursor is
// forward-only: committing an epoch at or below the current position is
// rejected, as is initializing twice.
func (c *EpochCursor) Commit(epoch uint64) error {
	if c.LastSynced != nil && epoch <= *c.LastSynced {
		return fmt.Errorf("epoch cursor cannot move backwards: at %d, got %d", *c.LastSynced, epoch)
	}
	e := epoch
	c.LastSynced = &e
	return nil
}

// RunBatch executes fn for each epoch of the plan sequentially, applying
// the fail-stop-with-partial-credit policy: on the first per-epoch
// failure the batch stops, but every epoch already processed stays
// committed. Returns the number of epochs processed and the error that
// stopped the batch, if any.
//
// For an uninitialized cursor the plan only pins the cursor at the
// current epoch; fn is not called.
func (c *EpochCursor) RunBatch(currentEpoch uint64, fn func(epoch uint64) error) (uint64, error) {
	plan := c.Plan(currentEpoch)

	if plan.Initialize {
		if err := c.Commit(currentEpoch); err != nil {
			return 0, err
		}
		return 0, nil
	}

	var processed uint64
	for epoch := plan.Start; epoch <= plan.End; epoch++ {
		if err := fn(epoch); err != nil {
			return processed, fmt.Errorf("epoch %d failed: %w", epoch, err)
		}
		if err := c.Commit(epoch); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, nil
}
