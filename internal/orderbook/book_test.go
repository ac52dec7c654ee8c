package orderbook

import (
	"testing"

	"github.com/nrjones/lob-backtester/internal/fixedpoint"
)

func entry(id uint64, size int64, origin fixedpoint.OrderOrigin) Entry {
	return Entry{ID: fixedpoint.OrderID(id), Size: fixedpoint.Size(size), Origin: origin}
}

// TestFIFOWithinPriceLevel verifies that entries at the same price
// queue in insertion order.
func TestFIFOWithinPriceLevel(t *testing.T) {
	book := New()
	book.Insert(fixedpoint.Sell, 1000, entry(1, 10, fixedpoint.History))
	book.Insert(fixedpoint.Sell, 1000, entry(2, 10, fixedpoint.History))
	book.Insert(fixedpoint.Sell, 1000, entry(3, 10, fixedpoint.History))
	book.AssertInvariants()

	if pos := book.QueuePosition(1); pos != 1 {
		t.Errorf("order 1: expected position 1, got %d", pos)
	}
	if pos := book.QueuePosition(3); pos != 3 {
		t.Errorf("order 3: expected position 3, got %d", pos)
	}

	level := book.BestLevel(fixedpoint.Sell)
	if level.TotalSize() != 30 {
		t.Errorf("expected total size 30, got %d", level.TotalSize())
	}
}

// TestReduceFrontRemovesExhaustedEntry verifies that filling the front
// entry to zero pops it and advances the queue.
func TestReduceFrontRemovesExhaustedEntry(t *testing.T) {
	book := New()
	book.Insert(fixedpoint.Sell, 100, entry(1, 10, fixedpoint.History))
	book.Insert(fixedpoint.Sell, 100, entry(2, 5, fixedpoint.History))
	book.AssertInvariants()

	book.ReduceFront(fixedpoint.Sell, 10)
	book.AssertInvariants()

	if book.Contains(1) {
		t.Error("order 1 should have been removed after full fill")
	}
	if pos := book.QueuePosition(2); pos != 1 {
		t.Errorf("order 2: expected position 1 after order 1 drained, got %d", pos)
	}
}

// TestReduceFrontPartialLeavesResidualSize verifies a partial fill
// reduces size without removing the entry.
func TestReduceFrontPartialLeavesResidualSize(t *testing.T) {
	book := New()
	book.Insert(fixedpoint.Sell, 100, entry(1, 10, fixedpoint.Trader))
	book.ReduceFront(fixedpoint.Sell, 3)
	book.AssertInvariants()

	level := book.BestLevel(fixedpoint.Sell)
	if level.Entries[0].Size != 7 {
		t.Errorf("expected residual size 7, got %d", level.Entries[0].Size)
	}
}

// TestRemoveDeletesEmptyLevel verifies removing the last entry at a
// level prunes the level itself.
func TestRemoveDeletesEmptyLevel(t *testing.T) {
	book := New()
	book.Insert(fixedpoint.Buy, 100, entry(1, 10, fixedpoint.Trader))
	if !book.Remove(1) {
		t.Fatal("expected Remove to report success")
	}
	book.AssertInvariants()

	bidLevels, _ := book.Depth()
	if bidLevels != 0 {
		t.Errorf("expected 0 bid levels after removal, got %d", bidLevels)
	}
}

// TestRemoveUnknownOrderIsNoop verifies removing a non-resting ID is a
// safe no-op.
func TestRemoveUnknownOrderIsNoop(t *testing.T) {
	book := New()
	book.Insert(fixedpoint.Sell, 100, entry(1, 10, fixedpoint.History))
	if book.Remove(999) {
		t.Error("expected Remove of unknown id to report false")
	}
	book.AssertInvariants()

	_, askLevels := book.Depth()
	if askLevels != 1 {
		t.Errorf("expected 1 ask level, got %d", askLevels)
	}
}

// TestVolumeAtOrBetter verifies the crossing-limit volume sum respects
// side direction and stops at the limit price.
func TestVolumeAtOrBetter(t *testing.T) {
	book := New()
	book.Insert(fixedpoint.Sell, 100, entry(1, 5, fixedpoint.History))
	book.Insert(fixedpoint.Sell, 101, entry(2, 5, fixedpoint.History))
	book.Insert(fixedpoint.Sell, 102, entry(3, 5, fixedpoint.History))
	book.AssertInvariants()

	if v := book.VolumeAtOrBetter(fixedpoint.Buy, 101); v != 10 {
		t.Errorf("expected 10 at or better than 101, got %d", v)
	}
	if v := book.VolumeAtOrBetter(fixedpoint.Buy, 99); v != 0 {
		t.Errorf("expected 0 at or better than 99, got %d", v)
	}
}

// TestMultipleBidLevelsSortDescending verifies bid-side insertion
// order.
func TestMultipleBidLevelsSortDescending(t *testing.T) {
	book := New()
	book.Insert(fixedpoint.Buy, 98, entry(1, 10, fixedpoint.History))
	book.Insert(fixedpoint.Buy, 100, entry(2, 5, fixedpoint.History))
	book.Insert(fixedpoint.Buy, 99, entry(3, 8, fixedpoint.History))
	book.AssertInvariants()

	best := book.BestLevel(fixedpoint.Buy)
	if best.Price != 100 {
		t.Errorf("expected best bid 100, got %d", best.Price)
	}
}

// TestSnapshotRespectsDepthLimit verifies the rendered snapshot caps at
// the requested depth per side.
func TestSnapshotRespectsDepthLimit(t *testing.T) {
	book := New()
	book.Insert(fixedpoint.Buy, 100, entry(1, 5, fixedpoint.History))
	book.Insert(fixedpoint.Buy, 99, entry(2, 5, fixedpoint.History))
	book.Insert(fixedpoint.Buy, 98, entry(3, 5, fixedpoint.History))

	snap := book.Snapshot(2)
	if len(snap.Bids) != 2 {
		t.Errorf("expected 2 levels at depth 2, got %d", len(snap.Bids))
	}
	if snap.Bids[0].Price != 100 {
		t.Errorf("expected best bid first, got %d", snap.Bids[0].Price)
	}
}
