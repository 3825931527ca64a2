package segment

import (
	"testing"

	"learnedkv/pkg/common"
	"learnedkv/pkg/lockmgr"
)

func seededIndex() *Index {
	lm := lockmgr.NewManager()
	idx := NewIndex(lm)
	idx.Seed(
		[]Info{
			{ID: 1, Overflow: false},
			{ID: 2, Overflow: true},
			{ID: 3, Overflow: true},
			{ID: 4, Overflow: false},
			{ID: 5, Overflow: true},
		},
		[]common.Key{1000, 2000, 3000, 4000, 5000},
	)
	return idx
}

func TestSegmentForKeyAndBounds(t *testing.T) {
	idx := seededIndex()

	e := idx.SegmentForKey(2500)
	if e.Lower != 2000 || e.Upper != 3000 {
		t.Fatalf("SegmentForKey(2500) = %+v", e)
	}

	lower, upper := idx.GetSegmentBoundsFor(5500)
	if lower != 5000 || upper != Infinity {
		t.Fatalf("bounds for last segment = (%d, %d)", lower, upper)
	}

	// Degenerate clamp: below the smallest lower.
	clamped := idx.SegmentForKey(10)
	if clamped.Lower != 1000 {
		t.Fatalf("degenerate clamp = %+v, want lower 1000", clamped)
	}
}

func TestNextSegmentForKey(t *testing.T) {
	idx := seededIndex()

	next, ok := idx.NextSegmentForKey(2000)
	if !ok || next.Lower != 3000 {
		t.Fatalf("NextSegmentForKey(2000) = %+v, %v", next, ok)
	}
	_, ok = idx.NextSegmentForKey(5000)
	if ok {
		t.Fatalf("NextSegmentForKey(5000) should report none past the end")
	}
}

// S4 — Rewrite-region contiguity with overflow gates.
func TestFindAndLockRewriteRegionS4(t *testing.T) {
	idx := seededIndex()

	got, err := idx.FindAndLockRewriteRegion(3000, 3)
	if err != nil {
		t.Fatalf("FindAndLockRewriteRegion: %v", err)
	}

	var lowers []common.Key
	for _, e := range got {
		lowers = append(lowers, e.Lower)
	}
	want := []common.Key{2000, 3000, 4000}
	if len(lowers) != len(want) {
		t.Fatalf("candidates = %v, want %v", lowers, want)
	}
	for i := range want {
		if lowers[i] != want[i] {
			t.Fatalf("candidates = %v, want %v", lowers, want)
		}
	}
}

// S5 — Rewrite-region race: exactly one of two overlapping attempts can
// hold the shared segments at a time; the second only succeeds once the
// first releases. Exercised deterministically (no blocked goroutines)
// since the lock manager's TryAcquire is itself non-blocking.
func TestFindAndLockRewriteRegionRace(t *testing.T) {
	idx := seededIndex()

	first, err := idx.FindAndLockRewriteRegion(3000, 3)
	if err != nil || len(first) == 0 {
		t.Fatalf("first acquisition should succeed, got %v, %v", first, err)
	}

	// A second, overlapping attempt must find its shared segments already
	// held: drive the same TryAcquire step the index uses internally and
	// confirm it's denied while the first holder is still active.
	for _, e := range first {
		if idx.lockMgr.TryAcquire(e.Info.ID, lockmgr.Reorg) {
			t.Fatalf("segment %d should already be Reorg-locked by the first holder", e.Info.ID)
		}
	}

	for _, e := range first {
		idx.lockMgr.Release(e.Info.ID, lockmgr.Reorg)
	}

	// Once released, a fresh overlapping attempt succeeds.
	second, err := idx.FindAndLockRewriteRegion(4000, 3)
	if err != nil || len(second) == 0 {
		t.Fatalf("second acquisition after release should succeed, got %v, %v", second, err)
	}
	for _, e := range second {
		idx.lockMgr.Release(e.Info.ID, lockmgr.Reorg)
	}
}

func TestSetSegmentOverflow(t *testing.T) {
	idx := seededIndex()
	idx.SetSegmentOverflow(1000, true)
	e := idx.SegmentForKey(1000)
	if !e.Info.Overflow {
		t.Fatalf("SetSegmentOverflow did not persist")
	}
}
