// Package segment implements the concurrent segment index:
// a totally ordered map from segment lower-bound key to segment info,
// protected by a reader/writer latch, plus multi-segment rewrite-region
// acquisition coordinated with the lock manager.
package segment

import (
	"sort"
	"sync"

	"github.com/google/btree"

	"learnedkv/pkg/common"
	"learnedkv/pkg/lockmgr"
)

// Infinity is the sentinel upper bound for the last segment in the index.
const Infinity common.Key = ^common.Key(0)

// Info is per-segment metadata.
type Info struct {
	ID       uint64
	Overflow bool
}

// Entry is a snapshot copy of one segment index entry.
type Entry struct {
	Lower common.Key
	Upper common.Key
	Info  Info
}

type segItem struct {
	lower common.Key
	info  Info
}

func (a segItem) Less(than btree.Item) bool {
	return a.lower < than.(segItem).lower
}

const btreeDegree = 32

// Index is the concurrent segment index.
type Index struct {
	mu      sync.RWMutex
	tree    *btree.BTree
	lockMgr *lockmgr.Manager
}

// NewIndex returns an empty index coordinating reorg locks through lm.
func NewIndex(lm *lockmgr.Manager) *Index {
	return &Index{tree: btree.New(btreeDegree), lockMgr: lm}
}

// Seed installs the initial, non-empty set of segments. The index must
// never be empty once the engine is open; callers populate it before
// serving any request.
func (idx *Index) Seed(entries []Info, lowers []common.Key) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, lower := range lowers {
		idx.tree.ReplaceOrInsert(segItem{lower: lower, info: entries[i]})
	}
}

func (idx *Index) predecessorOf(key common.Key) (segItem, bool) {
	var found segItem
	ok := false
	idx.tree.DescendLessOrEqual(segItem{lower: key}, func(i btree.Item) bool {
		si := i.(segItem)
		if si.lower == key {
			return true
		}
		found, ok = si, true
		return false
	})
	return found, ok
}

func (idx *Index) successorOf(key common.Key) (segItem, bool) {
	var found segItem
	ok := false
	idx.tree.AscendGreaterOrEqual(segItem{lower: key}, func(i btree.Item) bool {
		si := i.(segItem)
		if si.lower == key {
			return true
		}
		found, ok = si, true
		return false
	})
	return found, ok
}

// segmentForKeyLocked returns the entry with the greatest lower <= key,
// assuming the caller already holds at least a read lock. If key sits
// strictly below the smallest lower, it silently clamps to the first
// entry (the degenerate defensive case) rather than surfacing an error.
func (idx *Index) segmentForKeyLocked(key common.Key) segItem {
	var found segItem
	ok := false
	idx.tree.DescendLessOrEqual(segItem{lower: key}, func(i btree.Item) bool {
		found, ok = i.(segItem), true
		return false
	})
	if ok {
		return found
	}
	if min := idx.tree.Min(); min != nil {
		return min.(segItem)
	}
	panic(common.ErrSegmentMissing)
}

func (idx *Index) entryFor(si segItem) Entry {
	upper := Infinity
	if succ, ok := idx.successorOf(si.lower); ok {
		upper = succ.lower
	}
	return Entry{Lower: si.lower, Upper: upper, Info: si.info}
}

// SegmentForKey returns the entry covering key.
func (idx *Index) SegmentForKey(key common.Key) Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entryFor(idx.segmentForKeyLocked(key))
}

// SegmentForKeyWithLock resolves the entry covering key and does not
// return until it holds mode on the resulting segment id. The returned
// Entry is a snapshot; the caller no longer holds the index latch.
func (idx *Index) SegmentForKeyWithLock(key common.Key, mode lockmgr.Mode) Entry {
	b := lockmgr.NewBackoff()
	for {
		idx.mu.RLock()
		si := idx.segmentForKeyLocked(key)
		granted := idx.lockMgr.TryAcquire(si.info.ID, mode)
		idx.mu.RUnlock()
		if granted {
			return idx.entryFor(si)
		}
		b.Wait()
	}
}

// NextSegmentForKey returns the entry whose lower strictly exceeds key, or
// ok=false past the last segment.
func (idx *Index) NextSegmentForKey(key common.Key) (Entry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	si, ok := idx.successorOf(key)
	if !ok {
		return Entry{}, false
	}
	return idx.entryFor(si), true
}

// NextSegmentForKeyWithLock is the locked variant of NextSegmentForKey.
func (idx *Index) NextSegmentForKeyWithLock(key common.Key, mode lockmgr.Mode) (Entry, bool) {
	b := lockmgr.NewBackoff()
	for {
		idx.mu.RLock()
		si, ok := idx.successorOf(key)
		if !ok {
			idx.mu.RUnlock()
			return Entry{}, false
		}
		granted := idx.lockMgr.TryAcquire(si.info.ID, mode)
		idx.mu.RUnlock()
		if granted {
			return idx.entryFor(si), true
		}
		b.Wait()
	}
}

// SetSegmentOverflow mutates the overflow flag on the segment covering key.
func (idx *Index) SetSegmentOverflow(key common.Key, overflow bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	si := idx.segmentForKeyLocked(key)
	si.info.Overflow = overflow
	idx.tree.ReplaceOrInsert(si)
}

// GetSegmentBoundsFor returns the (lower, upper) bounds of the segment
// covering key.
func (idx *Index) GetSegmentBoundsFor(key common.Key) (common.Key, common.Key) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e := idx.entryFor(idx.segmentForKeyLocked(key))
	return e.Lower, e.Upper
}

// FindAndLockRewriteRegion locates a contiguous run of overflowing
// segments around segmentBase, acquires Reorg locks on all of them, and
// validates the run is still contiguous before returning it. It returns a
// nil slice on conflict (ErrReorgRaced), signaling the caller should
// retry. segmentBase must name an existing segment's lower bound; if it
// does not, the caller's contract is broken and this panics.
//
// The backward walk includes a predecessor only while it has overflow set,
// stopping at (and excluding) the first non-overflowing predecessor or the
// head. The forward walk includes each successor unconditionally up to
// search_radius, but stops immediately after including the first
// non-overflowing one — this asymmetry matches the documented rewrite
// contiguity example and is intentional, not an oversight.
func (idx *Index) FindAndLockRewriteRegion(segmentBase common.Key, searchRadius int) ([]Entry, error) {
	candidates, err := idx.collectRewriteCandidates(segmentBase, searchRadius)
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Lower < candidates[j].Lower })

	b := lockmgr.NewBackoff()
	for _, c := range candidates {
		b.Reset()
		for !idx.lockMgr.TryAcquire(c.Info.ID, lockmgr.Reorg) {
			b.Wait()
		}
	}

	if !idx.validateContiguity(candidates) {
		for _, c := range candidates {
			idx.lockMgr.Release(c.Info.ID, lockmgr.Reorg)
		}
		return nil, common.ErrReorgRaced
	}

	return candidates, nil
}

func (idx *Index) collectRewriteCandidates(segmentBase common.Key, searchRadius int) ([]Entry, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seed, ok := idx.tree.Get(segItem{lower: segmentBase}).(segItem)
	if !ok {
		panic(common.ErrSegmentMissing)
	}
	candidates := []Entry{idx.entryFor(seed)}

	cur := segmentBase
	for i := 0; i < searchRadius; i++ {
		pred, ok := idx.predecessorOf(cur)
		if !ok || !pred.info.Overflow {
			break
		}
		candidates = append(candidates, idx.entryFor(pred))
		cur = pred.lower
	}

	cur = segmentBase
	for i := 0; i < searchRadius; i++ {
		succ, ok := idx.successorOf(cur)
		if !ok {
			break
		}
		candidates = append(candidates, idx.entryFor(succ))
		cur = succ.lower
		if !succ.info.Overflow {
			break
		}
	}

	return candidates, nil
}

func (idx *Index) validateContiguity(candidates []Entry) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(candidates) == 0 {
		return false
	}
	// Walk forward from the first candidate's lower, requiring each
	// subsequent candidate to match the next index entry exactly.
	expectLower := candidates[0].Lower
	for i, c := range candidates {
		got, exists := idx.tree.Get(segItem{lower: expectLower}).(segItem)
		if !exists || got.lower != c.Lower {
			return false
		}
		if i == len(candidates)-1 {
			break
		}
		succ, ok := idx.successorOf(got.lower)
		if !ok {
			return false
		}
		expectLower = succ.lower
	}
	return true
}

// NumSegments reports the number of segments currently in the index.
func (idx *Index) NumSegments() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// All returns a snapshot of every segment entry, ordered by lower bound.
// Used by the checkpoint path to persist the current mapping.
func (idx *Index) All() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entries := make([]Entry, 0, idx.tree.Len())
	idx.tree.Ascend(func(i btree.Item) bool {
		entries = append(entries, idx.entryFor(i.(segItem)))
		return true
	})
	return entries
}
