// Package memtable implements the ordered in-memory write buffer:
// last-write-wins inserts, a monotone memory-usage counter,
// and an in-order iterator consumed by the flush planner.
package memtable

import (
	"sync"

	"github.com/google/btree"

	"learnedkv/pkg/common"
)

// item adapts a common.Entry to github.com/google/btree's ordering
// contract; only Key participates in ordering, so ReplaceOrInsert on an
// existing key overwrites its value and kind in place.
type item struct {
	entry common.Entry
}

func (a item) Less(than btree.Item) bool {
	return a.entry.Key < than.(item).entry.Key
}

// Memtable is an ordered, in-memory log of pending write entries.
type Memtable struct {
	mu   sync.RWMutex
	tree *btree.BTree
	size int64
}

const btreeDegree = 32

// New returns an empty memtable.
func New() *Memtable {
	return &Memtable{tree: btree.New(btreeDegree)}
}

// Add inserts an entry. A later Add with an equal key supersedes the
// earlier one in Iterate order.
func (m *Memtable) Add(key common.Key, value common.Value, kind common.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tree.ReplaceOrInsert(item{common.Entry{Key: key, Value: value, Kind: kind}})
	m.size += int64(8 + len(value) + 1)
}

// ApproximateMemoryUsage is monotone non-decreasing between Adds; it is
// used only to decide when to trigger a flush.
func (m *Memtable) ApproximateMemoryUsage() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// Len reports the number of distinct keys currently buffered.
func (m *Memtable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}

// Get returns the most recent entry for key, if any.
func (m *Memtable) Get(key common.Key) (common.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := m.tree.Get(item{common.Entry{Key: key}})
	if found == nil {
		return common.Entry{}, false
	}
	return found.(item).entry, true
}

// IterateSorted calls fn for every entry in ascending key order. Each key
// is visited exactly once, carrying its most recent value and kind.
// Iteration must not outlive structural mutation of the memtable — callers
// that need a stable view should not mutate the same Memtable concurrently
// with an in-flight IterateSorted (the flush planner's single-flusher
// invariant guarantees this in practice).
func (m *Memtable) IterateSorted(fn func(common.Entry) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	m.tree.Ascend(func(i btree.Item) bool {
		return fn(i.(item).entry)
	})
}

// Snapshot returns every entry in ascending key order as a slice. The
// flush planner does not use it; it walks the memtable with IterateSorted.
func (m *Memtable) Snapshot() []common.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]common.Entry, 0, m.tree.Len())
	m.tree.Ascend(func(i btree.Item) bool {
		out = append(out, i.(item).entry)
		return true
	})
	return out
}
