// Package scan implements the merge iterator and range scanner:
// walking pinned overflow chains while keeping pinning
// invariants across concurrent reorganization.
package scan

import (
	"learnedkv/pkg/buffer"
	"learnedkv/pkg/common"
)

// MergeIterator yields the ascending-key merge of a chain's base page and
// its overflows, hiding tombstoned entries. When multiple pages in the
// chain hold the same key, the page earliest in chain order (closest to the
// base page) wins: buffer.PageStore.FlushPage merges new writes into the
// base page and links each new overflow page directly after the base, so
// pages nearer the head of the chain hold the more recent entries.
type MergeIterator struct {
	pages    [][]common.Entry
	cursors  []int
	startKey *common.Key
	skipped  bool

	cur   common.Entry
	valid bool
}

// NewMergeIterator returns an iterator over chain. If startKey is non-nil,
// keys strictly below it are skipped once, at the start of iteration —
// callers pass this only for the first chain a scan visits.
func NewMergeIterator(chain *buffer.Chain, startKey *common.Key) *MergeIterator {
	it := &MergeIterator{startKey: startKey}
	for _, p := range chain.Pages {
		it.pages = append(it.pages, p.Entries())
		it.cursors = append(it.cursors, 0)
	}
	it.advance()
	return it
}

// Valid reports whether Key/Value/Entry return a usable current element.
func (it *MergeIterator) Valid() bool { return it.valid }

// Entry returns the current element. Only valid while Valid() is true.
func (it *MergeIterator) Entry() common.Entry { return it.cur }

// Next advances to the following element.
func (it *MergeIterator) Next() {
	it.advance()
}

func (it *MergeIterator) advance() {
	for {
		minKey, any := it.peekMinKey()
		if !any {
			it.valid = false
			return
		}

		var winner common.Entry
		haveWinner := false
		for pi := range it.pages {
			ci := it.cursors[pi]
			if ci >= len(it.pages[pi]) {
				continue
			}
			e := it.pages[pi][ci]
			if e.Key != minKey {
				continue
			}
			it.cursors[pi]++
			if !haveWinner {
				winner = e
				haveWinner = true
			}
		}
		if !haveWinner {
			it.valid = false
			return
		}

		if it.startKey != nil && !it.skipped {
			// Keys below the start key are skipped until the first key at
			// or above it; keys ascend, so no later key needs the check.
			// Duplicates of the same key across pages were already
			// consumed above.
			if minKey < *it.startKey {
				continue
			}
			it.skipped = true
		}

		if winner.Kind == common.KindDelete {
			continue
		}

		it.cur = winner
		it.valid = true
		return
	}
}

func (it *MergeIterator) peekMinKey() (common.Key, bool) {
	var min common.Key
	any := false
	for pi := range it.pages {
		ci := it.cursors[pi]
		if ci >= len(it.pages[pi]) {
			continue
		}
		k := it.pages[pi][ci].Key
		if !any || k < min {
			min = k
			any = true
		}
	}
	return min, any
}
