// Package buffer implements the overflow chain reader / buffer manager:
// a pin-counted page store where a base page and its
// overflow extensions are fixed and unfixed as a single atomic unit.
package buffer

import (
	"sort"
	"sync"
	"sync/atomic"

	"learnedkv/pkg/common"
)

// Page is one physical page: a sorted run of entries plus a pointer to its
// overflow extension, if any. Entries are kept sorted so the merge
// iterator (pkg/scan) can walk several pages without re-sorting.
type Page struct {
	ID           common.PageID
	mu           sync.RWMutex
	pins         int32
	entries      []common.Entry
	overflowNext common.PageID
	dirty        bool
}

// LowerBoundary returns the smallest key the page currently holds (0 for an
// empty page), used by the range scanner to ask the model for the following
// page, both when advancing and after a pin failure.
func (p *Page) LowerBoundary() common.Key {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.entries) == 0 {
		return 0
	}
	return p.entries[0].Key
}

// Entries returns a snapshot of the page's sorted entries.
func (p *Page) Entries() []common.Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]common.Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

func (p *Page) pin()   { atomic.AddInt32(&p.pins, 1) }
func (p *Page) unpin() { atomic.AddInt32(&p.pins, -1) }

// PinCount reports the current pin count, used by tests only.
func (p *Page) PinCount() int32 { return atomic.LoadInt32(&p.pins) }

func (p *Page) setEntries(entries []common.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	p.entries = entries
	p.dirty = true
}

// Chain is a base page plus its overflow extensions, pinned as a unit.
// The first element is always the base page.
type Chain struct {
	Pages []*Page
}

// Base returns the chain's base page.
func (c *Chain) Base() *Page { return c.Pages[0] }
