// Package flush implements the deferral engine: given a full
// memtable, it decides per destination page whether to issue I/O now or
// defer those entries to a later flush, swaps in a fresh memtable, and
// maintains the per-page bookkeeping vectors that drive that decision.
package flush

import (
	"learnedkv/pkg/common"
	"learnedkv/pkg/memtable"
)

// IOIssuer receives one call per page chosen for I/O during a flush. The
// planner does not itself know how to write a page; it reports the
// decision and lets the caller (the engine) perform the actual write.
type IOIssuer func(page common.PageID, entries []common.Entry)

// KeyModel is the slice of the key model the planner needs:
// mapping a key to its estimated destination page.
type KeyModel interface {
	KeyToPageID(common.Key) common.PageID
}

// Planner owns the per-flush bookkeeping vectors and the two tunables that
// govern deferral: io_threshold (T) and max_deferrals (D).
type Planner struct {
	model KeyModel

	ioThreshold  int
	maxDeferrals int

	memtableEntriesPerPage []int
	pageDeferralCount      []int
	flushedThisTime        []bool

	numFlushes int
	numIOs     int
}

// NewPlanner constructs a planner over numPages physical pages.
func NewPlanner(m KeyModel, ioThreshold, maxDeferrals, numPages int) *Planner {
	return &Planner{
		model:                  m,
		ioThreshold:            ioThreshold,
		maxDeferrals:           maxDeferrals,
		memtableEntriesPerPage: make([]int, numPages),
		pageDeferralCount:      make([]int, numPages),
		flushedThisTime:        make([]bool, numPages),
	}
}

// pageFor computes p(e) as specified: the model's estimated page id for the
// entry's key. The division by records-per-page already happened inside
// the model (see model.PageModel.KeyToPageID).
func (p *Planner) pageFor(key common.Key) common.PageID {
	return p.model.KeyToPageID(key)
}

// RecordInsert is the per-insert side effect: before flush is considered,
// bump the destination page's pending-entry count.
func (p *Planner) RecordInsert(key common.Key) {
	page := int(p.pageFor(key))
	if page < 0 || page >= len(p.memtableEntriesPerPage) {
		return
	}
	p.memtableEntriesPerPage[page]++
}

// Flush runs the two-phase flush procedure over m, issuing I/O via issue
// and returning the fresh memtable to install as active.
func (p *Planner) Flush(m *memtable.Memtable, issue IOIssuer) *memtable.Memtable {
	fresh := memtable.New()
	pending := make(map[common.PageID][]common.Entry)

	m.IterateSorted(func(e common.Entry) bool {
		page := p.pageFor(e.Key)
		idx := int(page)
		flushed := false
		if idx >= 0 && idx < len(p.memtableEntriesPerPage) {
			flushed = p.memtableEntriesPerPage[idx] >= p.ioThreshold ||
				p.pageDeferralCount[idx] >= p.maxDeferrals
		}
		if flushed {
			if idx >= 0 && idx < len(p.flushedThisTime) {
				p.flushedThisTime[idx] = true
			}
			pending[page] = append(pending[page], e)
		} else {
			fresh.Add(e.Key, e.Value, e.Kind)
		}
		return true
	})

	for i := range p.flushedThisTime {
		if p.flushedThisTime[i] {
			p.numIOs++
			if issue != nil {
				issue(common.PageID(i), pending[common.PageID(i)])
			}
			p.memtableEntriesPerPage[i] = 0
			p.pageDeferralCount[i] = 0
			p.flushedThisTime[i] = false
		} else {
			p.pageDeferralCount[i]++
		}
	}

	p.numFlushes++
	return fresh
}

// Drain performs the final, terminal flush at shutdown: every page with a
// non-zero pending-entry count incurs one I/O. Counters are not reset —
// this flush is terminal.
func (p *Planner) Drain(m *memtable.Memtable, issue IOIssuer) {
	pending := make(map[common.PageID][]common.Entry)
	m.IterateSorted(func(e common.Entry) bool {
		pending[p.pageFor(e.Key)] = append(pending[p.pageFor(e.Key)], e)
		return true
	})

	for i := range p.memtableEntriesPerPage {
		if p.memtableEntriesPerPage[i] > 0 {
			p.numIOs++
			if issue != nil {
				issue(common.PageID(i), pending[common.PageID(i)])
			}
		}
	}
	p.numFlushes++
}

// NumFlushes reports how many flush cycles (including the terminal drain)
// have run so far.
func (p *Planner) NumFlushes() int { return p.numFlushes }

// NumIOs reports the total number of page I/Os issued so far: one per page
// per flush cycle in which it was chosen, regardless of entry count.
func (p *Planner) NumIOs() int { return p.numIOs }

// DeferralCount exposes a single page's current consecutive-deferral
// count, used by tests asserting the forced-flush-at-D invariant.
func (p *Planner) DeferralCount(page common.PageID) int {
	if int(page) < 0 || int(page) >= len(p.pageDeferralCount) {
		return 0
	}
	return p.pageDeferralCount[page]
}

// PendingCount exposes a single page's current pending-entry count.
func (p *Planner) PendingCount(page common.PageID) int {
	if int(page) < 0 || int(page) >= len(p.memtableEntriesPerPage) {
		return 0
	}
	return p.memtableEntriesPerPage[page]
}
