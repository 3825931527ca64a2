package flush

import (
	"testing"

	"learnedkv/pkg/common"
	"learnedkv/pkg/memtable"
)

// fixedModel maps specific keys to specific pages, letting the deferral
// engine's tests control page assignment exactly, independent of any
// particular learned-index training behavior.
type fixedModel map[common.Key]common.PageID

func (f fixedModel) KeyToPageID(k common.Key) common.PageID {
	if p, ok := f[k]; ok {
		return p
	}
	return 0
}

// S1 — Threshold gating.
func TestFlushThresholdGating(t *testing.T) {
	m := memtable.New()
	model := fixedModel{1: 0, 2: 0, 3: 0, 4: 1}
	p := NewPlanner(model, 2, 10, 2)

	for _, k := range []common.Key{1, 2, 3, 4} {
		p.RecordInsert(k)
		m.Add(k, common.Value("v"), common.KindWrite)
	}

	var issuedPages []common.PageID
	fresh := p.Flush(m, func(page common.PageID, entries []common.Entry) {
		issuedPages = append(issuedPages, page)
	})

	if len(issuedPages) != 1 || issuedPages[0] != 0 {
		t.Fatalf("issued pages = %v, want [0]", issuedPages)
	}
	if p.NumIOs() != 1 {
		t.Fatalf("NumIOs() = %d, want 1", p.NumIOs())
	}
	if _, ok := fresh.Get(4); !ok {
		t.Fatalf("page-1 entry should re-enter the fresh memtable")
	}
	if p.DeferralCount(1) != 1 {
		t.Fatalf("DeferralCount(1) = %d, want 1", p.DeferralCount(1))
	}
	if p.DeferralCount(0) != 0 {
		t.Fatalf("DeferralCount(0) = %d, want 0 (flushed pages reset)", p.DeferralCount(0))
	}
}

// S2 — Forced by deferral.
func TestFlushForcedByDeferral(t *testing.T) {
	model := fixedModel{100: 5, 101: 5, 102: 5}
	p := NewPlanner(model, 100, 2, 10)

	run := func(key common.Key) {
		m := memtable.New()
		p.RecordInsert(key)
		m.Add(key, common.Value("v"), common.KindWrite)
		p.Flush(m, nil)
	}

	run(100)
	if p.DeferralCount(5) != 1 || p.NumIOs() != 0 {
		t.Fatalf("after flush 1: deferral=%d ios=%d", p.DeferralCount(5), p.NumIOs())
	}
	run(101)
	if p.DeferralCount(5) != 2 || p.NumIOs() != 0 {
		t.Fatalf("after flush 2: deferral=%d ios=%d", p.DeferralCount(5), p.NumIOs())
	}
	run(102)
	if p.NumIOs() != 1 {
		t.Fatalf("after flush 3: NumIOs() = %d, want 1", p.NumIOs())
	}
	if p.DeferralCount(5) != 0 {
		t.Fatalf("after forced flush, DeferralCount(5) = %d, want 0", p.DeferralCount(5))
	}
}

// S3 — Drain at close.
func TestDrainAtClose(t *testing.T) {
	model := fixedModel{}
	for k := common.Key(0); k < 20; k++ {
		model[k] = common.PageID(k % 4)
	}
	p := NewPlanner(model, 1<<30, 1<<30, 4)

	m := memtable.New()
	for k := common.Key(0); k < 20; k++ {
		p.RecordInsert(k)
		m.Add(k, common.Value("v"), common.KindWrite)
	}

	var issued int
	p.Drain(m, func(page common.PageID, entries []common.Entry) {
		issued++
	})

	if issued != 4 {
		t.Fatalf("Drain issued I/O for %d pages, want 4", issued)
	}
	if p.NumFlushes() != 1 {
		t.Fatalf("NumFlushes() = %d, want 1", p.NumFlushes())
	}
}

func TestEmptyFlushIsNoOp(t *testing.T) {
	model := fixedModel{}
	p := NewPlanner(model, 1, 1, 4)
	m := memtable.New()

	fresh := p.Flush(m, func(common.PageID, []common.Entry) {
		t.Fatalf("issue should not be called for an empty memtable")
	})
	if p.NumIOs() != 0 {
		t.Fatalf("NumIOs() = %d, want 0", p.NumIOs())
	}
	if fresh.Len() != 0 {
		t.Fatalf("fresh.Len() = %d, want 0", fresh.Len())
	}
}
