// Package engine wires the write-path core into
// a runnable key-value store: model-driven paging, a deferred-flush
// memtable, a concurrent segment index, and pinned range scans, plus the
// ambient plumbing (WAL, bloom filter, workload stats) a real deployment
// needs around that core.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"learnedkv/pkg/buffer"
	"learnedkv/pkg/common"
	"learnedkv/pkg/config"
	"learnedkv/pkg/flush"
	"learnedkv/pkg/lockmgr"
	"learnedkv/pkg/memtable"
	"learnedkv/pkg/model"
	"learnedkv/pkg/monitor"
	"learnedkv/pkg/scan"
	"learnedkv/pkg/segment"
	"learnedkv/pkg/storage"
	"learnedkv/pkg/structure"
)

// Engine is the top-level coordinator. It owns no algorithm the component
// packages don't already implement; its job is wiring: publishing the
// active memtable, running the single-flusher invariant, and keeping the
// page store's overflow signals flowing into the segment index.
type Engine struct {
	cfg *config.Config

	model   *model.PageModel
	active  atomic.Pointer[memtable.Memtable]
	planner *flush.Planner
	flushMu sync.Mutex

	lockMgr  *lockmgr.Manager
	index    *segment.Index
	segStore *segment.Store
	store    *buffer.PageStore
	scanner  *scan.Scanner

	wal   *storage.WAL
	bloom *structure.BloomFilter
	stats *monitor.WorkloadStats

	pageLowerMu sync.RWMutex
	pageLower   map[common.PageID]common.Key
}

// Open constructs an engine over cfg, opening (or creating) its
// write-ahead log at walPath and its segment-metadata database at
// walPath+".segments.db". If that database already holds a checkpointed
// mapping from a prior run, the segment index is rebuilt from it instead
// of starting from the single degenerate segment covering page 0 — page
// contents themselves are not persisted, so a restored segment's page is
// empty until the caller re-populates it (e.g. via BulkLoad).
func Open(cfg *config.Config, walPath string) (*Engine, error) {
	w, err := storage.OpenWAL(walPath)
	if err != nil {
		return nil, fmt.Errorf("engine: open wal: %w", err)
	}

	segStore, err := segment.OpenStore(walPath + ".segments.db")
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("engine: open segment store: %w", err)
	}

	lm := lockmgr.NewManager()
	idx, err := segStore.Load(lm)
	if err != nil {
		w.Close()
		segStore.Close()
		return nil, fmt.Errorf("engine: load segment store: %w", err)
	}

	pageLower := make(map[common.PageID]common.Key)
	if idx.NumSegments() == 0 {
		idx.Seed([]segment.Info{{ID: 0}}, []common.Key{0})
		pageLower[0] = 0
	} else {
		for _, entry := range idx.All() {
			pageLower[common.PageID(entry.Info.ID)] = entry.Lower
		}
	}

	store := buffer.NewPageStore(cfg.Buffer.PageCapacity)
	store.AllocatePage(0)

	pm := model.NewPageModel(cfg.Model.Fanout, cfg.Model.RecordsPerPage, cfg.Model.NumPages)
	planner := flush.NewPlanner(pm, cfg.Flush.IOThreshold, cfg.Flush.MaxDeferrals, cfg.Model.NumPages)
	scanner := scan.NewScanner(pm, store)

	keyCapacity := uint(cfg.Model.NumPages * cfg.Model.RecordsPerPage)
	if keyCapacity < 1 {
		keyCapacity = 1
	}
	bloom := structure.NewBloomFilter(keyCapacity, cfg.Bloom.FalsePositiveRate)

	e := &Engine{
		cfg:       cfg,
		model:     pm,
		planner:   planner,
		lockMgr:   lm,
		index:     idx,
		segStore:  segStore,
		store:     store,
		scanner:   scanner,
		wal:       w,
		bloom:     bloom,
		stats:     monitor.NewWorkloadStats(),
		pageLower: pageLower,
	}
	e.active.Store(memtable.New())
	return e, nil
}

// BulkLoad trains the key model over entries and seeds the page store and
// segment index accordingly. entries need not be pre-sorted.
// Calling BulkLoad more than once re-trains the model over the new key set
// and adds the resulting segments and pages alongside whatever is already
// seeded; it does not clear prior state. The resulting segment mapping is
// checkpointed to the segment store before BulkLoad returns, so a restart
// immediately after a bulk load picks it back up.
func (e *Engine) BulkLoad(entries []common.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]common.Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	keys := make([]common.Key, len(sorted))
	for i, en := range sorted {
		keys[i] = en.Key
	}
	e.model.Train(keys)

	groups := make(map[common.PageID][]common.Entry)
	var order []common.PageID
	seen := make(map[common.PageID]bool)
	for _, en := range sorted {
		p := e.model.KeyToPageID(en.Key)
		if !seen[p] {
			seen[p] = true
			order = append(order, p)
		}
		groups[p] = append(groups[p], en)
	}

	infos := make([]segment.Info, 0, len(order))
	lowers := make([]common.Key, 0, len(order))
	newLower := make(map[common.PageID]common.Key, len(order))
	for _, p := range order {
		lower := groups[p][0].Key
		infos = append(infos, segment.Info{ID: uint64(p)})
		lowers = append(lowers, lower)
		newLower[p] = lower
	}

	e.pageLowerMu.Lock()
	for p, lower := range newLower {
		e.pageLower[p] = lower
	}
	e.pageLowerMu.Unlock()

	e.index.Seed(infos, lowers)

	for _, p := range order {
		e.store.FlushPage(p, groups[p], e.onOverflow)
	}

	for _, en := range sorted {
		if en.Kind == common.KindWrite {
			e.bloom.Add(en.Key)
		}
	}

	if err := e.segStore.Checkpoint(e.index); err != nil {
		return fmt.Errorf("engine: checkpoint segment store: %w", err)
	}
	return nil
}

func (e *Engine) onOverflow(pageID common.PageID) {
	e.pageLowerMu.RLock()
	lower, ok := e.pageLower[pageID]
	e.pageLowerMu.RUnlock()
	if ok {
		e.index.SetSegmentOverflow(lower, true)
	}
}

// Put appends key/value/kind to the write-ahead log, then inserts it into
// the active memtable, recording the flush planner's per-insert side
// effect and the bloom filter's presence bit, triggering a flush if the
// active memtable has crossed its configured size threshold.
func (e *Engine) Put(key common.Key, value common.Value, kind common.Kind) error {
	if err := e.wal.Append(key, value, kind); err != nil {
		return fmt.Errorf("engine: wal append: %w", err)
	}

	active := e.active.Load()
	active.Add(key, value, kind)
	e.planner.RecordInsert(key)
	if kind == common.KindWrite {
		e.bloom.Add(key)
	}
	e.stats.RecordWrite()

	e.maybeFlush()
	return nil
}

// Insert is an alias for Put, matching the write-operation name the
// deferral engine's bookkeeping (RecordInsert) uses.
func (e *Engine) Insert(key common.Key, value common.Value, kind common.Kind) error {
	return e.Put(key, value, kind)
}

func (e *Engine) maybeFlush() {
	active := e.active.Load()
	if active.ApproximateMemoryUsage() < e.cfg.Flush.MemtableFlushThresholdBytes {
		return
	}

	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	active = e.active.Load()
	if active.ApproximateMemoryUsage() < e.cfg.Flush.MemtableFlushThresholdBytes {
		return
	}

	fresh := e.planner.Flush(active, e.issueFlushIO)
	e.active.Store(fresh)
}

func (e *Engine) issueFlushIO(page common.PageID, entries []common.Entry) {
	e.store.FlushPage(page, entries, e.onOverflow)
}

// Get is a point-lookup convenience: check the active memtable first,
// consult the bloom filter to avoid a pointless scan, then fall back to
// GetRange(key, 1).
func (e *Engine) Get(key common.Key) (common.Value, bool) {
	e.stats.RecordRead()

	if entry, ok := e.active.Load().Get(key); ok {
		if entry.Kind == common.KindDelete {
			return nil, false
		}
		e.stats.RecordHit()
		return entry.Value, true
	}

	if !e.bloom.Contains(key) {
		e.stats.RecordBloomNegative()
		return nil, false
	}
	e.stats.RecordBloomPositive()

	results := e.scanner.GetRange(key, 1)
	if len(results) == 0 || results[0].Key != key {
		e.stats.RecordBloomFalsePositive()
		return nil, false
	}
	if results[0].Kind == common.KindDelete {
		return nil, false
	}
	e.stats.RecordHit()
	return results[0].Value, true
}

// GetRange produces the next numRecords records starting from startKey,
// delegating to the range scanner.
func (e *Engine) GetRange(startKey common.Key, numRecords int) []common.Entry {
	e.stats.RecordRead()
	return e.scanner.GetRange(startKey, numRecords)
}

// FindAndLockRewriteRegion exposes the segment index's rewrite-region
// acquisition using the configured search radius. The caller owns the
// returned entries' Reorg locks and must release them via
// ReleaseRewriteRegion.
func (e *Engine) FindAndLockRewriteRegion(segmentBase common.Key) ([]segment.Entry, error) {
	return e.index.FindAndLockRewriteRegion(segmentBase, e.cfg.Reorg.SearchRadius)
}

// ReleaseRewriteRegion releases the Reorg locks held by a prior successful
// FindAndLockRewriteRegion call, then checkpoints the segment mapping —
// the caller is expected to have finished whatever overflow-clearing
// rewrite it was holding the region for, so this is the point at which the
// settled mapping is worth persisting.
func (e *Engine) ReleaseRewriteRegion(entries []segment.Entry) error {
	for _, en := range entries {
		e.lockMgr.Release(en.Info.ID, lockmgr.Reorg)
	}
	if err := e.segStore.Checkpoint(e.index); err != nil {
		return fmt.Errorf("engine: checkpoint segment store: %w", err)
	}
	return nil
}

// Stats exposes the workload counters accumulated so far.
func (e *Engine) Stats() *monitor.WorkloadStats { return e.stats }

// BloomStats exposes the point-lookup bloom filter's sizing and load, for
// diagnosing whether it still matches the engine's actual key range.
func (e *Engine) BloomStats() map[string]interface{} { return e.bloom.Stats() }

// Close drains the active memtable's remaining entries with one terminal
// flush, checkpoints the segment mapping, and closes the write-ahead log
// and segment store.
func (e *Engine) Close() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()

	e.planner.Drain(e.active.Load(), e.issueFlushIO)

	if err := e.segStore.Checkpoint(e.index); err != nil {
		e.wal.Close()
		e.segStore.Close()
		return fmt.Errorf("engine: checkpoint segment store: %w", err)
	}
	if err := e.segStore.Close(); err != nil {
		e.wal.Close()
		return fmt.Errorf("engine: close segment store: %w", err)
	}
	return e.wal.Close()
}
