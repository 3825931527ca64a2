// Package lockmgr implements the try-only segment lock manager:
// per-segment multi-mode locks with a strict compatibility
// matrix and no waiter queue. Callers spin on TryAcquire using Backoff.
package lockmgr

import (
	"sync"

	"github.com/zhangyunhao116/skipmap"
)

// Mode is a segment lock mode.
type Mode int

const (
	PageRead Mode = iota
	PageWrite
	Reorg
)

type segmentState struct {
	mu        sync.Mutex
	readers   int
	exclusive bool
}

// Manager tracks, for each segment id, the set of held lock modes.
type Manager struct {
	segments *skipmap.Uint64Map[*segmentState]
}

// NewManager returns an empty lock manager.
func NewManager() *Manager {
	return &Manager{segments: skipmap.NewUint64[*segmentState]()}
}

func (m *Manager) state(segmentID uint64) *segmentState {
	if s, ok := m.segments.Load(segmentID); ok {
		return s
	}
	s := &segmentState{}
	actual, _ := m.segments.LoadOrStore(segmentID, s)
	return actual
}

// TryAcquire attempts to grant mode on segmentID, returning immediately
// with the outcome per the compatibility matrix:
//
//	held \ req   PageRead  PageWrite  Reorg
//	none         grant     grant      grant
//	PageRead     grant     deny       deny
//	PageWrite    deny      deny       deny
//	Reorg        deny      deny       deny
func (m *Manager) TryAcquire(segmentID uint64, mode Mode) bool {
	s := m.state(segmentID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exclusive {
		return false
	}
	switch mode {
	case PageRead:
		s.readers++
		return true
	case PageWrite, Reorg:
		if s.readers > 0 {
			return false
		}
		s.exclusive = true
		return true
	default:
		return false
	}
}

// Release drops a previously granted mode on segmentID.
func (m *Manager) Release(segmentID uint64, mode Mode) {
	s := m.state(segmentID)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case PageRead:
		if s.readers > 0 {
			s.readers--
		}
	case PageWrite, Reorg:
		s.exclusive = false
	}
}

// SpinAcquire blocks the calling goroutine, retrying TryAcquire with
// randomized exponential backoff until it succeeds.
func (m *Manager) SpinAcquire(segmentID uint64, mode Mode) {
	b := NewBackoff()
	for !m.TryAcquire(segmentID, mode) {
		b.Wait()
	}
}
