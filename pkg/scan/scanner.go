package scan

import (
	"learnedkv/pkg/buffer"
	"learnedkv/pkg/common"
)

// KeyModel is the slice of the key model the scanner needs.
type KeyModel interface {
	KeyToPageID(common.Key) common.PageID
	KeyToNextPageID(common.Key) common.PageID
}

// ChainFixer is the slice of the buffer manager the scanner
// needs.
type ChainFixer interface {
	FixChain(pageID common.PageID, exclusive, unlockBeforeReturning bool) (*buffer.Chain, bool)
	UnfixChain(chain *buffer.Chain, exclusive, wasLocked, dirty bool)
}

// Scanner walks pinned page chains to produce an ordered key/value stream,
// re-pinning across a concurrent reorganization without ever dropping to
// zero pinned chains mid-query.
type Scanner struct {
	model KeyModel
	store ChainFixer
}

// NewScanner returns a range scanner over model and store.
func NewScanner(model KeyModel, store ChainFixer) *Scanner {
	return &Scanner{model: model, store: store}
}

// GetRange produces the next numRecords records starting from startKey, in
// ascending key order.
func (s *Scanner) GetRange(startKey common.Key, numRecords int) []common.Entry {
	out := make([]common.Entry, 0, numRecords)

	pid := s.model.KeyToPageID(startKey)
	isFirst := true
	var prevChain *buffer.Chain

	for len(out) < numRecords && pid.Valid() {
		currChain := s.fixWithRetry(&pid, isFirst, startKey, prevChain)

		if prevChain != nil {
			s.store.UnfixChain(prevChain, false, false, false)
			prevChain = nil
		}
		if currChain == nil {
			break
		}

		var startPtr *common.Key
		if isFirst {
			sk := startKey
			startPtr = &sk
		}
		isFirst = false

		mi := NewMergeIterator(currChain, startPtr)
		for mi.Valid() && len(out) < numRecords {
			out = append(out, mi.Entry())
			mi.Next()
		}

		prevChain = currChain
		pid = s.model.KeyToNextPageID(currChain.Base().LowerBoundary())
	}

	if prevChain != nil {
		s.store.UnfixChain(prevChain, false, false, false)
	}
	return out
}

// fixWithRetry spins fixing pid until it succeeds or the model reports no
// further page, re-querying the model on each failed attempt exactly as
// the protocol requires: by startKey while this is the first chain, and by
// the retained previous chain's lower boundary thereafter — so the
// scanner never loses its logical position across a failed pin.
func (s *Scanner) fixWithRetry(pid *common.PageID, isFirst bool, startKey common.Key, prevChain *buffer.Chain) *buffer.Chain {
	for pid.Valid() {
		chain, ok := s.store.FixChain(*pid, false, true)
		if ok {
			return chain
		}
		if isFirst {
			*pid = s.model.KeyToPageID(startKey)
		} else {
			*pid = s.model.KeyToNextPageID(prevChain.Base().LowerBoundary())
		}
	}
	return nil
}
