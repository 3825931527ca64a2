package scan

import (
	"testing"

	"learnedkv/pkg/buffer"
	"learnedkv/pkg/common"
)

// stepModel routes key k to page k/10, covering a fixed number of pages.
type stepModel struct{ numPages int }

func (m stepModel) KeyToPageID(k common.Key) common.PageID {
	p := int(k) / 10
	if p >= m.numPages {
		p = m.numPages - 1
	}
	return common.PageID(p)
}

func (m stepModel) KeyToNextPageID(lower common.Key) common.PageID {
	next := int(lower)/10 + 1
	if next >= m.numPages {
		return common.NoPage
	}
	return common.PageID(next)
}

func newTestStore(t *testing.T, numPages int) *buffer.PageStore {
	t.Helper()
	s := buffer.NewPageStore(1 << 20)
	for p := 0; p < numPages; p++ {
		entries := []common.Entry{
			{Key: common.Key(p*10 + 2), Value: common.Value("a")},
			{Key: common.Key(p*10 + 5), Value: common.Value("b")},
		}
		s.FlushPage(common.PageID(p), entries, nil)
	}
	return s
}

func TestGetRangeAcrossPages(t *testing.T) {
	store := newTestStore(t, 3)
	scanner := NewScanner(stepModel{numPages: 3}, store)

	got := scanner.GetRange(0, 10)
	var keys []common.Key
	for _, e := range got {
		keys = append(keys, e.Key)
	}
	want := []common.Key{2, 5, 12, 15, 22, 25}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestGetRangeRespectsStartKey(t *testing.T) {
	store := newTestStore(t, 2)
	scanner := NewScanner(stepModel{numPages: 2}, store)

	got := scanner.GetRange(4, 10)
	for _, e := range got {
		if e.Key < 4 {
			t.Fatalf("GetRange(4, ...) returned key %d below start_key", e.Key)
		}
	}
}

func TestGetRangeHonorsNumRecords(t *testing.T) {
	store := newTestStore(t, 3)
	scanner := NewScanner(stepModel{numPages: 3}, store)

	got := scanner.GetRange(0, 2)
	if len(got) != 2 {
		t.Fatalf("GetRange with numRecords=2 returned %d entries", len(got))
	}
}

// flakyFixer fails the first FixChain attempt for a given page id, then
// delegates normally — modeling a pin failure the scanner must recover
// from by re-querying the model, per S6.
type flakyFixer struct {
	*buffer.PageStore
	failOncePage common.PageID
	failed       bool
}

func (f *flakyFixer) FixChain(pageID common.PageID, exclusive, unlock bool) (*buffer.Chain, bool) {
	if pageID == f.failOncePage && !f.failed {
		f.failed = true
		return nil, false
	}
	return f.PageStore.FixChain(pageID, exclusive, unlock)
}

func TestGetRangeRecoversFromPinFailure(t *testing.T) {
	store := newTestStore(t, 3)
	flaky := &flakyFixer{PageStore: store, failOncePage: 1}
	scanner := NewScanner(stepModel{numPages: 3}, flaky)

	got := scanner.GetRange(0, 10)
	var keys []common.Key
	for _, e := range got {
		keys = append(keys, e.Key)
	}
	want := []common.Key{2, 5, 12, 15, 22, 25}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v (scan must not lose position on pin failure)", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}
