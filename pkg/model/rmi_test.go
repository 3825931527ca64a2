package model

import (
	"testing"

	"learnedkv/pkg/common"
)

func TestUntrainedModelDefaultsToPageZero(t *testing.T) {
	m := NewPageModel(4, 8, 16)
	if got := m.KeyToPageID(12345); got != 0 {
		t.Fatalf("untrained model: got page %d, want 0", got)
	}
}

func TestTrainedModelMonotoneAcrossKeys(t *testing.T) {
	keys := make([]common.Key, 0, 64)
	for i := 0; i < 64; i++ {
		keys = append(keys, common.Key(i*10))
	}
	m := NewPageModel(4, 4, 32)
	m.Train(keys)

	var prev common.PageID
	for i, k := range keys {
		p := m.KeyToPageID(k)
		if i > 0 && p < prev {
			t.Fatalf("page ids not monotone at key %d: got %d after %d", k, p, prev)
		}
		prev = p
	}
}

func TestKeyToPageIDClampsToNumPages(t *testing.T) {
	m := NewPageModel(2, 2, 4)
	m.Train([]common.Key{0, 10, 20, 30})

	if got := m.KeyToPageID(1_000_000); int(got) >= m.NumPages() {
		t.Fatalf("expected clamp below NumPages, got %d", got)
	}
}

func TestKeyToNextPageIDReturnsNoPageAtEnd(t *testing.T) {
	// A single-page model: every key clamps to page 0, which is also the
	// last page, so KeyToNextPageID must always report common.NoPage.
	m := NewPageModel(2, 2, 1)
	m.Train([]common.Key{0, 10, 20, 30})

	if got := m.KeyToNextPageID(30); got != common.NoPage {
		t.Fatalf("expected common.NoPage past the last page, got %d", got)
	}
}

func TestKeyToNextPageIDAdvancesByOne(t *testing.T) {
	m := NewPageModel(2, 1, 100)
	m.Train([]common.Key{0, 10, 20, 30, 40})

	cur := m.KeyToPageID(0)
	next := m.KeyToNextPageID(0)
	if next != common.NoPage && next != cur+1 {
		t.Fatalf("expected next page id %d, got %d", cur+1, next)
	}
}
