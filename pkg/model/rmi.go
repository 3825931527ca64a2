// Package model implements the key model: a two-layer
// recursive model index that maps a key to an estimated page id. Layer one
// buckets the key range by simple linear interpolation; layer two is a
// least-squares fit per bucket. Training and representation are left open
// for a caller to specialize; this is a concrete, minimal instance.
package model

import "learnedkv/pkg/common"

// PageModel is the key model: it predicts a page id for a key by
// predicting the key's sorted position and dividing by the configured
// number of records per page.
type PageModel struct {
	globalMin      common.Key
	globalMax      common.Key
	fanout         int
	recordsPerPage int
	numPages       int
	buckets        []*LinearModel
}

// NewPageModel constructs an untrained model. fanout is the number of
// first-layer buckets; recordsPerPage and numPages describe the physical
// page layout the predicted positions are mapped onto.
func NewPageModel(fanout, recordsPerPage, numPages int) *PageModel {
	if fanout < 1 {
		fanout = 1
	}
	buckets := make([]*LinearModel, fanout)
	for i := range buckets {
		buckets[i] = NewLinearModel()
	}
	return &PageModel{
		fanout:         fanout,
		recordsPerPage: recordsPerPage,
		numPages:       numPages,
		buckets:        buckets,
	}
}

// Train fits the model against a sorted, deduplicated key set. keys must
// already be in ascending order; position i is keys[i]'s sorted rank.
func (m *PageModel) Train(keys []common.Key) {
	if len(keys) == 0 {
		return
	}
	m.globalMin = keys[0]
	m.globalMax = keys[len(keys)-1]

	bucketKeys := make([][]common.Key, m.fanout)
	bucketPos := make([][]int, m.fanout)
	for i, key := range keys {
		b := m.bucketFor(key)
		bucketKeys[b] = append(bucketKeys[b], key)
		bucketPos[b] = append(bucketPos[b], i)
	}
	for i := 0; i < m.fanout; i++ {
		lm := NewLinearModel()
		if len(bucketKeys[i]) > 0 {
			lm.TrainWithPos(bucketKeys[i], bucketPos[i])
		}
		m.buckets[i] = lm
	}
}

func (m *PageModel) bucketFor(key common.Key) int {
	keyRange := float64(m.globalMax - m.globalMin)
	if keyRange == 0 {
		return 0
	}
	b := int(float64(key-m.globalMin) / keyRange * float64(m.fanout))
	if b >= m.fanout {
		b = m.fanout - 1
	}
	if b < 0 {
		b = 0
	}
	return b
}

func (m *PageModel) clampPage(p int) common.PageID {
	if p < 0 {
		p = 0
	}
	if m.numPages > 0 && p >= m.numPages {
		p = m.numPages - 1
	}
	return common.PageID(p)
}

// KeyToPageID returns the estimated physical page containing key. The
// division from estimated sorted position to page id happens here, inside
// the model, rather than being a second step the caller must perform.
func (m *PageModel) KeyToPageID(key common.Key) common.PageID {
	if len(m.buckets) == 0 || m.recordsPerPage < 1 {
		return common.PageID(0)
	}
	pos := m.buckets[m.bucketFor(key)].Predict(key)
	return m.clampPage(pos / m.recordsPerPage)
}

// KeyToNextPageID returns the page id whose range strictly follows the
// page with the given lower-bound key, or common.NoPage past the end.
// Pages are contiguous by construction, so "next" is simply the successor
// page id of whichever page lowerBoundKey resolves into.
func (m *PageModel) KeyToNextPageID(lowerBoundKey common.Key) common.PageID {
	cur := m.KeyToPageID(lowerBoundKey)
	next := int(cur) + 1
	if m.numPages > 0 && next >= m.numPages {
		return common.NoPage
	}
	return common.PageID(next)
}

// NumPages reports the physical page count this model was configured for.
func (m *PageModel) NumPages() int { return m.numPages }

// RecordsPerPage reports the configured page capacity used to convert a
// predicted sorted position into a page id.
func (m *PageModel) RecordsPerPage() int { return m.recordsPerPage }
