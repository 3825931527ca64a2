package monitor

import (
	"sync/atomic"
)

type WorkloadStats struct {
	ReadCount  uint64
	WriteCount uint64
	HitCount   uint64

	// BloomNegatives counts lookups the bloom filter correctly turned away
	// before a scan. BloomPositives counts lookups the bloom filter let
	// through to a scan; BloomFalsePositives is the subset of those the
	// scan then failed to confirm — the write path's only runtime signal
	// for whether the configured false-positive rate is holding up under
	// the actual key distribution.
	BloomNegatives      uint64
	BloomPositives      uint64
	BloomFalsePositives uint64
}

func NewWorkloadStats() *WorkloadStats {
	return &WorkloadStats{}
}

func (ws *WorkloadStats) RecordRead() {
	atomic.AddUint64(&ws.ReadCount, 1)
}

func (ws *WorkloadStats) RecordWrite() {
	atomic.AddUint64(&ws.WriteCount, 1)
}

func (ws *WorkloadStats) RecordHit() {
	atomic.AddUint64(&ws.HitCount, 1)
}

func (ws *WorkloadStats) RecordBloomNegative() {
	atomic.AddUint64(&ws.BloomNegatives, 1)
}

func (ws *WorkloadStats) RecordBloomPositive() {
	atomic.AddUint64(&ws.BloomPositives, 1)
}

func (ws *WorkloadStats) RecordBloomFalsePositive() {
	atomic.AddUint64(&ws.BloomFalsePositives, 1)
}

// BloomFalsePositiveRate is the observed fraction of bloom-filter
// positives that a scan failed to confirm.
func (ws *WorkloadStats) BloomFalsePositiveRate() float64 {
	positives := atomic.LoadUint64(&ws.BloomPositives)
	if positives == 0 {
		return 0.0
	}
	return float64(atomic.LoadUint64(&ws.BloomFalsePositives)) / float64(positives)
}

func (ws *WorkloadStats) GetReadWriteRatio() float64 {
	reads := atomic.LoadUint64(&ws.ReadCount)
	writes := atomic.LoadUint64(&ws.WriteCount)

	if writes == 0 {
		if reads > 0 {
			return 100.0
		}
		return 0.0
	}
	return float64(reads) / float64(writes)
}
