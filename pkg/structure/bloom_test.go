package structure

import (
	"testing"

	"learnedkv/pkg/common"
)

func TestBloomFilterNoFalseNegatives(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)
	keys := make([]common.Key, 0, 200)
	for i := 0; i < 200; i++ {
		keys = append(keys, common.Key(i*7))
	}
	for _, k := range keys {
		bf.Add(k)
	}
	for _, k := range keys {
		if !bf.Contains(k) {
			t.Fatalf("false negative for key %d", k)
		}
	}
}

func TestBloomFilterAbsentKeyLikelyNotContained(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)
	bf.Add(common.Key(42))
	if bf.Contains(common.Key(9999)) {
		t.Fatalf("unrelated key reported present (statistically unlikely at this load factor)")
	}
}

func TestBloomFilterStatsReflectCount(t *testing.T) {
	bf := NewBloomFilter(100, 0.01)
	bf.Add(common.Key(1))
	bf.Add(common.Key(2))
	bf.Add(common.Key(3))

	stats := bf.Stats()
	if stats["bloom_count"] != uint(3) {
		t.Fatalf("bloom_count = %v, want 3", stats["bloom_count"])
	}
	if stats["bloom_capacity"] != uint(100) {
		t.Fatalf("bloom_capacity = %v, want 100", stats["bloom_capacity"])
	}
	if stats["bloom_fp_rate"] != 0.01 {
		t.Fatalf("bloom_fp_rate = %v, want 0.01", stats["bloom_fp_rate"])
	}
	if stats["bloom_over_capacity"] != false {
		t.Fatalf("bloom_over_capacity = %v, want false", stats["bloom_over_capacity"])
	}
}

func TestBloomFilterOverCapacity(t *testing.T) {
	bf := NewBloomFilter(2, 0.01)
	if bf.OverCapacity() {
		t.Fatalf("empty filter should not be over capacity")
	}

	bf.Add(common.Key(1))
	bf.Add(common.Key(2))
	bf.Add(common.Key(3))

	if !bf.OverCapacity() {
		t.Fatalf("filter loaded past its configured capacity should report OverCapacity")
	}
}
