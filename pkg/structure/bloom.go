// Package structure carries the ambient data structures the engine uses
// alongside the core write path — currently a point-lookup bloom filter
// guarding the page store from unnecessary pins on a miss.
package structure

import (
	"hash/fnv"
	"math"
	"sync"

	"learnedkv/pkg/common"
)

type BloomFilter struct {
	bitset   []bool
	k        uint
	m        uint
	count    uint
	capacity uint
	fpRate   float64
	lock     sync.RWMutex
}

// NewBloomFilter sizes the filter for n expected elements at false
// positive rate p using the standard optimal m/k formulas.
func NewBloomFilter(n uint, p float64) *BloomFilter {
	m := uint(math.Ceil(float64(n) * math.Log(p) / math.Log(1.0/math.Pow(2.0, math.Log(2.0)))))
	k := uint(math.Ceil((float64(m) / float64(n)) * math.Log(2.0)))

	return &BloomFilter{
		bitset:   make([]bool, m),
		k:        k,
		m:        m,
		count:    0,
		capacity: n,
		fpRate:   p,
	}
}

func (bf *BloomFilter) Add(key common.Key) {
	bf.lock.Lock()
	defer bf.lock.Unlock()

	data := int64(key)
	h1 := hash1(data)
	h2 := hash2(data)

	for i := uint(0); i < bf.k; i++ {
		pos := (h1 + uint32(i)*h2) % uint32(bf.m)
		bf.bitset[pos] = true
	}
	bf.count++
}

func (bf *BloomFilter) Contains(key common.Key) bool {
	bf.lock.RLock()
	defer bf.lock.RUnlock()

	data := int64(key)
	h1 := hash1(data)
	h2 := hash2(data)

	for i := uint(0); i < bf.k; i++ {
		pos := (h1 + uint32(i)*h2) % uint32(bf.m)
		if !bf.bitset[pos] {
			return false
		}
	}
	return true
}

func hash1(n int64) uint32 {
	h := fnv.New32a()
	h.Write([]byte{
		byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24),
		byte(n >> 32), byte(n >> 40), byte(n >> 48), byte(n >> 56),
	})
	return h.Sum32()
}

func hash2(n int64) uint32 {
	return uint32(n ^ (n >> 32))
}

// OverCapacity reports whether more elements have been added than the
// filter was sized for, meaning its actual false-positive rate has drifted
// above the configured target.
func (bf *BloomFilter) OverCapacity() bool {
	bf.lock.RLock()
	defer bf.lock.RUnlock()
	return bf.count > bf.capacity
}

func (bf *BloomFilter) Stats() map[string]interface{} {
	bf.lock.RLock()
	defer bf.lock.RUnlock()
	return map[string]interface{}{
		"bloom_bits_size":     bf.m,
		"bloom_hashes":        bf.k,
		"bloom_count":         bf.count,
		"bloom_capacity":      bf.capacity,
		"bloom_fp_rate":       bf.fpRate,
		"bloom_over_capacity": bf.count > bf.capacity,
	}
}
