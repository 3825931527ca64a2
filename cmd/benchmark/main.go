// Command benchmark drives pkg/flush.Planner directly against a synthetic
// insert-only workload over a bulk-loaded key range and reports the
// resulting flush/I/O counts, independent of any running engine instance.
package main

import (
	"flag"
	"fmt"
	"math/rand"

	"learnedkv/pkg/common"
	"learnedkv/pkg/flush"
	"learnedkv/pkg/memtable"
	"learnedkv/pkg/model"
)

func main() {
	numKeys := flag.Int("num_keys", 100000, "Number of keys in the bulk-loaded key range.")
	numInserts := flag.Int("num_inserts", 200000, "Number of insert operations in the simulated workload.")
	recordSizeBytes := flag.Uint("record_size_bytes", 16, "Size of a database record in bytes.")
	pageFillPct := flag.Uint("page_fill_pct", 50, "How full each page should be after bulk loading, in percentage points.")
	pageSize := flag.Uint64("page_size", 64*1024, "The size of a page in bytes.")
	memtableFlushThreshold := flag.Uint64("memtable_flush_threshold", 64*1024*1024, "The threshold above which the memtable is flushed, in bytes.")
	ioThreshold := flag.Uint64("io_threshold", 1, "Minimum number of entries destined for a page to justify issuing I/O for it this flush.")
	maxDeferrals := flag.Uint64("max_deferrals", 0, "Maximum number of consecutive flushes a page's entries may be skipped before forced I/O.")
	fanout := flag.Int("fanout", 64, "Number of first-layer buckets in the key model.")
	seed := flag.Int64("seed", 1, "PRNG seed for the synthetic workload.")
	flag.Parse()

	fillPct := float64(*pageFillPct) / 100.0
	recordsPerPage := int(float64(*pageSize) * fillPct / float64(*recordSizeBytes+10))
	if recordsPerPage < 1 {
		recordsPerPage = 1
	}
	numPages := *numKeys / recordsPerPage
	if *numKeys%recordsPerPage != 0 {
		numPages++
	}
	if numPages < 1 {
		numPages = 1
	}

	keys := make([]common.Key, *numKeys)
	for i := range keys {
		keys[i] = common.Key(i)
	}

	pm := model.NewPageModel(*fanout, recordsPerPage, numPages)
	pm.Train(keys)

	planner := flush.NewPlanner(pm, int(*ioThreshold), int(*maxDeferrals), numPages)
	active := memtable.New()

	rng := rand.New(rand.NewSource(*seed))
	var numFlushCycles int
	for i := 0; i < *numInserts; i++ {
		key := common.Key(rng.Intn(*numKeys))
		value := make([]byte, *recordSizeBytes)
		active.Add(key, value, common.KindWrite)
		planner.RecordInsert(key)

		if active.ApproximateMemoryUsage() >= int64(*memtableFlushThreshold) {
			active = planner.Flush(active, nil)
			numFlushCycles++
		}
	}
	planner.Drain(active, nil)

	fmt.Println("-------------------------------")
	fmt.Println("Parameters used:")
	fmt.Printf("\tNum keys: %d\n", *numKeys)
	fmt.Printf("\tNum inserts: %d\n", *numInserts)
	fmt.Printf("\tRecord size (bytes): %d\n", *recordSizeBytes)
	fmt.Printf("\n\tPage fill percentage: %d\n", *pageFillPct)
	fmt.Printf("\tPage size (bytes): %d\n", *pageSize)
	fmt.Printf("\n\tMemtable flush threshold (bytes): %d\n", *memtableFlushThreshold)
	fmt.Printf("\n\tMin requests for I/O: %d\n", *ioThreshold)
	fmt.Printf("\tMax number of deferrals: %d\n", *maxDeferrals)
	fmt.Println("Results:")
	fmt.Printf("\tRecords per page: %d\n", recordsPerPage)
	fmt.Printf("\tNum pages used: %d\n", numPages)
	fmt.Printf("\n\tNum times memtable was flushed (excluding drain): %d\n", numFlushCycles)
	fmt.Printf("\tNum flush cycles total (incl. drain): %d\n", planner.NumFlushes())
	fmt.Printf("\tNum of I/Os caused by flushes: %d\n", planner.NumIOs())
	fmt.Println("-------------------------------")
}
