// Command lkv is an interactive REPL over a local pkg/engine.Engine,
// dispatching commands directly to an in-process engine rather than over
// a network client.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"learnedkv/pkg/common"
	"learnedkv/pkg/config"
	"learnedkv/pkg/engine"
)

const prompt = "lkv> "

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults applied if omitted).")
	walPath := flag.String("wal", "lkv.wal", "Path to the write-ahead log file.")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil && *configPath != "" {
		fmt.Printf("Warning: failed to load config %q, using defaults: %v\n", *configPath, err)
	}

	e, err := engine.Open(cfg, *walPath)
	if err != nil {
		fmt.Printf("Failed to open engine: %v\n", err)
		os.Exit(1)
	}
	defer e.Close()

	fmt.Println("learnedkv CLI. Type 'help' for commands.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "put", "set":
			handlePut(e, parts)
		case "get":
			handleGet(e, parts)
		case "del", "rm":
			handleDel(e, parts)
		case "scan":
			handleScan(e, parts)
		case "stats":
			handleStats(e)
		case "help":
			printHelp()
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Printf("Unknown command: %q. Type 'help'.\n", cmd)
		}
	}
}

func handlePut(e *engine.Engine, parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: put <key_int> <value_string>")
		return
	}
	key, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		fmt.Println("Error: key must be a non-negative integer")
		return
	}
	value := strings.Join(parts[2:], " ")

	start := time.Now()
	err = e.Put(common.Key(key), common.Value(value), common.KindWrite)
	duration := time.Since(start)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("OK (%v)\n", duration)
}

func handleGet(e *engine.Engine, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: get <key_int>")
		return
	}
	key, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		fmt.Println("Error: key must be a non-negative integer")
		return
	}

	start := time.Now()
	val, ok := e.Get(common.Key(key))
	duration := time.Since(start)
	if !ok {
		fmt.Printf("(not found) (%v)\n", duration)
		return
	}
	fmt.Printf("%q (%v)\n", string(val), duration)
}

func handleDel(e *engine.Engine, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: del <key_int>")
		return
	}
	key, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		fmt.Println("Error: key must be a non-negative integer")
		return
	}

	start := time.Now()
	err = e.Put(common.Key(key), nil, common.KindDelete)
	duration := time.Since(start)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Deleted (%v)\n", duration)
}

func handleScan(e *engine.Engine, parts []string) {
	if len(parts) < 3 {
		fmt.Println("Usage: scan <start_key> <num_records>")
		return
	}
	startKey, err1 := strconv.ParseUint(parts[1], 10, 64)
	numRecords, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil {
		fmt.Println("Error: start_key must be a non-negative integer, num_records an integer")
		return
	}

	start := time.Now()
	records := e.GetRange(common.Key(startKey), numRecords)
	duration := time.Since(start)

	fmt.Printf("Found %d records (%v):\n", len(records), duration)
	for i, rec := range records {
		if i >= 20 {
			fmt.Printf("... and %d more\n", len(records)-20)
			break
		}
		fmt.Printf("  [%d] -> %q\n", rec.Key, string(rec.Value))
	}
}

func handleStats(e *engine.Engine) {
	s := e.Stats()
	fmt.Printf("reads=%d writes=%d hits=%d read/write ratio=%.2f\n",
		s.ReadCount, s.WriteCount, s.HitCount, s.GetReadWriteRatio())
	fmt.Printf("bloom positives=%d negatives=%d false-positive rate=%.4f\n",
		s.BloomPositives, s.BloomNegatives, s.BloomFalsePositiveRate())

	bloom := e.BloomStats()
	fmt.Printf("bloom capacity=%v count=%v over_capacity=%v target_fp_rate=%v\n",
		bloom["bloom_capacity"], bloom["bloom_count"], bloom["bloom_over_capacity"], bloom["bloom_fp_rate"])
}

func printHelp() {
	fmt.Println(`
Commands:
  put <key> <value>        Insert/update record
  get <key>                Retrieve record
  del <key>                Delete record (tombstone)
  scan <start> <count>     Range query starting at <start>, up to <count> records
  stats                     Show workload counters
  exit                      Exit CLI
	`)
}
