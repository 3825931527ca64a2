package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	_, err := Load("/nonexistent/path/learnedkv.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.Model.Fanout != 64 {
		t.Errorf("default fanout: got %d", cfg.Model.Fanout)
	}
	if cfg.Flush.IOThreshold != 8 {
		t.Errorf("default io_threshold: got %d", cfg.Flush.IOThreshold)
	}
	if cfg.Flush.MaxDeferrals != 4 {
		t.Errorf("default max_deferrals: got %d", cfg.Flush.MaxDeferrals)
	}
	if cfg.Buffer.PageCapacity != 128 {
		t.Errorf("default page_capacity: got %d", cfg.Buffer.PageCapacity)
	}
	if cfg.Reorg.SearchRadius != 3 {
		t.Errorf("default search_radius: got %d", cfg.Reorg.SearchRadius)
	}
	if cfg.Bloom.FalsePositiveRate != 0.01 {
		t.Errorf("default false_positive_rate: got %f", cfg.Bloom.FalsePositiveRate)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	content := `
model:
  fanout: 32
  records_per_page: 64
  num_pages: 256
flush:
  io_threshold: 16
  max_deferrals: 2
buffer:
  page_capacity: 64
reorg:
  search_radius: 5
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model.Fanout != 32 {
		t.Errorf("fanout: got %d", cfg.Model.Fanout)
	}
	if cfg.Model.NumPages != 256 {
		t.Errorf("num_pages: got %d", cfg.Model.NumPages)
	}
	if cfg.Flush.IOThreshold != 16 {
		t.Errorf("io_threshold: got %d", cfg.Flush.IOThreshold)
	}
	if cfg.Flush.MaxDeferrals != 2 {
		t.Errorf("max_deferrals: got %d", cfg.Flush.MaxDeferrals)
	}
	if cfg.Buffer.PageCapacity != 64 {
		t.Errorf("page_capacity: got %d", cfg.Buffer.PageCapacity)
	}
	if cfg.Reorg.SearchRadius != 5 {
		t.Errorf("search_radius: got %d", cfg.Reorg.SearchRadius)
	}
}

func TestLoadFromFilePartialAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.yaml")
	content := `
flush:
  io_threshold: 20
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Flush.IOThreshold != 20 {
		t.Errorf("io_threshold: got %d", cfg.Flush.IOThreshold)
	}
	if cfg.Model.Fanout != 64 {
		t.Errorf("fanout should fall back to default: got %d", cfg.Model.Fanout)
	}
	if cfg.Buffer.PageCapacity != 128 {
		t.Errorf("page_capacity should fall back to default: got %d", cfg.Buffer.PageCapacity)
	}
}
