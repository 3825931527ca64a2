// Package config loads the engine's tunables from YAML, with defaults
// applied for anything a config file omits.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Model  ModelConfig  `yaml:"model"`
	Flush  FlushConfig  `yaml:"flush"`
	Buffer BufferConfig `yaml:"buffer"`
	Reorg  ReorgConfig  `yaml:"reorg"`
	Bloom  BloomConfig  `yaml:"bloom"`
}

type ModelConfig struct {
	Fanout         int `yaml:"fanout"`
	RecordsPerPage int `yaml:"records_per_page"`
	NumPages       int `yaml:"num_pages"`
}

type FlushConfig struct {
	IOThreshold                 int   `yaml:"io_threshold"`
	MaxDeferrals                int   `yaml:"max_deferrals"`
	MemtableFlushThresholdBytes int64 `yaml:"memtable_flush_threshold_bytes"`
}

type BufferConfig struct {
	PageCapacity int `yaml:"page_capacity"`
}

type ReorgConfig struct {
	SearchRadius int `yaml:"search_radius"`
}

// BloomConfig controls the point-lookup bloom filter guarding Engine.Get.
// FalsePositiveRate is the target false-positive rate; the filter's bit
// and hash-function counts are sized off Model.NumPages*Model.RecordsPerPage
// (the configured key-range capacity) rather than a fixed guess.
type BloomConfig struct {
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
}

func defaults() *Config {
	return &Config{
		Model: ModelConfig{
			Fanout:         64,
			RecordsPerPage: 128,
			NumPages:       1024,
		},
		Flush: FlushConfig{
			IOThreshold:                 8,
			MaxDeferrals:                4,
			MemtableFlushThresholdBytes: 4 << 20,
		},
		Buffer: BufferConfig{
			PageCapacity: 128,
		},
		Reorg: ReorgConfig{
			SearchRadius: 3,
		},
		Bloom: BloomConfig{
			FalsePositiveRate: 0.01,
		},
	}
}

// Load reads configPath and overlays it on the defaults. An empty path
// falls back to searching a couple of conventional locations; if none
// exist, the defaults are returned as-is.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	if configPath == "" {
		for _, p := range []string{"configs/learnedkv.yaml", "learnedkv.yaml"} {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, err
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyDefaults(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	d := defaults()
	if cfg.Model.Fanout <= 0 {
		cfg.Model.Fanout = d.Model.Fanout
	}
	if cfg.Model.RecordsPerPage <= 0 {
		cfg.Model.RecordsPerPage = d.Model.RecordsPerPage
	}
	if cfg.Model.NumPages <= 0 {
		cfg.Model.NumPages = d.Model.NumPages
	}
	if cfg.Flush.IOThreshold <= 0 {
		cfg.Flush.IOThreshold = d.Flush.IOThreshold
	}
	if cfg.Flush.MaxDeferrals <= 0 {
		cfg.Flush.MaxDeferrals = d.Flush.MaxDeferrals
	}
	if cfg.Flush.MemtableFlushThresholdBytes <= 0 {
		cfg.Flush.MemtableFlushThresholdBytes = d.Flush.MemtableFlushThresholdBytes
	}
	if cfg.Buffer.PageCapacity <= 0 {
		cfg.Buffer.PageCapacity = d.Buffer.PageCapacity
	}
	if cfg.Reorg.SearchRadius <= 0 {
		cfg.Reorg.SearchRadius = d.Reorg.SearchRadius
	}
	if cfg.Bloom.FalsePositiveRate <= 0 {
		cfg.Bloom.FalsePositiveRate = d.Bloom.FalsePositiveRate
	}
}
