// Package config decodes the engine-wide configuration described in
// spec.md §6: target batch size, thread-pool worker count, and default
// per-operator memory limits. Decoding follows the teacher's practice of
// loading YAML/JSON environment config with sigs.k8s.io/yaml.
package config

import (
	"runtime"

	"sigs.k8s.io/yaml"
)

// DefaultBatchSize is the default number of rows carried by a Batch as it
// flows between operators.
const DefaultBatchSize = 4096

// Config holds the tunables spec.md §6 calls out explicitly.
type Config struct {
	// BatchSize is the target number of rows per batch. Zero means use
	// DefaultBatchSize.
	BatchSize int `json:"batchSize,omitempty"`
	// Workers is the thread-pool worker count. Zero means use
	// runtime.GOMAXPROCS(0).
	Workers int `json:"workers,omitempty"`
	// OperatorMemoryLimits maps an operator name to a byte limit; absence
	// means unlimited, matching spec.md's "implementation-defined" note.
	OperatorMemoryLimits map[string]int64 `json:"operatorMemoryLimits,omitempty"`
}

// Load decodes a Config from YAML or JSON bytes (both are accepted, since
// sigs.k8s.io/yaml parses JSON as a YAML subset) and fills in defaults for
// zero-valued fields.
func Load(data []byte) (*Config, error) {
	cfg := &Config{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a Config with every field set to its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
}

// MemoryLimit returns the configured memory limit for the named operator,
// and whether one was configured at all.
func (c *Config) MemoryLimit(operator string) (int64, bool) {
	v, ok := c.OperatorMemoryLimits[operator]
	return v, ok
}
