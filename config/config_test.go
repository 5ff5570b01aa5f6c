package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Fatalf("expected default batch size, got %d", cfg.BatchSize)
	}
	if cfg.Workers <= 0 {
		t.Fatalf("expected positive worker count, got %d", cfg.Workers)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load([]byte(`batchSize: 1024
workers: 4
operatorMemoryLimits:
  hashAggregate: 1048576
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BatchSize != 1024 || cfg.Workers != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	limit, ok := cfg.MemoryLimit("hashAggregate")
	if !ok || limit != 1048576 {
		t.Fatalf("expected memory limit 1MiB, got %d ok=%v", limit, ok)
	}
	if _, ok := cfg.MemoryLimit("missing"); ok {
		t.Fatalf("expected no limit for unconfigured operator")
	}
}
