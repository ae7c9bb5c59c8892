package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".tessera.yml")

	cfg := DefaultConfig()
	cfg.Server.Port = 9999
	cfg.Watch.Dirs = []string{"/docs"}
	cfg.Embedding.Provider = EmbeddingOpenAI
	cfg.Embedding.Model = "text-embedding-3-small"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", loaded.Server.Port)
	}
	if len(loaded.Watch.Dirs) != 1 || loaded.Watch.Dirs[0] != "/docs" {
		t.Errorf("watch dirs = %v, want [/docs]", loaded.Watch.Dirs)
	}
	if loaded.Embedding.Provider != EmbeddingOpenAI {
		t.Errorf("provider = %q, want openai", loaded.Embedding.Provider)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != DefaultConfig().Server.Port {
		t.Errorf("port = %d, want default %d", cfg.Server.Port, DefaultConfig().Server.Port)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TESSERA_SERVER__PORT", "7070")
	t.Setenv("TESSERA_EMBEDDING__BREAKER_THRESHOLD", "9")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Embedding.BreakerThreshold != 9 {
		t.Errorf("breaker threshold = %d, want 9", cfg.Embedding.BreakerThreshold)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no watch dirs", func(c *Config) { c.Watch.Dirs = nil }},
		{"zero capacity", func(c *Config) { c.Queue.Capacity = 0 }},
		{"bad strategy", func(c *Config) { c.Pipeline.Strategy = "zigzag" }},
		{"overlap >= window", func(c *Config) { c.Pipeline.FixedOverlap = c.Pipeline.FixedWindowSize }},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "abacus" }},
		{"bad fallback", func(c *Config) { c.Embedding.Fallbacks = []FallbackMode{"punt"} }},
		{"mmr lambda out of range", func(c *Config) { c.Search.MMRLambda = 1.5 }},
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestSaveFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("saved file missing: %v", err)
	}
}
