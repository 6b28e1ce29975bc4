package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"nutriguide/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Retrieve.TopK != 1 {
		t.Errorf("expected TopK=1, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.Threshold != 0.75 {
		t.Errorf("expected Threshold=0.75, got %f", cfg.Retrieve.Threshold)
	}
	if cfg.Index.Dimension != 384 {
		t.Errorf("expected Dimension=384, got %d", cfg.Index.Dimension)
	}
	if cfg.Embedding.Provider != ProviderHash {
		t.Errorf("expected hash embedder by default, got %s", cfg.Embedding.Provider)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nutriguide.yaml")

	content := `
retrieve:
  threshold: 0.6
  cache_ttl: 30s
generation:
  model: gpt-4o-mini
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.Threshold != 0.6 {
		t.Errorf("expected Threshold=0.6, got %f", cfg.Retrieve.Threshold)
	}
	if cfg.Retrieve.CacheTTL != 30*time.Second {
		t.Errorf("expected CacheTTL=30s, got %s", cfg.Retrieve.CacheTTL)
	}
	if cfg.Generation.Model != "gpt-4o-mini" {
		t.Errorf("expected model override, got %s", cfg.Generation.Model)
	}
	// untouched keys keep defaults
	if cfg.Retrieve.TopK != 1 {
		t.Errorf("expected TopK=1, got %d", cfg.Retrieve.TopK)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nutriguide.yaml")
	if err := os.WriteFile(configPath, []byte("retrieve: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NUTRIGUIDE_THRESHOLD", "0.9")
	t.Setenv("NUTRIGUIDE_TOP_K", "3")
	t.Setenv("NUTRIGUIDE_ADDR", "127.0.0.1:9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieve.Threshold != 0.9 {
		t.Errorf("expected Threshold=0.9, got %f", cfg.Retrieve.Threshold)
	}
	if cfg.Retrieve.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("expected addr override, got %s", cfg.Server.Addr)
	}

	t.Setenv("NUTRIGUIDE_THRESHOLD", "high")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig for bad threshold, got %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".nutriguide"), 0755); err != nil {
		t.Fatal(err)
	}
	content := `
dataset:
  path: faq/custom.json
embedding:
  cache_path: /var/cache/nutriguide.db
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".nutriguide", "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(tmpDir, "faq", "custom.json"); cfg.Dataset.Path != want {
		t.Errorf("expected dataset path %s, got %s", want, cfg.Dataset.Path)
	}
	if cfg.Embedding.CachePath != "/var/cache/nutriguide.db" {
		t.Errorf("absolute paths must be kept, got %s", cfg.Embedding.CachePath)
	}
}

func TestLoadFromDir_PrefersRootFile(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "nutriguide.yaml"), []byte("retrieve:\n  top_k: 5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, ".nutriguide"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ".nutriguide", "config.yaml"), []byte("retrieve:\n  top_k: 7\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5 from nutriguide.yaml, got %d", cfg.Retrieve.TopK)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.Retrieve.Threshold = 1.1 }},
		{"negative threshold", func(c *Config) { c.Retrieve.Threshold = -0.1 }},
		{"zero top k", func(c *Config) { c.Retrieve.TopK = 0 }},
		{"zero dimension", func(c *Config) { c.Index.Dimension = 0 }},
		{"euclid metric", func(c *Config) { c.Index.Metric = "euclid" }},
		{"unknown embedder", func(c *Config) { c.Embedding.Provider = "voyage" }},
		{"unknown generator", func(c *Config) { c.Generation.Provider = "local" }},
		{"no dataset", func(c *Config) { c.Dataset.Path = "" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, domain.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generation.APIKeyEnv = "NUTRIGUIDE_TEST_GEN_KEY"
	cfg.Embedding.APIKeyEnv = "NUTRIGUIDE_TEST_EMB_KEY"
	t.Setenv("NUTRIGUIDE_TEST_GEN_KEY", "")
	t.Setenv("NUTRIGUIDE_TEST_EMB_KEY", "")

	if err := cfg.ValidateCredentials(false); err != nil {
		t.Errorf("hash embedder without generation needs no key: %v", err)
	}
	if err := cfg.ValidateCredentials(true); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig without generation key, got %v", err)
	}

	cfg.Embedding.Provider = ProviderOpenAI
	if err := cfg.ValidateCredentials(false); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig without embedding key, got %v", err)
	}

	t.Setenv("NUTRIGUIDE_TEST_GEN_KEY", "sk-gen")
	t.Setenv("NUTRIGUIDE_TEST_EMB_KEY", "sk-emb")
	if err := cfg.ValidateCredentials(true); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSave_RoundTripsDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nutriguide.yaml")
	cfg := DefaultConfig()
	cfg.Server.ShutdownTimeout = 3 * time.Second
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", loaded.Server.ShutdownTimeout)
	}
}
