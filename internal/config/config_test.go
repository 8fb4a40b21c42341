package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("default provider = %q, want ollama", cfg.Embedding.Provider)
	}
	if len(cfg.Codebase.Extensions) == 0 {
		t.Error("default extensions empty")
	}
	if cfg.Search.TopK < 1 {
		t.Error("default top_k must be at least 1")
	}
	if errs := Validate(cfg); len(errs) > 0 {
		t.Errorf("default config invalid: %v", errs)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("provider = %q, want default", cfg.Embedding.Provider)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coderag.yaml")
	content := "embedding:\n  provider: openai\n  model: text-embedding-3-small\nsearch:\n  top_k: 8\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Embedding.Provider != "openai" {
		t.Errorf("provider = %q, want openai", cfg.Embedding.Provider)
	}
	if cfg.Search.TopK != 8 {
		t.Errorf("top_k = %d, want 8", cfg.Search.TopK)
	}
	// Unset values fall back to defaults.
	if cfg.LLM.Endpoint == "" {
		t.Error("llm endpoint default missing")
	}
	if len(cfg.Codebase.IgnoreDirs) == 0 {
		t.Error("ignore dirs default missing")
	}
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "coderag.yaml")

	cfg := DefaultConfig()
	cfg.Embedding.Provider = "openai"
	cfg.Store.Path = "/tmp/custom.db"
	cfg.Search.TopK = 7

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if loaded.Embedding.Provider != "openai" {
		t.Errorf("provider = %q, want openai", loaded.Embedding.Provider)
	}
	if loaded.Store.Path != "/tmp/custom.db" {
		t.Errorf("store path = %q", loaded.Store.Path)
	}
	if loaded.Search.TopK != 7 {
		t.Errorf("top_k = %d, want 7", loaded.Search.TopK)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "bogus"
	cfg.Logging.Level = "loud"
	cfg.Search.TopK = 99

	errs := Validate(cfg)
	if len(errs) != 3 {
		t.Errorf("got %d validation errors, want 3: %v", len(errs), errs)
	}
}
