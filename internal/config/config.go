// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/gcpark/coderag/internal/chunker"
)

// Config represents the complete configuration.
type Config struct {
	Codebase  CodebaseConfig  `mapstructure:"codebase" yaml:"codebase"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search"`
	Limits    LimitsConfig    `mapstructure:"limits" yaml:"limits"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// CodebaseConfig fixes the inputs the chunker core depends on: the codebase
// root (for scanning and project-name derivation), the supported extension
// set and the ignored directory names.
type CodebaseConfig struct {
	Root       string   `mapstructure:"root" yaml:"root"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	IgnoreDirs []string `mapstructure:"ignore_dirs" yaml:"ignore_dirs"`
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider" yaml:"provider"`     // openai, ollama
	Model     string `mapstructure:"model" yaml:"model"`           // model name
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`     // API endpoint (ollama or custom base URL)
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // API key (openai)
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"` // texts per batch
}

// LLMConfig contains the answer-generation model configuration. The
// endpoint may point at any OpenAI-compatible API, including Ollama's /v1.
type LLMConfig struct {
	Model    string        `mapstructure:"model" yaml:"model"`
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StoreConfig contains vector store configuration.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"` // path to the sqlite database
}

// SearchConfig contains retrieval configuration.
type SearchConfig struct {
	TopK int `mapstructure:"top_k" yaml:"top_k"` // chunks retrieved per question
}

// LimitsConfig contains resource limits.
type LimitsConfig struct {
	Workers     int   `mapstructure:"workers" yaml:"workers"`             // parallel chunking workers; 0 = NumCPU
	MaxFileSize int64 `mapstructure:"max_file_size" yaml:"max_file_size"` // bytes; larger files are skipped
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Codebase: CodebaseConfig{
			Root:       "",
			Extensions: chunker.DefaultExtensions,
			IgnoreDirs: chunker.DefaultIgnoreDirs,
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			Endpoint:  "http://localhost:11434",
			BatchSize: 32,
		},
		LLM: LLMConfig{
			Model:    "qwen2.5:3b",
			Endpoint: "http://localhost:11434/v1",
			Timeout:  120 * time.Second,
		},
		Store: StoreConfig{
			Path: filepath.Join(".coderag", "index.db"),
		},
		Search: SearchConfig{
			TopK: 5,
		},
		Limits: LimitsConfig{
			Workers:     0, // 0 = runtime.NumCPU()
			MaxFileSize: 1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the given file, falling back to defaults
// when the file does not exist. Missing individual values fall back to
// their defaults as well.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if len(cfg.Codebase.Extensions) == 0 {
		cfg.Codebase.Extensions = def.Codebase.Extensions
	}
	if len(cfg.Codebase.IgnoreDirs) == 0 {
		cfg.Codebase.IgnoreDirs = def.Codebase.IgnoreDirs
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = def.Embedding.Provider
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = def.Embedding.Model
	}
	if cfg.Embedding.Endpoint == "" {
		cfg.Embedding.Endpoint = def.Embedding.Endpoint
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = def.Embedding.BatchSize
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = def.LLM.Model
	}
	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = def.LLM.Endpoint
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = def.LLM.Timeout
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = def.Search.TopK
	}
	if cfg.Limits.MaxFileSize == 0 {
		cfg.Limits.MaxFileSize = def.Limits.MaxFileSize
	}
}

// Save writes the configuration to the given file.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("codebase", cfg.Codebase)
	v.Set("embedding", cfg.Embedding)
	v.Set("llm", cfg.LLM)
	v.Set("store", cfg.Store)
	v.Set("search", cfg.Search)
	v.Set("limits", cfg.Limits)
	v.Set("logging", cfg.Logging)

	return v.WriteConfig()
}

// Validate validates the configuration.
func Validate(cfg *Config) []error {
	var errs []error

	validProviders := map[string]bool{"openai": true, "ollama": true}
	if !validProviders[cfg.Embedding.Provider] {
		errs = append(errs, fmt.Errorf("invalid embedding provider: %s", cfg.Embedding.Provider))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("invalid log level: %s", cfg.Logging.Level))
	}

	if cfg.Search.TopK < 1 || cfg.Search.TopK > 20 {
		errs = append(errs, fmt.Errorf("search top_k out of range [1,20]: %d", cfg.Search.TopK))
	}

	return errs
}
