// Package config provides configuration loading for discoveryd.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates a configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full daemon configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Store       StoreConfig       `koanf:"store"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Reasoning   ReasoningConfig   `koanf:"reasoning"`
	Scoring     ScoringConfig     `koanf:"scoring"`
	Scheduler   SchedulerConfig   `koanf:"scheduler"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	APIKey          string        `koanf:"api_key"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StoreConfig holds SQLite settings.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// VectorStoreConfig holds the embedded vector index settings.
type VectorStoreConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// EmbeddingsConfig holds embedding API settings.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model"`
	APIKey  string `koanf:"api_key"`
}

// ReasoningConfig holds LLM completion settings.
type ReasoningConfig struct {
	BaseURL   string        `koanf:"base_url"`
	Model     string        `koanf:"model"`
	APIKey    string        `koanf:"api_key"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxTokens int           `koanf:"max_tokens"`
}

// ScoringConfig holds the tunable similarity thresholds.
type ScoringConfig struct {
	// DirectSimilarity is the floor for the direct contradiction rule.
	DirectSimilarity float64 `koanf:"direct_similarity"`

	// RecallSimilarity is the floor for broad vector recall.
	RecallSimilarity float64 `koanf:"recall_similarity"`
}

// SchedulerConfig holds the periodic decay run settings.
type SchedulerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9180
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = "~/.local/share/discoveryd/board.db"
	}
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "~/.local/share/discoveryd/vectorstore"
	}

	if cfg.Embeddings.BaseURL == "" {
		cfg.Embeddings.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.Reasoning.BaseURL == "" {
		cfg.Reasoning.BaseURL = "http://localhost:8081/v1"
	}
	if cfg.Reasoning.Model == "" {
		cfg.Reasoning.Model = "gpt-4o-mini"
	}
	if cfg.Reasoning.Timeout == 0 {
		cfg.Reasoning.Timeout = 60 * time.Second
	}
	if cfg.Reasoning.MaxTokens == 0 {
		cfg.Reasoning.MaxTokens = 2000
	}

	if cfg.Scoring.DirectSimilarity == 0 {
		cfg.Scoring.DirectSimilarity = 0.75
	}
	if cfg.Scoring.RecallSimilarity == 0 {
		cfg.Scoring.RecallSimilarity = 0.3
	}

	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 24 * time.Hour
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Scoring.DirectSimilarity < 0 || c.Scoring.DirectSimilarity > 1 {
		return fmt.Errorf("%w: direct similarity must be in [0, 1]", ErrInvalidConfig)
	}
	if c.Scoring.RecallSimilarity < 0 || c.Scoring.RecallSimilarity > 1 {
		return fmt.Errorf("%w: recall similarity must be in [0, 1]", ErrInvalidConfig)
	}
	if c.Scoring.RecallSimilarity > c.Scoring.DirectSimilarity {
		return fmt.Errorf("%w: recall similarity above direct similarity", ErrInvalidConfig)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("%w: scheduler interval below one minute", ErrInvalidConfig)
	}
	return nil
}
