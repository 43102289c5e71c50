package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/capnteebs/parlance/pkg/retry"
)

// Config holds all configuration for parlance.
// Values come from an optional YAML file; environment variables override them.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Policy   PolicyConfig   `yaml:"policy"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Semantic SemanticConfig `yaml:"semantic"`
	Slang    SlangConfig    `yaml:"slang"`
	Retry    RetryConfig    `yaml:"retry"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig points at the SQLite lexical store.
type DatabaseConfig struct {
	Path        string        `yaml:"path" env:"PARLANCE_DB" env-default:"parlance.db" validate:"required"`
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"PARLANCE_DB_BUSY_TIMEOUT" env-default:"5s"`
}

// PolicyConfig holds the bucket thresholds and the explicit-source floor.
// These decide the recall/precision tradeoff of the whole graph.
type PolicyConfig struct {
	DirectThreshold     float64 `yaml:"direct_threshold" env:"PARLANCE_POLICY_DIRECT" env-default:"0.85" validate:"gte=0,lte=1"`
	RelatedThreshold    float64 `yaml:"related_threshold" env:"PARLANCE_POLICY_RELATED" env-default:"0.70" validate:"gte=0,lte=1"`
	ContextualThreshold float64 `yaml:"contextual_threshold" env:"PARLANCE_POLICY_CONTEXTUAL" env-default:"0.50" validate:"gte=0,lte=1"`
	ExplicitFloor       float64 `yaml:"explicit_floor" env:"PARLANCE_POLICY_EXPLICIT_FLOOR" env-default:"0.85" validate:"gte=0,lte=1"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	Workers       int           `yaml:"workers" env:"PARLANCE_INGEST_WORKERS" env-default:"4" validate:"gte=1,lte=64"`
	BatchSize     int           `yaml:"batch_size" env:"PARLANCE_INGEST_BATCH_SIZE" env-default:"200" validate:"gte=1"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"PARLANCE_INGEST_FLUSH_INTERVAL" env-default:"250ms"`
	MaxExamples   int           `yaml:"max_examples" env:"PARLANCE_INGEST_MAX_EXAMPLES" env-default:"5" validate:"gte=0"`
}

// SemanticConfig tunes the embedding similarity pass.
type SemanticConfig struct {
	MinSimilarity float64 `yaml:"min_similarity" env:"PARLANCE_SEMANTIC_MIN_SIMILARITY" env-default:"0.50" validate:"gte=0,lte=1"`
	MaxPerSense   int     `yaml:"max_per_sense" env:"PARLANCE_SEMANTIC_MAX_PER_SENSE" env-default:"30" validate:"gte=1"`
	Concurrency   int     `yaml:"concurrency" env:"PARLANCE_SEMANTIC_CONCURRENCY" env-default:"4" validate:"gte=1"`
}

// SlangConfig configures the slang feed client.
type SlangConfig struct {
	BaseURL        string        `yaml:"base_url" env:"PARLANCE_SLANG_URL" env-default:"https://api.urbandictionary.com/v0" validate:"omitempty,url"`
	Timeout        time.Duration `yaml:"timeout" env:"PARLANCE_SLANG_TIMEOUT" env-default:"10s"`
	RatePerSecond  float64       `yaml:"rate_per_second" env:"PARLANCE_SLANG_RATE" env-default:"1" validate:"gt=0"`
	MaxDefinitions int           `yaml:"max_definitions" env:"PARLANCE_SLANG_MAX_DEFINITIONS" env-default:"3" validate:"gte=1"`
}

// RetryConfig bounds retries against network sources.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" env:"PARLANCE_RETRY_MAX" env-default:"3" validate:"gte=0,lte=10"`
	InitialDelay time.Duration `yaml:"initial_delay" env:"PARLANCE_RETRY_INITIAL_DELAY" env-default:"500ms"`
	MaxDelay     time.Duration `yaml:"max_delay" env:"PARLANCE_RETRY_MAX_DELAY" env-default:"8s"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" env:"PARLANCE_LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" env:"PARLANCE_LOG_DEV" env-default:"false"`
}

// Load reads path (when non-empty and present) with environment overrides,
// falling back to environment and defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			return cfg, cfg.Validate()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks field ranges and the ordering of the bucket thresholds.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	p := c.Policy
	if !(p.ContextualThreshold < p.RelatedThreshold && p.RelatedThreshold < p.DirectThreshold) {
		return fmt.Errorf("invalid config: thresholds must satisfy contextual < related < direct (got %.2f, %.2f, %.2f)",
			p.ContextualThreshold, p.RelatedThreshold, p.DirectThreshold)
	}
	return nil
}

// RetryPolicy converts the retry section into a retry.Config.
func (c *Config) RetryPolicy() *retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = c.Retry.MaxRetries
	if c.Retry.InitialDelay > 0 {
		rc.InitialDelay = c.Retry.InitialDelay
	}
	if c.Retry.MaxDelay > 0 {
		rc.MaxDelay = c.Retry.MaxDelay
	}
	return rc
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
