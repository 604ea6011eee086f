// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/pulse/ai"
	"github.com/poiesic/pulse/core"
	"github.com/poiesic/pulse/embed"
	"github.com/poiesic/pulse/index"
	"github.com/poiesic/pulse/insight"
	"github.com/poiesic/pulse/normalize"
	"github.com/poiesic/pulse/source"
	"github.com/poiesic/pulse/storage/postgres"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	// BackendBadger keeps posts, insights and vectors in one BadgerDB.
	BackendBadger = "badger"
	// BackendChromem keeps posts and insights in BadgerDB and vectors in chromem-go.
	BackendChromem = "chromem"
	// BackendPostgres keeps everything in PostgreSQL with pgvector.
	BackendPostgres = "postgres"
)

// Source kinds.
const (
	SourceReddit = "reddit"
	SourceFile   = "file"
)

// Config is the complete pulse configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Source    SourceConfig    `yaml:"source"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Storage   StorageConfig   `yaml:"storage"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Insight   InsightConfig   `yaml:"insight"`
}

// SourceConfig selects where raw posts come from.
type SourceConfig struct {
	Kind         string        `yaml:"kind"` // reddit or file
	File         string        `yaml:"file"` // JSON or JSONL export, for kind file
	BaseURL      string        `yaml:"base_url"`
	UserAgent    string        `yaml:"user_agent"`
	BearerToken  string        `yaml:"bearer_token"`
	Timeout      time.Duration `yaml:"timeout"`
	RequestDelay time.Duration `yaml:"request_delay"`
}

// EmbeddingConfig configures the embedding provider and generator.
type EmbeddingConfig struct {
	Host          string        `yaml:"host"`
	APIKey        string        `yaml:"api_key"`
	Model         string        `yaml:"model"`
	Dimensions    int           `yaml:"dimensions"`
	Timeout       time.Duration `yaml:"timeout"`
	TokenEncoding string        `yaml:"token_encoding"`

	BatchSize        int           `yaml:"batch_size"`
	BatchDelay       time.Duration `yaml:"batch_delay"`
	MaxChars         int           `yaml:"max_chars"`
	CallTimeout      time.Duration `yaml:"call_timeout"`
	MaxAttempts      int           `yaml:"max_attempts"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	Concurrency      int           `yaml:"concurrency"`
	RateLimit        float64       `yaml:"rate_limit"` // requests per second, 0 disables
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout"`
	UnitPrice        float64       `yaml:"unit_price"` // USD per 1000 tokens
}

// IndexConfig configures the vector index writer.
type IndexConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"` // BadgerDB directory
	InMemory bool   `yaml:"in_memory"`

	ChromemPath     string `yaml:"chromem_path"` // empty keeps vectors in memory
	ChromemCompress bool   `yaml:"chromem_compress"`
	Collection      string `yaml:"collection"`

	DSN             string        `yaml:"dsn"`
	Driver          string        `yaml:"driver"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// PipelineConfig describes the default ingestion run.
type PipelineConfig struct {
	ProductID       string        `yaml:"product_id"`
	Platform        string        `yaml:"platform"`
	Subreddit       string        `yaml:"subreddit"`
	Terms           []string      `yaml:"terms"`
	Limit           int           `yaml:"limit"`
	TimeWindow      string        `yaml:"time_window"`
	Sort            string        `yaml:"sort"`
	Schedule        string        `yaml:"schedule"`
	CleanBatchSize  int           `yaml:"clean_batch_size"`
	CleanBatchDelay time.Duration `yaml:"clean_batch_delay"`
}

// InsightConfig configures theme clustering and the insight cache.
type InsightConfig struct {
	MinClusterSize int           `yaml:"min_cluster_size"`
	CacheSize      int           `yaml:"cache_size"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	Exclude        []string      `yaml:"exclude"`
}

// Default returns the configuration used when no file or variable overrides it.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		LogLevel: "info",
		Source: SourceConfig{
			Kind:         SourceReddit,
			BaseURL:      source.DefaultBaseURL,
			UserAgent:    source.DefaultUserAgent,
			Timeout:      source.DefaultTimeout,
			RequestDelay: source.DefaultRequestDelay,
		},
		Embedding: EmbeddingConfig{
			Host:             aiDefaults.EmbeddingHost,
			Model:            aiDefaults.EmbeddingModel,
			Timeout:          aiDefaults.Timeout,
			TokenEncoding:    aiDefaults.TokenEncoding,
			BatchSize:        embed.DefaultBatchSize,
			BatchDelay:       embed.DefaultBatchDelay,
			MaxChars:         embed.DefaultMaxChars,
			CallTimeout:      embed.DefaultCallTimeout,
			MaxAttempts:      3,
			RetryDelay:       time.Second,
			BreakerThreshold: embed.DefaultBreakerThreshold,
			BreakerTimeout:   embed.DefaultBreakerTimeout,
			UnitPrice:        embed.DefaultUnitPrice,
		},
		Index: IndexConfig{
			BatchSize:  index.DefaultBatchSize,
			BatchDelay: index.DefaultBatchDelay,
		},
		Storage: StorageConfig{
			Backend: BackendBadger,
			Path:    "pulse.db",
			Driver:  postgres.DriverPG,
		},
		Pipeline: PipelineConfig{
			Platform:        core.PlatformReddit,
			Limit:           source.DefaultLimit,
			TimeWindow:      source.WindowWeek,
			Sort:            source.SortNew,
			CleanBatchSize:  normalize.DefaultBatchSize,
			CleanBatchDelay: normalize.DefaultBatchDelay,
		},
		Insight: InsightConfig{
			MinClusterSize: 3,
			CacheSize:      insight.DefaultCacheSize,
			CacheTTL:       insight.DefaultCacheTTL,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when path
// is empty), a .env file in the working directory if one exists, and PULSE_*
// environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AI converts the embedding section into a provider config.
func (c *Config) AI() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithDimensions(c.Embedding.Dimensions),
		ai.WithTimeout(c.Embedding.Timeout),
		ai.WithTokenEncoding(c.Embedding.TokenEncoding),
	)
}

// Query converts the pipeline section into a source query.
func (c *Config) Query() source.Query {
	return source.Query{
		Subreddit:  c.Pipeline.Subreddit,
		Terms:      append([]string(nil), c.Pipeline.Terms...),
		Limit:      c.Pipeline.Limit,
		TimeWindow: c.Pipeline.TimeWindow,
		Sort:       c.Pipeline.Sort,
	}
}

// Validate checks ranges and required fields. Pipeline query fields are
// checked per run, since commands may override them.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	switch c.Storage.Backend {
	case BackendBadger, BackendChromem:
		check(c.Storage.InMemory || c.Storage.Path != "", "storage.path is required for %s", c.Storage.Backend)
	case BackendPostgres:
		check(c.Storage.DSN != "", "storage.dsn is required for postgres")
		check(c.Storage.Driver == "" || c.Storage.Driver == postgres.DriverPG || c.Storage.Driver == postgres.DriverPQ,
			"storage.driver %q", c.Storage.Driver)
	default:
		errs = append(errs, fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrUnknownBackend, c.Storage.Backend))
	}

	switch c.Source.Kind {
	case SourceReddit:
		check(c.Source.Timeout > 0, "source.timeout must be positive")
		check(c.Source.RequestDelay >= 0, "source.request_delay cannot be negative")
	case SourceFile:
		check(c.Source.File != "", "source.file is required for kind file")
	default:
		check(false, "source.kind %q", c.Source.Kind)
	}

	if err := c.AI().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	e := c.Embedding
	check(e.BatchSize > 0, "embedding.batch_size must be positive")
	check(e.BatchDelay >= 0, "embedding.batch_delay cannot be negative")
	check(e.MaxChars > 0, "embedding.max_chars must be positive")
	check(e.CallTimeout > 0, "embedding.call_timeout must be positive")
	check(e.MaxAttempts > 0, "embedding.max_attempts must be positive")
	check(e.RateLimit >= 0, "embedding.rate_limit cannot be negative")
	check(e.BreakerThreshold >= 0, "embedding.breaker_threshold cannot be negative")
	check(e.UnitPrice >= 0, "embedding.unit_price cannot be negative")

	check(c.Index.BatchSize > 0, "index.batch_size must be positive")
	check(c.Index.BatchDelay >= 0, "index.batch_delay cannot be negative")
	check(c.Pipeline.CleanBatchSize > 0, "pipeline.clean_batch_size must be positive")
	check(c.Insight.MinClusterSize > 0, "insight.min_cluster_size must be positive")
	check(c.Insight.CacheSize >= 0, "insight.cache_size cannot be negative")

	return errors.Join(errs...)
}
