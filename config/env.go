package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel           = "PULSE_LOG_LEVEL"
	EnvSourceKind         = "PULSE_SOURCE"
	EnvSourceFile         = "PULSE_SOURCE_FILE"
	EnvRedditToken        = "PULSE_REDDIT_TOKEN"
	EnvRedditUserAgent    = "PULSE_REDDIT_USER_AGENT"
	EnvEmbeddingHost      = "PULSE_EMBEDDING_HOST"
	EnvEmbeddingModel     = "PULSE_EMBEDDING_MODEL"
	EnvEmbeddingAPIKey    = "PULSE_EMBEDDING_API_KEY"
	EnvEmbeddingDims      = "PULSE_EMBEDDING_DIMENSIONS"
	EnvEmbeddingRate      = "PULSE_EMBEDDING_RATE"
	EnvStorageBackend     = "PULSE_STORAGE_BACKEND"
	EnvStoragePath        = "PULSE_STORAGE_PATH"
	EnvChromemPath        = "PULSE_CHROMEM_PATH"
	EnvPostgresDSN        = "PULSE_POSTGRES_DSN"
	EnvProduct            = "PULSE_PRODUCT"
	EnvSubreddit          = "PULSE_SUBREDDIT"
	EnvTerms              = "PULSE_TERMS"
	EnvSchedule           = "PULSE_SCHEDULE"
	EnvInsightCacheTTL    = "PULSE_INSIGHT_CACHE_TTL"
	EnvOpenAIAPIKey       = "OPENAI_API_KEY"
	EnvMinClusterSize     = "PULSE_MIN_CLUSTER_SIZE"
	EnvEmbeddingBatchSize = "PULSE_EMBEDDING_BATCH_SIZE"
)

// ApplyEnv overrides fields with the PULSE_* variables that are set.
// OPENAI_API_KEY is used when PULSE_EMBEDDING_API_KEY is absent.
func (c *Config) ApplyEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvLogLevel, &c.LogLevel},
		{EnvSourceKind, &c.Source.Kind},
		{EnvSourceFile, &c.Source.File},
		{EnvRedditToken, &c.Source.BearerToken},
		{EnvRedditUserAgent, &c.Source.UserAgent},
		{EnvEmbeddingHost, &c.Embedding.Host},
		{EnvEmbeddingModel, &c.Embedding.Model},
		{EnvOpenAIAPIKey, &c.Embedding.APIKey},
		{EnvEmbeddingAPIKey, &c.Embedding.APIKey},
		{EnvStorageBackend, &c.Storage.Backend},
		{EnvStoragePath, &c.Storage.Path},
		{EnvChromemPath, &c.Storage.ChromemPath},
		{EnvPostgresDSN, &c.Storage.DSN},
		{EnvProduct, &c.Pipeline.ProductID},
		{EnvSubreddit, &c.Pipeline.Subreddit},
		{EnvSchedule, &c.Pipeline.Schedule},
	}
	for _, s := range strs {
		if v, ok := envString(s.key); ok {
			*s.dst = v
		}
	}

	if v, ok := envString(EnvTerms); ok {
		c.Pipeline.Terms = splitList(v)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvEmbeddingDims, &c.Embedding.Dimensions},
		{EnvEmbeddingBatchSize, &c.Embedding.BatchSize},
		{EnvMinClusterSize, &c.Insight.MinClusterSize},
	}
	for _, i := range ints {
		v, ok := envString(i.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, i.key, v, err)
		}
		*i.dst = n
	}

	if v, ok := envString(EnvEmbeddingRate); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, EnvEmbeddingRate, v, err)
		}
		c.Embedding.RateLimit = rps
	}

	if v, ok := envString(EnvInsightCacheTTL); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %w", ErrInvalidEnv, EnvInsightCacheTTL, v, err)
		}
		c.Insight.CacheTTL = ttl
	}
	return nil
}

// envString reports ok=false when the variable is unset or blank.
func envString(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// splitList splits a comma separated value and drops empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
