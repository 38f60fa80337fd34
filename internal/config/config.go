// Package config loads configuration from the environment with an
// optional YAML overlay for tunables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Neo4j graph mirror
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Models
	LLMProvider     Provider
	LLMModel        string
	EmbedProvider   Provider
	EmbedModel      string
	EmbedDimension  int
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Core tunables
	SimilarityThreshold   float64       // label embedding match floor
	FilterConfidenceFloor float64       // cluster relevance gate (0-1)
	AutoCreateThreshold   float64       // space auto-create gate (0-100)
	BatchPollInterval     time.Duration // batch status poll cadence
	BatchPollTimeout      time.Duration // batch wall-clock limit
	BatchMaxRetries       int           // per-request retry budget
	BatchConcurrency      int           // local batch worker count
}

// Load reads configuration from environment variables, then overlays the
// YAML file named by RECOLLECT_CONFIG if it is set.
func Load() (Config, error) {
	cfg := Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "recollect"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "memory"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),

		LLMProvider:     Provider(getEnv("RECOLLECT_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:        getEnv("RECOLLECT_LLM_MODEL", "llama3.1"),
		EmbedProvider:   Provider(getEnv("RECOLLECT_EMBED_PROVIDER", string(ProviderOllama))),
		EmbedModel:      getEnv("RECOLLECT_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension:  getEnvInt("RECOLLECT_EMBED_DIMENSION", 384),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),

		LogFile:  getEnv("RECOLLECT_LOG_FILE", "/tmp/recollect.log"),
		LogLevel: parseLogLevel(getEnv("RECOLLECT_LOG_LEVEL", "INFO")),

		SimilarityThreshold:   0.85,
		FilterConfidenceFloor: 0.6,
		AutoCreateThreshold:   80,
		BatchPollInterval:     5 * time.Second,
		BatchPollTimeout:      20 * time.Minute,
		BatchMaxRetries:       2,
		BatchConcurrency:      4,
	}

	if path := os.Getenv("RECOLLECT_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, fmt.Errorf("config overlay %s: %w", path, err)
		}
	}

	return cfg, nil
}

// fileOverlay mirrors the tunable subset of Config. Pointer fields so
// absent keys leave the defaults alone.
type fileOverlay struct {
	LLMProvider           *string  `yaml:"llm_provider"`
	LLMModel              *string  `yaml:"llm_model"`
	EmbedProvider         *string  `yaml:"embed_provider"`
	EmbedModel            *string  `yaml:"embed_model"`
	EmbedDimension        *int     `yaml:"embed_dimension"`
	SimilarityThreshold   *float64 `yaml:"similarity_threshold"`
	FilterConfidenceFloor *float64 `yaml:"filter_confidence_floor"`
	AutoCreateThreshold   *float64 `yaml:"auto_create_threshold"`
	BatchPollInterval     *string  `yaml:"batch_poll_interval"`
	BatchPollTimeout      *string  `yaml:"batch_poll_timeout"`
	BatchMaxRetries       *int     `yaml:"batch_max_retries"`
	BatchConcurrency      *int     `yaml:"batch_concurrency"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var o fileOverlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}

	if o.LLMProvider != nil {
		c.LLMProvider = Provider(*o.LLMProvider)
	}
	if o.LLMModel != nil {
		c.LLMModel = *o.LLMModel
	}
	if o.EmbedProvider != nil {
		c.EmbedProvider = Provider(*o.EmbedProvider)
	}
	if o.EmbedModel != nil {
		c.EmbedModel = *o.EmbedModel
	}
	if o.EmbedDimension != nil {
		c.EmbedDimension = *o.EmbedDimension
	}
	if o.SimilarityThreshold != nil {
		c.SimilarityThreshold = *o.SimilarityThreshold
	}
	if o.FilterConfidenceFloor != nil {
		c.FilterConfidenceFloor = *o.FilterConfidenceFloor
	}
	if o.AutoCreateThreshold != nil {
		c.AutoCreateThreshold = *o.AutoCreateThreshold
	}
	if o.BatchPollInterval != nil {
		d, err := time.ParseDuration(*o.BatchPollInterval)
		if err != nil {
			return fmt.Errorf("batch_poll_interval: %w", err)
		}
		c.BatchPollInterval = d
	}
	if o.BatchPollTimeout != nil {
		d, err := time.ParseDuration(*o.BatchPollTimeout)
		if err != nil {
			return fmt.Errorf("batch_poll_timeout: %w", err)
		}
		c.BatchPollTimeout = d
	}
	if o.BatchMaxRetries != nil {
		c.BatchMaxRetries = *o.BatchMaxRetries
	}
	if o.BatchConcurrency != nil {
		c.BatchConcurrency = *o.BatchConcurrency
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
