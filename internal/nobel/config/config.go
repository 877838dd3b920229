// Package config loads the environment-variable driven configuration for the
// query engine, mirroring the teacher's env-first configuration style. It
// reads the keys spec.md §6 names, the ambient keys this expansion adds
// (LOG_LEVEL, AUDIT_ROTATE_BYTES), and the wiring settings the CLI needs
// (EMBEDDER_MODEL, EMBEDDER_DIM, VECTOR_STORE_COLLECTION,
// VECTOR_STORE_METRIC, LLM_BASE_URL, LLM_PROVIDER, LLM_TEMPERATURE,
// LLM_PRICE_TABLE, METADATA_PATH, TAXONOMY_PATH).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-sourced setting the engine needs.
type Config struct {
	EmbedderURL    string
	EmbedderAPIKey string
	EmbedderModel  string
	EmbedderDim    int

	VectorStoreURL     string
	VectorStoreAPIKey  string
	VectorCollection   string
	VectorMetric       string

	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMProvider    string // "anthropic" | "openai"
	LLMTemperature float64
	LLMPriceTable  string // path to a JSON price-table file; empty uses built-in defaults

	MetadataPath string
	TaxonomyPath string

	AuditLogDir      string
	AuditRotateBytes int64

	Environment  string // dev|prod
	LogLevel     string
	QueryDeadline time.Duration
}

// Load reads configuration from the process environment. If a .env file is
// present in the working directory it is loaded first (dev convenience);
// real environment variables always take precedence since godotenv.Load
// does not overwrite keys already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		EmbedderURL:      os.Getenv("EMBEDDER_URL"),
		EmbedderAPIKey:   os.Getenv("EMBEDDER_API_KEY"),
		EmbedderModel:    getenvDefault("EMBEDDER_MODEL", "nomic-embed-text"),
		EmbedderDim:      getenvInt("EMBEDDER_DIM", 1024),
		VectorStoreURL:   os.Getenv("VECTOR_STORE_URL"),
		VectorStoreAPIKey: os.Getenv("VECTOR_STORE_API_KEY"),
		VectorCollection: getenvDefault("VECTOR_STORE_COLLECTION", "nobel_chunks"),
		VectorMetric:     getenvDefault("VECTOR_STORE_METRIC", "cosine"),
		LLMAPIKey:        os.Getenv("LLM_API_KEY"),
		LLMBaseURL:       os.Getenv("LLM_BASE_URL"),
		LLMModel:         getenvDefault("LLM_MODEL", "claude-3-7-sonnet-latest"),
		LLMProvider:      getenvDefault("LLM_PROVIDER", "anthropic"),
		LLMTemperature:   getenvFloat("LLM_TEMPERATURE", 0.2),
		LLMPriceTable:    os.Getenv("LLM_PRICE_TABLE"),
		MetadataPath:     getenvDefault("METADATA_PATH", "data/laureates.json"),
		TaxonomyPath:     getenvDefault("TAXONOMY_PATH", "data/taxonomy.yaml"),
		AuditLogDir:      getenvDefault("AUDIT_LOG_DIR", "logs/audit"),
		AuditRotateBytes: int64(getenvInt("AUDIT_ROTATE_BYTES", 100*1024*1024)),
		Environment:      getenvDefault("ENVIRONMENT", "dev"),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		QueryDeadline:    time.Duration(getenvInt("QUERY_DEADLINE_MS", 30000)) * time.Millisecond,
	}

	if cfg.EmbedderDim <= 0 {
		return nil, fmt.Errorf("config: EMBEDDER_DIM must be positive, got %d", cfg.EmbedderDim)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
