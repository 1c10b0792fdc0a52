package config

import (
	_ "embed"
	"os"
	"strconv"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Verify    VerifyConfig    `yaml:"verify"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
}

type VerifyConfig struct {
	// Threshold is the minimum cosine similarity required to accept a match
	Threshold float64 `yaml:"threshold"`
	// Concurrency bounds the number of embedding extractions running at once
	Concurrency int `yaml:"concurrency"`
}

type EmbeddingConfig struct {
	URL string `yaml:"url"` // face-analysis service base URL
	Dim int    `yaml:"dim"` // embedding dimension
}

type StoreConfig struct {
	Backend           string `yaml:"backend"`            // "postgres" or "memory"
	DatabaseURL       string `yaml:"-"`                  // PostgreSQL connection URL
	Collection        string `yaml:"collection"`         // current embeddings collection name
	HistoryCollection string `yaml:"history_collection"` // per-user history collection name
	MaxOpenConns      int    `yaml:"max_open_conns"`
	MaxIdleConns      int    `yaml:"max_idle_conns"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envString reads an environment variable, falling back to a default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	cfg := Defaults()

	cfg.Verify.Threshold = envFloat("FACE_COMPARE_THRESHOLD", cfg.Verify.Threshold)
	cfg.Verify.Concurrency = envInt("VERIFY_CONCURRENCY", cfg.Verify.Concurrency)

	cfg.Embedding.URL = envString("EMBEDDING_URL", cfg.Embedding.URL)
	cfg.Embedding.Dim = envInt("EMBEDDING_DIM", cfg.Embedding.Dim)

	cfg.Store.Backend = envString("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.Store.Collection = envString("STORE_COLLECTION", cfg.Store.Collection)
	cfg.Store.HistoryCollection = envString("STORE_HISTORY_COLLECTION", cfg.Store.HistoryCollection)
	cfg.Store.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Store.MaxOpenConns)
	cfg.Store.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Store.MaxIdleConns)

	return cfg
}
