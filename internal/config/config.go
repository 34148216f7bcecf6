// Package config loads the ragdex YAML configuration. All retrieval
// heuristics, index names and model limits live here so no component
// carries its own copy of a constant.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragdex configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: env-dependent)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds backing-store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings. The text provider embeds
// plain text queries and documents; the clip provider is the joint text/image
// encoder family used for cross-modal search.
type EmbeddingConfig struct {
	Text ProviderConfig `yaml:"text"`
	CLIP ProviderConfig `yaml:"clip"`
	// FetchTimeoutSec bounds image URL downloads during input normalization.
	FetchTimeoutSec int `yaml:"fetch_timeout_sec"`
	// MaxImageBytes caps fetched or decoded image payloads.
	MaxImageBytes int64 `yaml:"max_image_bytes"`
}

// ProviderConfig holds one OpenAI-compatible embedding endpoint.
type ProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// GenerationConfig holds the generation model settings.
type GenerationConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// RetrievalConfig holds candidate-pool heuristics and ANN index naming.
type RetrievalConfig struct {
	// TextIndexes and ImageIndexes are tried in order until one yields
	// candidates. The last entry is usually a generic catch-all index.
	TextIndexes  []string `yaml:"text_indexes"`
	ImageIndexes []string `yaml:"image_indexes"`
	// MaxScanKeys caps the number of keys the degraded full-scan fallback
	// will load before filtering.
	MaxScanKeys int `yaml:"max_scan_keys"`
	// ResolveConcurrency bounds the reference-resolution fan-out.
	ResolveConcurrency int `yaml:"resolve_concurrency"`
	// HNSW build parameters for index bootstrap.
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	// Hybrid rank weights.
	VectorWeight  float64 `yaml:"vector_weight"`
	LexicalWeight float64 `yaml:"lexical_weight"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR} / ${VAR:-default}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from ENV, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120 // generation calls are slow
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "ragdex:"
	}
	if c.Embedding.FetchTimeoutSec <= 0 {
		c.Embedding.FetchTimeoutSec = 15
	}
	if c.Embedding.MaxImageBytes <= 0 {
		c.Embedding.MaxImageBytes = 10 << 20
	}
	if c.Embedding.Text.Model == "" {
		c.Embedding.Text.Model = "all-MiniLM-L6-v2"
	}
	if c.Embedding.Text.Dimensions <= 0 {
		c.Embedding.Text.Dimensions = 384
	}
	if c.Embedding.CLIP.Model == "" {
		c.Embedding.CLIP.Model = "clip-vit-base-patch32"
	}
	if c.Embedding.CLIP.Dimensions <= 0 {
		c.Embedding.CLIP.Dimensions = 512
	}
	if c.Generation.Model == "" {
		c.Generation.Model = "llama-3.1-70b-versatile"
	}
	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 2000
	}
	if c.Generation.Temperature <= 0 {
		c.Generation.Temperature = 0.7
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 60
	}
	if len(c.Retrieval.TextIndexes) == 0 {
		c.Retrieval.TextIndexes = []string{"ragdex-text-idx", "ragdex-idx"}
	}
	if len(c.Retrieval.ImageIndexes) == 0 {
		c.Retrieval.ImageIndexes = []string{"ragdex-image-idx", "ragdex-idx"}
	}
	if c.Retrieval.MaxScanKeys <= 0 {
		c.Retrieval.MaxScanKeys = 10000
	}
	if c.Retrieval.ResolveConcurrency <= 0 {
		c.Retrieval.ResolveConcurrency = 8
	}
	if c.Retrieval.HNSWM <= 0 {
		c.Retrieval.HNSWM = 32
	}
	if c.Retrieval.HNSWEFConstruct <= 0 {
		c.Retrieval.HNSWEFConstruct = 400
	}
	if c.Retrieval.VectorWeight <= 0 {
		c.Retrieval.VectorWeight = 0.7
	}
	if c.Retrieval.LexicalWeight <= 0 {
		c.Retrieval.LexicalWeight = 0.3
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Retrieval.VectorWeight+c.Retrieval.LexicalWeight <= 0 {
		return fmt.Errorf("retrieval weights must sum to a positive value")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
