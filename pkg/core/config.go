package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/recallhq/recall-go/pkg/budget"
	"github.com/recallhq/recall-go/pkg/fingerprint"
	"github.com/recallhq/recall-go/pkg/retrieval"
	"github.com/recallhq/recall-go/pkg/salience"
)

// Config contains the complete configuration for a retrieval client.
//
// Example:
//
//	config := &core.Config{
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-ada-002",
//	        Dimensions: 1536,
//	    },
//	    Cache: core.CacheConfig{
//	        Provider:   "memory",
//	        TTLMinutes: 30,
//	    },
//	}
type Config struct {
	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder" yaml:"embedder"`

	// Budget contains budget allocator tuning.
	Budget BudgetConfig `json:"budget" yaml:"budget"`

	// Salience contains salience scorer tuning.
	Salience SalienceConfig `json:"salience" yaml:"salience"`

	// Cache contains result cache configuration.
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Retrieval contains retrieval stage tuning.
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`

	// DiversityThreshold is the Jaccard similarity at which cross-kind
	// items count as near duplicates. Default: 0.85.
	DiversityThreshold float64 `json:"diversity_threshold,omitempty" yaml:"diversity_threshold,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
type EmbedderConfig struct {
	// Provider is the embedding provider name. Supported: "openai".
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Model is the embedding model name.
	Model string `json:"model" yaml:"model"`

	// BaseURL is the base URL for the API (optional).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Dimensions is the embedding dimension (e.g., 1536).
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
}

// BudgetConfig contains budget allocator tuning.
type BudgetConfig struct {
	// MaxItemsPerKind caps every per-kind limit. Default: 15.
	MaxItemsPerKind int `json:"max_items_per_kind,omitempty" yaml:"max_items_per_kind,omitempty"`

	// BaseThreshold is the starting similarity threshold. Default: 0.65.
	BaseThreshold float64 `json:"base_threshold,omitempty" yaml:"base_threshold,omitempty"`

	// OverallTimeoutMs is the default overall timeout in milliseconds.
	// Default: 15000.
	OverallTimeoutMs int `json:"overall_timeout_ms,omitempty" yaml:"overall_timeout_ms,omitempty"`
}

// SalienceConfig contains salience scorer tuning.
type SalienceConfig struct {
	// HalfLifeDays controls recency decay. Default: 30.
	HalfLifeDays float64 `json:"half_life_days,omitempty" yaml:"half_life_days,omitempty"`

	// RecencyWeight, SimilarityWeight, and DomainWeight are the composite
	// weights. Defaults: 0.3, 0.5, 0.2. Normalized if they do not sum to 1.
	RecencyWeight    float64 `json:"recency_weight,omitempty" yaml:"recency_weight,omitempty"`
	SimilarityWeight float64 `json:"similarity_weight,omitempty" yaml:"similarity_weight,omitempty"`
	DomainWeight     float64 `json:"domain_weight,omitempty" yaml:"domain_weight,omitempty"`

	// Vocabulary is the project-relevance term list for the domain score.
	// It is deployment configuration, not core logic.
	Vocabulary []string `json:"vocabulary,omitempty" yaml:"vocabulary,omitempty"`
}

// CacheConfig contains result cache configuration.
type CacheConfig struct {
	// Provider is the cache backend. Supported: "memory", "sqlite",
	// "none". Default: "memory".
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// TTLMinutes is the entry lifetime in minutes. Default: 30.
	TTLMinutes int `json:"ttl_minutes,omitempty" yaml:"ttl_minutes,omitempty"`

	// DBPath is the database path for the sqlite provider.
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`

	// MaxEntries bounds the memory provider. Default: 1024.
	MaxEntries int `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
}

// RetrievalConfig contains retrieval stage tuning.
type RetrievalConfig struct {
	// OversampleFactor sizes the candidate superset. Default: 3.
	OversampleFactor int `json:"oversample_factor,omitempty" yaml:"oversample_factor,omitempty"`

	// ExpansionThreshold is the related-chunk similarity floor. Default: 0.5.
	ExpansionThreshold float64 `json:"expansion_threshold,omitempty" yaml:"expansion_threshold,omitempty"`

	// ExpansionLimit is the maximum related chunks per match. Default: 5.
	ExpansionLimit int `json:"expansion_limit,omitempty" yaml:"expansion_limit,omitempty"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function searches for a .env file (current directory, then up to 5
// levels up), loads it when found, and parses these variables:
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL,
//     EMBEDDING_BASE_URL, EMBEDDING_MODEL_DIMS
//   - CACHE_PROVIDER, CACHE_TTL_MINUTES, CACHE_DB_PATH
//   - RETRIEVAL_TIMEOUT_MS, RETRIEVAL_MAX_ITEMS_PER_KIND
//   - SALIENCE_HALF_LIFE_DAYS
//
// Returns a Config instance with defaults applied for unset variables.
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_MODEL_DIMS", "1536"))
	ttl, _ := strconv.Atoi(getEnvOrDefault("CACHE_TTL_MINUTES", "30"))
	timeoutMs, _ := strconv.Atoi(getEnvOrDefault("RETRIEVAL_TIMEOUT_MS", "15000"))
	maxItems, _ := strconv.Atoi(getEnvOrDefault("RETRIEVAL_MAX_ITEMS_PER_KIND", "15"))
	halfLife, _ := strconv.ParseFloat(getEnvOrDefault("SALIENCE_HALF_LIFE_DAYS", "30"), 64)

	return &Config{
		Embedder: EmbedderConfig{
			Provider:   getEnvOrDefault("EMBEDDING_PROVIDER", "openai"),
			APIKey:     os.Getenv("EMBEDDING_API_KEY"),
			Model:      getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-ada-002"),
			BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
			Dimensions: dims,
		},
		Budget: BudgetConfig{
			MaxItemsPerKind:  maxItems,
			OverallTimeoutMs: timeoutMs,
		},
		Salience: SalienceConfig{
			HalfLifeDays: halfLife,
		},
		Cache: CacheConfig{
			Provider:   getEnvOrDefault("CACHE_PROVIDER", "memory"),
			TTLMinutes: ttl,
			DBPath:     os.Getenv("CACHE_DB_PATH"),
		},
	}, nil
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewRetrievalError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewRetrievalError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// LoadConfigFromYAML loads configuration from a YAML file.
func LoadConfigFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewRetrievalError("LoadConfigFromYAML", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, NewRetrievalError("LoadConfigFromYAML", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// Weight and threshold fields must be non-negative; the timeout, when set,
// must be positive. Zero values mean "use the default" and always pass.
func (c *Config) Validate() error {
	if c.Budget.BaseThreshold < 0 || c.Budget.BaseThreshold > 1 {
		return fmt.Errorf("recall: Validate: base threshold %.2f outside [0, 1]", c.Budget.BaseThreshold)
	}
	if c.Budget.OverallTimeoutMs < 0 {
		return fmt.Errorf("recall: Validate: negative overall timeout")
	}
	if c.Salience.RecencyWeight < 0 || c.Salience.SimilarityWeight < 0 || c.Salience.DomainWeight < 0 {
		return fmt.Errorf("recall: Validate: negative salience weight")
	}
	if c.DiversityThreshold < 0 || c.DiversityThreshold > 1 {
		return fmt.Errorf("recall: Validate: diversity threshold %.2f outside [0, 1]", c.DiversityThreshold)
	}
	return nil
}

// overallTimeout returns the configured overall timeout.
func (c *Config) overallTimeout() time.Duration {
	if c.Budget.OverallTimeoutMs > 0 {
		return time.Duration(c.Budget.OverallTimeoutMs) * time.Millisecond
	}
	return 15 * time.Second
}

// allocatorConfig derives the budget allocator tuning.
func (c *Config) allocatorConfig() *budget.AllocatorConfig {
	cfg := budget.DefaultAllocatorConfig()
	if c.Budget.MaxItemsPerKind > 0 {
		cfg.MaxLimit = c.Budget.MaxItemsPerKind
	}
	if c.Budget.BaseThreshold > 0 {
		cfg.BaseThreshold = c.Budget.BaseThreshold
	}
	cfg.OverallTimeout = c.overallTimeout()
	return cfg
}

// scorerConfig derives the salience scorer tuning.
func (c *Config) scorerConfig() *salience.Config {
	return &salience.Config{
		HalfLifeDays: c.Salience.HalfLifeDays,
		Weights: salience.Weights{
			Recency:    c.Salience.RecencyWeight,
			Similarity: c.Salience.SimilarityWeight,
			Domain:     c.Salience.DomainWeight,
		},
		Vocabulary: c.Salience.Vocabulary,
	}
}

// stageConfig derives the retrieval stage tuning.
func (c *Config) stageConfig() *retrieval.Config {
	cfg := retrieval.DefaultConfig()
	if c.Retrieval.OversampleFactor > 0 {
		cfg.OversampleFactor = c.Retrieval.OversampleFactor
	}
	if c.Retrieval.ExpansionThreshold > 0 {
		cfg.ExpansionThreshold = c.Retrieval.ExpansionThreshold
	}
	if c.Retrieval.ExpansionLimit > 0 {
		cfg.ExpansionLimit = c.Retrieval.ExpansionLimit
	}
	return cfg
}

// deduper derives the cross-kind deduper.
func (c *Config) deduper() *fingerprint.Deduper {
	return fingerprint.NewDeduper(c.DiversityThreshold)
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches for .env or .env.example files, checking the current
// directory first and then up to 5 directory levels up.
//
// Returns the path to the found file and whether one was found.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		envExamplePath := filepath.Join(dir, ".env.example")
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
