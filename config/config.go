package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nutriguide/internal/domain"
)

// Config holds all configuration for NutriGuide.
type Config struct {
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Index      IndexConfig      `yaml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// RetrieveConfig holds retrieval and routing configuration.
type RetrieveConfig struct {
	TopK      int           `yaml:"top_k"`
	Threshold float64       `yaml:"threshold"` // inclusive, in [0,1]
	CacheSize int           `yaml:"cache_size"` // 0 disables the result cache
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// IndexConfig holds vector index configuration.
type IndexConfig struct {
	Dimension int    `yaml:"dimension"`
	Metric    string `yaml:"metric"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"`    // "hash" or "openai"
	Model     string        `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv string        `yaml:"api_key_env"` // Environment variable for API key
	BaseURL   string        `yaml:"base_url"`
	BatchSize int           `yaml:"batch_size"`
	Workers   int           `yaml:"workers"`
	Timeout   time.Duration `yaml:"timeout"`
	CachePath string        `yaml:"cache_path"` // bbolt file; empty disables the cache
}

// GenerationConfig holds text-generation configuration.
type GenerationConfig struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	Temperature   float32       `yaml:"temperature"`
}

// DatasetConfig says where the knowledge base is read from. Dir with
// Includes takes precedence over Path.
type DatasetConfig struct {
	Path     string        `yaml:"path"`
	Dir      string        `yaml:"dir"`
	Includes []string      `yaml:"includes"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Retrieve: RetrieveConfig{
			TopK:      1,
			Threshold: 0.75,
			CacheSize: 256,
			CacheTTL:  5 * time.Minute,
		},
		Index: IndexConfig{
			Dimension: 384,
			Metric:    domain.MetricCosine,
		},
		Embedding: EmbeddingConfig{
			Provider:  ProviderHash,
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 64,
			Workers:   4,
			Timeout:   30 * time.Second,
		},
		Generation: GenerationConfig{
			Provider:      ProviderOpenAI,
			Model:         "gpt-3.5-turbo",
			APIKeyEnv:     "OPENAI_API_KEY",
			Timeout:       60 * time.Second,
			MaxConcurrent: 8,
			Temperature:   0.2,
		},
		Dataset: DatasetConfig{
			Path:     filepath.Join("data", "nutrition_faq.json"),
			Debounce: 500 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfig, path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir loads .env from dir, then nutriguide.yaml or
// .nutriguide/config.yaml. Relative dataset and cache paths are resolved
// against dir.
func LoadFromDir(dir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	path := filepath.Join(dir, "nutriguide.yaml")
	if _, err := os.Stat(path); err != nil {
		path = filepath.Join(dir, ".nutriguide", "config.yaml")
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.resolvePaths(dir)
	return cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Dataset.Path = resolve(c.Dataset.Path)
	c.Dataset.Dir = resolve(c.Dataset.Dir)
	c.Embedding.CachePath = resolve(c.Embedding.CachePath)
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("NUTRIGUIDE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: NUTRIGUIDE_THRESHOLD=%q is not a number", domain.ErrConfig, v)
		}
		c.Retrieve.Threshold = f
	}
	if v := os.Getenv("NUTRIGUIDE_TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: NUTRIGUIDE_TOP_K=%q is not an integer", domain.ErrConfig, v)
		}
		c.Retrieve.TopK = n
	}
	if v := os.Getenv("NUTRIGUIDE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	return nil
}

// Validate checks value ranges and provider names.
func (c *Config) Validate() error {
	var problems []string
	if c.Retrieve.Threshold < 0 || c.Retrieve.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("retrieve.threshold %.3f outside [0,1]", c.Retrieve.Threshold))
	}
	if c.Retrieve.TopK <= 0 {
		problems = append(problems, fmt.Sprintf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK))
	}
	if c.Index.Dimension <= 0 {
		problems = append(problems, fmt.Sprintf("index.dimension must be positive, got %d", c.Index.Dimension))
	}
	if m := strings.ToLower(c.Index.Metric); m != "" && m != domain.MetricCosine {
		problems = append(problems, fmt.Sprintf("index.metric %q is not supported", c.Index.Metric))
	}
	switch c.Embedding.Provider {
	case ProviderHash, ProviderOpenAI:
	default:
		problems = append(problems, fmt.Sprintf("embedding.provider %q is not supported", c.Embedding.Provider))
	}
	if c.Generation.Provider != ProviderOpenAI {
		problems = append(problems, fmt.Sprintf("generation.provider %q is not supported", c.Generation.Provider))
	}
	if c.Dataset.Dir == "" && c.Dataset.Path == "" {
		problems = append(problems, "dataset.path or dataset.dir is required")
	}
	if c.Dataset.Watch && c.Dataset.Path == "" {
		problems = append(problems, "dataset.watch needs dataset.path")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported", c.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// ValidateCredentials checks that every remote provider in use has its API
// key set. needGeneration is false for commands that never call the model.
func (c *Config) ValidateCredentials(needGeneration bool) error {
	if c.Embedding.Provider == ProviderOpenAI && os.Getenv(c.Embedding.APIKeyEnv) == "" {
		return fmt.Errorf("%w: %s environment variable not set (embedding.provider=openai)", domain.ErrConfig, c.Embedding.APIKeyEnv)
	}
	if needGeneration && os.Getenv(c.Generation.APIKeyEnv) == "" {
		return fmt.Errorf("%w: %s environment variable not set", domain.ErrConfig, c.Generation.APIKeyEnv)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
