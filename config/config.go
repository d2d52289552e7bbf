package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cdematcher/backend/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Matching  MatchingConfig  `mapstructure:"matching"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig selects where source datasets and CDE dictionaries are read from
type StorageConfig struct {
	Type               string `mapstructure:"type"` // "local" or "bucket"
	LocalDir           string `mapstructure:"local_dir"`
	BucketName         string `mapstructure:"bucket_name"`
	BucketBaseURL      string `mapstructure:"bucket_base_url"`
	AccessToken        string `mapstructure:"access_token"`
	ClinicalDataPrefix string `mapstructure:"clinical_data_prefix"`
	CDEsPrefix         string `mapstructure:"cdes_prefix"`
}

// Prefixes maps each dataset collection to its bucket object prefix.
func (s StorageConfig) Prefixes() map[string]string {
	return map[string]string{
		domain.CollectionClinicalData: s.ClinicalDataPrefix,
		domain.CollectionCDEs:         s.CDEsPrefix,
	}
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // "memory" or "sqlite"
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration, in requests per minute
type RateLimitConfig struct {
	PerIP  int `mapstructure:"per_ip"`
	Bucket int `mapstructure:"bucket"`
}

// MatchingConfig holds the default ensemble and pipeline settings
type MatchingConfig struct {
	Workers  int             `mapstructure:"workers"`
	Debug    bool            `mapstructure:"debug"`
	Exact    ExactSection    `mapstructure:"exact"`
	Fuzzy    FuzzySection    `mapstructure:"fuzzy"`
	Semantic SemanticSection `mapstructure:"semantic"`
}

type ExactSection struct {
	Enabled       bool `mapstructure:"enabled"`
	CaseSensitive bool `mapstructure:"case_sensitive"`
}

type FuzzySection struct {
	Enabled       bool    `mapstructure:"enabled"`
	Threshold     float64 `mapstructure:"threshold"`
	Algorithm     string  `mapstructure:"algorithm"`
	CaseSensitive bool    `mapstructure:"case_sensitive"`
	MaxResults    int     `mapstructure:"max_results"`
}

type SemanticSection struct {
	Enabled       bool `mapstructure:"enabled"`
	CaseSensitive bool `mapstructure:"case_sensitive"`
	ExactOnly     bool `mapstructure:"exact_only"`
}

// Ensemble returns the enabled sections as strategy configs, in
// exact, fuzzy, semantic order.
func (m MatchingConfig) Ensemble() []domain.StrategyConfig {
	var configs []domain.StrategyConfig
	if m.Exact.Enabled {
		configs = append(configs, domain.ExactConfig{CaseSensitive: m.Exact.CaseSensitive})
	}
	if m.Fuzzy.Enabled {
		configs = append(configs, domain.FuzzyConfig{
			Threshold:     m.Fuzzy.Threshold,
			Algorithm:     domain.FuzzyAlgorithm(m.Fuzzy.Algorithm),
			CaseSensitive: m.Fuzzy.CaseSensitive,
			MaxResults:    m.Fuzzy.MaxResults,
		})
	}
	if m.Semantic.Enabled {
		configs = append(configs, domain.SemanticConfig{
			CaseSensitive: m.Semantic.CaseSensitive,
			ExactOnly:     m.Semantic.ExactOnly,
		})
	}
	return configs
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cdematcher/")

	// Environment variable settings: CDEMATCHER_CACHE_TYPE -> cache.type
	v.SetEnvPrefix("CDEMATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile exports KEY=VALUE lines from ./.env into the process
// environment. Variables that are already set win.
func loadEnvFile() error {
	f, err := os.Open(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8501"})

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.bucket_name", "pathnd_cdes")
	v.SetDefault("storage.bucket_base_url", "https://storage.googleapis.com")
	v.SetDefault("storage.access_token", "")
	v.SetDefault("storage.clinical_data_prefix", domain.CollectionClinicalData)
	v.SetDefault("storage.cdes_prefix", domain.CollectionCDEs)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.path", "data/output/reports.db")
	v.SetDefault("cache.ttl", "720h") // 30 days

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.bucket", 600)

	// Matching defaults
	fuzzy := domain.DefaultFuzzyConfig()
	v.SetDefault("matching.workers", 0)
	v.SetDefault("matching.debug", false)
	v.SetDefault("matching.exact.enabled", true)
	v.SetDefault("matching.exact.case_sensitive", false)
	v.SetDefault("matching.fuzzy.enabled", true)
	v.SetDefault("matching.fuzzy.threshold", fuzzy.Threshold)
	v.SetDefault("matching.fuzzy.algorithm", string(fuzzy.Algorithm))
	v.SetDefault("matching.fuzzy.case_sensitive", false)
	v.SetDefault("matching.fuzzy.max_results", 0)
	v.SetDefault("matching.semantic.enabled", true)
	v.SetDefault("matching.semantic.case_sensitive", false)
	v.SetDefault("matching.semantic.exact_only", false)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Storage.Type {
	case "local":
		if config.Storage.LocalDir == "" {
			return fmt.Errorf("storage local_dir is required when storage type is 'local'")
		}
	case "bucket":
		if config.Storage.BucketName == "" {
			return fmt.Errorf("bucket name is required when storage type is 'bucket' (set CDEMATCHER_STORAGE_BUCKET_NAME)")
		}
	default:
		return fmt.Errorf("storage type must be 'local' or 'bucket', got: %s", config.Storage.Type)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "sqlite" {
		return fmt.Errorf("cache type must be 'memory' or 'sqlite', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "sqlite" && config.Cache.Path == "" {
		return fmt.Errorf("cache path is required when cache type is 'sqlite'")
	}

	if config.Matching.Workers < 0 {
		return fmt.Errorf("matching workers must be zero (one per CPU) or positive, got: %d", config.Matching.Workers)
	}

	ensemble := config.Matching.Ensemble()
	if len(ensemble) == 0 {
		return fmt.Errorf("at least one matching strategy must be enabled")
	}
	for _, strategy := range ensemble {
		if err := strategy.Validate(); err != nil {
			return fmt.Errorf("matching.%s: %w", strategy.Kind(), err)
		}
	}

	return nil
}
