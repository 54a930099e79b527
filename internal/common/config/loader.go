// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultPromptTemplate substitutes the expression label at PromptPlaceholder.
	DefaultPromptTemplate = "Using the attached portrait as the reference, create a square character icon of the same person " +
		"showing a clearly readable {expression} facial expression. Keep the face, hairstyle, clothing, art style " +
		"and lighting consistent with the reference. Head and shoulders only, plain background."
	PromptPlaceholder = "{expression}"

	DefaultScheme          = "glowficgirlichgallery"
	DefaultArchiveFilename = "facecast-expressions.glowficgirllichgallery"
	DefaultGalleryCommand  = "glowfic_scraper.py --gui"
)

// Load reads configs/config.yaml (plus config.<env>.yaml), .env and the
// environment. A missing config file is not an error.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "facecast"))
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.SetEnvPrefix("FACECAST")
	v.AutomaticEnv()
	bindKnownKeys(v)
	setNumericDefaults(v)

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// AutomaticEnv only applies to keys viper already knows about, so keys that
// are usually absent from the YAML file are bound explicitly.
func bindKnownKeys(v *viper.Viper) {
	for _, key := range []string{
		"apis.genai.base_url", "apis.genai.model", "apis.genai.timeout",
		"generation.concurrency", "generation.inter_batch_delay", "generation.prompt_template", "generation.catalog_path",
		"credentials.backend", "credentials.file_path", "credentials.key",
		"database.redis.address", "database.redis.password", "database.redis.db", "database.redis.pool_size", "database.redis.timeout",
		"handoff.scheme", "handoff.download_dir", "handoff.filename", "handoff.settle_delay", "handoff.gallery_command",
		"logging.level", "logging.format", "logging.output",
		"metrics.address",
	} {
		_ = v.BindEnv(key)
	}
}

// Delays and concurrency are registered as viper defaults rather than filled
// in by applyDefaults, so an explicit 0 in the file or environment is kept.
func setNumericDefaults(v *viper.Viper) {
	v.SetDefault("apis.genai.timeout", 120000)
	v.SetDefault("generation.concurrency", 3)
	v.SetDefault("generation.inter_batch_delay", 1000)
	v.SetDefault("handoff.settle_delay", 1000)
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			// An unset variable expands to "" so later fallbacks still apply.
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// The API key is the one setting commonly provided under a vendor name.
func overrideEmptyConfig(cfg *Config) {
	if cfg.APIs.GenAI.APIKey == "" {
		for _, name := range []string{"FACECAST_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if val := os.Getenv(name); val != "" {
				cfg.APIs.GenAI.APIKey = val
				break
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "facecast"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.APIs.GenAI.BaseURL == "" {
		cfg.APIs.GenAI.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.APIs.GenAI.Model == "" {
		cfg.APIs.GenAI.Model = "gemini-2.5-flash-image"
	}

	if cfg.Generation.PromptTemplate == "" {
		cfg.Generation.PromptTemplate = DefaultPromptTemplate
	}

	if cfg.Credentials.Backend == "" {
		cfg.Credentials.Backend = "file"
	}
	if cfg.Credentials.Key == "" {
		cfg.Credentials.Key = "facecast.api_key"
	}
	if cfg.Credentials.FilePath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			dir = os.TempDir()
		}
		cfg.Credentials.FilePath = filepath.Join(dir, "facecast", "credentials.json")
	}

	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	// The store touches a single key per command.
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 2
	}
	if cfg.Database.Redis.Timeout == 0 {
		cfg.Database.Redis.Timeout = 3000
	}

	if cfg.Handoff.Scheme == "" {
		cfg.Handoff.Scheme = DefaultScheme
	}
	if cfg.Handoff.Filename == "" {
		cfg.Handoff.Filename = DefaultArchiveFilename
	}
	if cfg.Handoff.GalleryCommand == "" {
		cfg.Handoff.GalleryCommand = DefaultGalleryCommand
	}
	if cfg.Handoff.DownloadDir == "" {
		cfg.Handoff.DownloadDir = defaultDownloadDir()
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, "Downloads")
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Generation.Concurrency < 1 {
		return fmt.Errorf("generation.concurrency must be >= 1, got %d", cfg.Generation.Concurrency)
	}
	if cfg.APIs.GenAI.Timeout < 1 {
		return fmt.Errorf("apis.genai.timeout must be >= 1, got %d", cfg.APIs.GenAI.Timeout)
	}
	if cfg.Generation.InterBatchDelay < 0 {
		return fmt.Errorf("generation.inter_batch_delay must be >= 0")
	}
	if !strings.Contains(cfg.Generation.PromptTemplate, PromptPlaceholder) {
		return fmt.Errorf("generation.prompt_template must contain %s", PromptPlaceholder)
	}

	switch cfg.Credentials.Backend {
	case "file":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis credentials backend")
		}
	default:
		return fmt.Errorf("credentials.backend must be file or redis, got %q", cfg.Credentials.Backend)
	}

	if cfg.Handoff.Scheme == "" || strings.ContainsAny(cfg.Handoff.Scheme, ":/ ") {
		return fmt.Errorf("handoff.scheme %q is not a valid URI scheme", cfg.Handoff.Scheme)
	}
	if cfg.Handoff.SettleDelay < 0 {
		return fmt.Errorf("handoff.settle_delay must be >= 0")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
