// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	APIs        APIsConfig        `mapstructure:"apis"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Handoff     HandoffConfig     `mapstructure:"handoff"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds, per read/write
}

// APIsConfig holds settings for the remote generation endpoint.
type APIsConfig struct {
	GenAI struct {
		BaseURL string `mapstructure:"base_url"`
		Model   string `mapstructure:"model"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`
}

// GenerationConfig holds batch orchestrator settings.
type GenerationConfig struct {
	Concurrency     int    `mapstructure:"concurrency"`
	InterBatchDelay int    `mapstructure:"inter_batch_delay"` // milliseconds
	PromptTemplate  string `mapstructure:"prompt_template"`
	CatalogPath     string `mapstructure:"catalog_path"`
}

// CredentialsConfig selects where a user-set API key is persisted.
type CredentialsConfig struct {
	Backend  string `mapstructure:"backend"` // "file" or "redis"
	FilePath string `mapstructure:"file_path"`
	Key      string `mapstructure:"key"`
}

// HandoffConfig holds settings for saving the archive and notifying the gallery tool.
type HandoffConfig struct {
	Scheme         string `mapstructure:"scheme"`
	DownloadDir    string `mapstructure:"download_dir"`
	Filename       string `mapstructure:"filename"`
	SettleDelay    int    `mapstructure:"settle_delay"` // milliseconds
	GalleryCommand string `mapstructure:"gallery_command"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig controls the optional /metrics listener.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
