package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config represents the application configuration
type Config struct {
	Environment string           `mapstructure:"environment"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Kafka       KafkaConfig      `mapstructure:"kafka"`
	Clients     ClientsConfig    `mapstructure:"clients"`
	Generation  GenerationConfig `mapstructure:"generation"`
	Processing  ProcessingConfig `mapstructure:"processing"`
	Monitoring  MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	HTTPPort int           `mapstructure:"http_port"`
	Host     string        `mapstructure:"host"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	ProducerTimeout time.Duration `mapstructure:"producer_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	Topics          KafkaTopics   `mapstructure:"topics"`
}

// KafkaTopics defines all Kafka topic names
type KafkaTopics struct {
	GeneratedResource string `mapstructure:"generated_resource"`
	ProcessedResource string `mapstructure:"processed_resource"`
	CampaignEvents    string `mapstructure:"campaign_events"`
	ErrorEvents       string `mapstructure:"error_events"`
}

// ClientsConfig contains settings for collaborator services
type ClientsConfig struct {
	FileStore       EndpointConfig `mapstructure:"file_store"`
	SchemaRegistry  EndpointConfig `mapstructure:"schema_registry"`
	Boundary        EndpointConfig `mapstructure:"boundary"`
	Localization    EndpointConfig `mapstructure:"localization"`
	MaxRetries      int            `mapstructure:"max_retries"`
	RetryBackoff    time.Duration  `mapstructure:"retry_backoff"`
	TransientErrors []string       `mapstructure:"transient_errors"`
	ParallelLookups int            `mapstructure:"parallel_lookups"`
}

// EndpointConfig identifies one upstream service
type EndpointConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GenerationConfig contains template generation settings
type GenerationConfig struct {
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	SheetPassword   string        `mapstructure:"sheet_password"`
	UnfreezeTillRow int           `mapstructure:"unfreeze_till_row"`
	DefaultLocale   string        `mapstructure:"default_locale"`
	DefaultModule   string        `mapstructure:"default_module"`
}

// ProcessingConfig contains upload processing settings
type ProcessingConfig struct {
	BaseDelayPerRow time.Duration `mapstructure:"base_delay_per_row"`
	MaxWaitCap      time.Duration `mapstructure:"max_wait_cap"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	MaxRetries      int           `mapstructure:"max_retries"`
	InterChunkWait  time.Duration `mapstructure:"inter_chunk_wait"`
	SchemaCacheTTL  time.Duration `mapstructure:"schema_cache_ttl"`
	LocaleCacheTTL  time.Duration `mapstructure:"locale_cache_ttl"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	EnableMetrics bool   `mapstructure:"enable_metrics"`
	MetricsPath   string `mapstructure:"metrics_path"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("environment", "production")

	// Server defaults
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "30m")
	viper.SetDefault("database.migrations_path", "file://migrations")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.database", 0)

	// Kafka defaults
	viper.SetDefault("kafka.producer_timeout", "30s")
	viper.SetDefault("kafka.max_retries", 3)
	viper.SetDefault("kafka.retry_backoff", "1s")
	viper.SetDefault("kafka.topics.generated_resource", "create-generated-resource")
	viper.SetDefault("kafka.topics.processed_resource", "update-processed-resource")
	viper.SetDefault("kafka.topics.campaign_events", "campaign-events")
	viper.SetDefault("kafka.topics.error_events", "resource-error-events")

	// Client defaults
	viper.SetDefault("clients.max_retries", 3)
	viper.SetDefault("clients.retry_backoff", "2s")
	viper.SetDefault("clients.transient_errors", []string{
		"socket hang up",
		"connection reset",
		"connection refused",
		"i/o timeout",
	})
	viper.SetDefault("clients.parallel_lookups", 5)
	viper.SetDefault("clients.file_store.timeout", "60s")
	viper.SetDefault("clients.schema_registry.timeout", "15s")
	viper.SetDefault("clients.boundary.timeout", "30s")
	viper.SetDefault("clients.localization.timeout", "30s")

	// Generation defaults
	viper.SetDefault("generation.cache_ttl", "5m")
	viper.SetDefault("generation.unfreeze_till_row", 2000)
	viper.SetDefault("generation.default_locale", "en_MZ")
	viper.SetDefault("generation.default_module", "rainmaker-common")

	// Processing defaults
	viper.SetDefault("processing.base_delay_per_row", "15ms")
	viper.SetDefault("processing.max_wait_cap", "90s")
	viper.SetDefault("processing.chunk_size", 100)
	viper.SetDefault("processing.max_retries", 3)
	viper.SetDefault("processing.inter_chunk_wait", "30s")
	viper.SetDefault("processing.schema_cache_ttl", "5m")
	viper.SetDefault("processing.locale_cache_ttl", "5m")

	// Monitoring defaults
	viper.SetDefault("monitoring.enable_metrics", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("Kafka brokers are required")
	}

	if c.Clients.FileStore.BaseURL == "" {
		return fmt.Errorf("file store base URL is required")
	}

	if c.Clients.SchemaRegistry.BaseURL == "" {
		return fmt.Errorf("schema registry base URL is required")
	}

	if c.Clients.Boundary.BaseURL == "" {
		return fmt.Errorf("boundary service base URL is required")
	}

	if c.Clients.Localization.BaseURL == "" {
		return fmt.Errorf("localization service base URL is required")
	}

	if c.Processing.ChunkSize <= 0 {
		return fmt.Errorf("processing chunk size must be positive")
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.Username,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetDatabaseURL returns the migrate-compatible database URL
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis connection address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// InitLogger initializes the logger based on configuration
func (c *Config) InitLogger() (*zap.Logger, error) {
	var config zap.Config

	if c.Environment == "development" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger, nil
}
