package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Access policy values for the access evaluator
const (
	PolicyAuto            = "auto"
	PolicyPendingApproval = "pending_approval"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// JWT configuration
	JWT JWTConfig `mapstructure:"jwt"`

	// Access and consent configuration
	Access AccessConfig `mapstructure:"access"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// StorageConfig holds the key-value store configuration
type StorageConfig struct {
	// Backend selects the store implementation: "memory" or "postgres"
	Backend  string         `mapstructure:"backend"`
	Postgres DatabaseConfig `mapstructure:"postgres"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	SecretKey  string `mapstructure:"secret_key"`
	SessionTTL int    `mapstructure:"session_ttl"`
	Issuer     string `mapstructure:"issuer"`
}

// AccessConfig holds consent and token lifecycle configuration
type AccessConfig struct {
	// AutoGrantPolicy controls what the evaluator does on a consent miss:
	// "auto" grants immediately, "pending_approval" requires an explicit
	// patient-side grant.
	AutoGrantPolicy string `mapstructure:"auto_grant_policy"`

	// QRTokenTTL is the access token lifetime in minutes
	QRTokenTTL int `mapstructure:"qr_token_ttl"`

	// ConsentTTL is the consent lifetime in hours
	ConsentTTL int `mapstructure:"consent_ttl"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/healthid")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables
	overrideWithEnv(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)

	// Storage defaults
	viper.SetDefault("storage.backend", "memory")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", 5432)
	viper.SetDefault("storage.postgres.name", "healthid")
	viper.SetDefault("storage.postgres.user", "healthid")
	viper.SetDefault("storage.postgres.ssl_mode", "require")
	viper.SetDefault("storage.postgres.max_open_conns", 25)
	viper.SetDefault("storage.postgres.max_idle_conns", 5)
	viper.SetDefault("storage.postgres.conn_max_lifetime", 300)

	// JWT defaults
	viper.SetDefault("jwt.session_ttl", 86400) // 24 hours
	viper.SetDefault("jwt.issuer", "healthid-portal")

	// Access defaults
	viper.SetDefault("access.auto_grant_policy", PolicyAuto)
	viper.SetDefault("access.qr_token_ttl", 15) // minutes
	viper.SetDefault("access.consent_ttl", 24)  // hours

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.health_path", "/health")

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if jwtSecret := os.Getenv("JWT_SECRET_KEY"); jwtSecret != "" {
		config.JWT.SecretKey = jwtSecret
	}

	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.JWT.SecretKey == "" {
		return fmt.Errorf("JWT secret key is required")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Storage.Backend {
	case "memory":
	case "postgres":
		if config.Storage.Postgres.Password == "" {
			return fmt.Errorf("postgres password is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %s", config.Storage.Backend)
	}

	switch config.Access.AutoGrantPolicy {
	case PolicyAuto, PolicyPendingApproval:
	default:
		return fmt.Errorf("unknown auto grant policy: %s", config.Access.AutoGrantPolicy)
	}

	if config.Access.QRTokenTTL <= 0 {
		return fmt.Errorf("qr token ttl must be positive")
	}

	if config.Access.ConsentTTL <= 0 {
		return fmt.Errorf("consent ttl must be positive")
	}

	return nil
}
