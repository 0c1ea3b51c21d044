// Package config loads the service configuration from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	// PathEnv names the variable holding the config path.
	PathEnv = "NOTESYNC_CONFIG"

	// DefaultPath is used when neither a flag nor PathEnv is set.
	DefaultPath = "config/local.yaml"
)

// Config is the full service configuration.
type Config struct {
	Env      string         `yaml:"env" env:"NOTESYNC_ENV" env-default:"local" validate:"oneof=local dev prod"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	History  HistoryConfig  `yaml:"history"`
	Share    ShareConfig    `yaml:"share"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Log      LogConfig      `yaml:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Address           string        `yaml:"address" env:"NOTESYNC_HTTP_ADDRESS" env-default:":8080" validate:"required"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env-default:"10s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
	AllowedOrigins    []string      `yaml:"allowed_origins" env:"NOTESYNC_HTTP_ALLOWED_ORIGINS" env-default:"*"`
}

// AuthConfig holds the bearer token signing settings.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"NOTESYNC_JWT_SECRET" validate:"required,min=16"`
	TokenTTL  time.Duration `yaml:"token_ttl" env-default:"24h" validate:"gt=0"`
}

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Driver       string        `yaml:"driver" env:"NOTESYNC_STORAGE_DRIVER" env-default:"memory" validate:"oneof=memory postgres"`
	DSN          string        `yaml:"dsn" env:"NOTESYNC_DATABASE_DSN" validate:"required_if=Driver postgres"`
	MaxOpenConns int           `yaml:"max_open_conns" env-default:"10" validate:"gte=0"`
	MaxIdleConns int           `yaml:"max_idle_conns" env-default:"5" validate:"gte=0"`
	ConnMaxLife  time.Duration `yaml:"conn_max_lifetime" env-default:"30m"`
	AutoMigrate  bool          `yaml:"auto_migrate" env:"NOTESYNC_AUTO_MIGRATE" env-default:"true"`
}

// HistoryConfig bounds the per-note version history.
type HistoryConfig struct {
	MaxVersions int `yaml:"max_versions" env-default:"50" validate:"gte=1,lte=1000"`
}

// ShareConfig controls share code expiry and sweeping.
type ShareConfig struct {
	DefaultExpiryDays int           `yaml:"default_expiry_days" env-default:"7" validate:"gte=1,lte=365"`
	MaxAttempts       int           `yaml:"max_attempts" env-default:"10" validate:"gte=1"`
	CacheSize         int           `yaml:"cache_size" env-default:"1024" validate:"gte=0"`
	CacheTTL          time.Duration `yaml:"cache_ttl" env-default:"10m"`
	SweepSpec         string        `yaml:"sweep_spec" env-default:"@every 1h"`
}

// RealtimeConfig tunes the websocket sessions.
type RealtimeConfig struct {
	SendQueueSize int           `yaml:"send_queue_size" env-default:"64" validate:"gte=1"`
	WriteTimeout  time.Duration `yaml:"write_timeout" env-default:"10s"`
}

// ArchiveConfig selects where deleted notes are archived.
type ArchiveConfig struct {
	Type string    `yaml:"type" env:"NOTESYNC_ARCHIVE_TYPE" env-default:"none" validate:"oneof=none local s3"`
	Dir  string    `yaml:"dir" validate:"required_if=Type local"`
	S3   S3Archive `yaml:"s3"`
}

// S3Archive configures the S3 archive sink.
type S3Archive struct {
	Endpoint  string `yaml:"endpoint" env:"NOTESYNC_S3_ENDPOINT"`
	Region    string `yaml:"region" env:"NOTESYNC_S3_REGION" env-default:"us-east-1"`
	Bucket    string `yaml:"bucket" env:"NOTESYNC_S3_BUCKET"`
	AccessKey string `yaml:"access_key" env:"NOTESYNC_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"NOTESYNC_S3_SECRET_KEY"`
	Prefix    string `yaml:"prefix" env-default:"notes"`
	PathStyle bool   `yaml:"path_style"`
}

// LogConfig configures the zap logger and file rotation.
type LogConfig struct {
	Level      string `yaml:"level" env:"NOTESYNC_LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" env-default:"100"`
	MaxBackups int    `yaml:"max_backups" env-default:"5"`
	MaxAgeDays int    `yaml:"max_age_days" env-default:"7"`
	Console    bool   `yaml:"console" env-default:"true"`
}

// FetchPath returns flagValue, else $NOTESYNC_CONFIG, else DefaultPath.
func FetchPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if env := os.Getenv(PathEnv); env != "" {
		return env
	}

	return DefaultPath
}

// Load reads a .env file if present, then the YAML file at path with
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags and the cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if c.Archive.Type == "s3" && c.Archive.S3.Bucket == "" {
		return errors.New("invalid config: archive.s3.bucket is required")
	}

	return nil
}
