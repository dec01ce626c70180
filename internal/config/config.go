package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is injected at build time via ldflags.
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Aria2    Aria2Config    `mapstructure:"aria2"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	// SecretKey encrypts sensitive settings at rest. Empty disables encryption.
	SecretKey string `mapstructure:"secret_key"`
	// AdminPassword seeds the admin account on first start.
	AdminPassword string `mapstructure:"admin_password"`
}

// Aria2Config holds fallback values for the daemon connection. The settings
// table (rpc_url, rpc_port, rpc_token) takes precedence once populated.
type Aria2Config struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Token   string        `mapstructure:"token"`
	UseSSL  bool          `mapstructure:"use_ssl"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// UploadConfig holds upload dispatcher configuration.
type UploadConfig struct {
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
	Sink      string `mapstructure:"sink"` // "local" or "s3"
	LocalRoot string `mapstructure:"local_root"`
	S3Bucket  string `mapstructure:"s3_bucket"`
	S3Region  string `mapstructure:"s3_region"`
	S3Profile string `mapstructure:"s3_profile"`
}

// SweeperConfig controls the background failed-download sweep.
type SweeperConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "./data/driveindex.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Aria2: Aria2Config{
			Host:    "127.0.0.1",
			Port:    6800,
			Timeout: 30 * time.Second,
		},
		Upload: UploadConfig{
			Workers:   2,
			QueueSize: 256,
			Sink:      "local",
			LocalRoot: "./data/uploads",
		},
		Sweeper: SweeperConfig{
			Enabled: true,
			Cron:    "*/5 * * * *",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.driveindex")
	}

	v.SetEnvPrefix("DRIVEINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.secret_key", "")
	v.SetDefault("auth.admin_password", "")

	v.SetDefault("aria2.host", d.Aria2.Host)
	v.SetDefault("aria2.port", d.Aria2.Port)
	v.SetDefault("aria2.token", "")
	v.SetDefault("aria2.use_ssl", false)
	v.SetDefault("aria2.timeout", d.Aria2.Timeout)

	v.SetDefault("upload.workers", d.Upload.Workers)
	v.SetDefault("upload.queue_size", d.Upload.QueueSize)
	v.SetDefault("upload.sink", d.Upload.Sink)
	v.SetDefault("upload.local_root", d.Upload.LocalRoot)
	v.SetDefault("upload.s3_bucket", "")
	v.SetDefault("upload.s3_region", "")
	v.SetDefault("upload.s3_profile", "")

	v.SetDefault("sweeper.enabled", d.Sweeper.Enabled)
	v.SetDefault("sweeper.cron", d.Sweeper.Cron)
}

// Validate checks for configuration combinations that cannot work.
func (c *Config) Validate() error {
	switch c.Upload.Sink {
	case "local":
		if c.Upload.LocalRoot == "" {
			return fmt.Errorf("upload.local_root is required for the local sink")
		}
	case "s3":
		if c.Upload.S3Bucket == "" {
			return fmt.Errorf("upload.s3_bucket is required for the s3 sink")
		}
	default:
		return fmt.Errorf("unknown upload sink %q", c.Upload.Sink)
	}
	if c.Upload.Workers <= 0 {
		return fmt.Errorf("upload.workers must be positive")
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}
