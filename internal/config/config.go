package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Capture     CaptureConfig
	Preferences PreferencesConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Queue       QueueConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	Metrics     MetricsConfig
	Bridge      BridgeConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds the shared secret for tokens exchanged between contexts.
// An empty secret disables bridge authentication.
type AuthConfig struct {
	BridgeSecret string
	TokenTTL     time.Duration
}

// RateLimitConfig throttles capture endpoints per caller
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// CaptureConfig tunes the capture pipeline
type CaptureConfig struct {
	SettleDelay           time.Duration
	BlackSampleCount      int
	BlackChannelThreshold int
	BlackRatio            float64
	JPEGQuality           int
	Screen                string // static or display
	Display               int
}

// PreferencesConfig holds the defaults written on first use
type PreferencesConfig struct {
	IncludeSubtitles bool
	AutoDownload     bool
	Format           string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	LastTTL  time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	Prefix          string
	PresignExpiry   time.Duration
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
	Name     string
	MaxAge   time.Duration
}

// LoggingConfig selects level and output format
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// TracingConfig holds Jaeger settings
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// BridgeConfig locates the bridge endpoints for out-of-process callers
type BridgeConfig struct {
	PageURL       string
	BackgroundURL string
	Timeout       time.Duration
}

// Load reads configuration from file and environment variables. An empty
// path loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("substills")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Capture.BlackSampleCount <= 0 {
		return fmt.Errorf("capture.blackSampleCount must be positive, got %d", c.Capture.BlackSampleCount)
	}
	if c.Capture.BlackChannelThreshold < 0 || c.Capture.BlackChannelThreshold > 255 {
		return fmt.Errorf("capture.blackChannelThreshold must be within [0,255], got %d", c.Capture.BlackChannelThreshold)
	}
	if c.Capture.BlackRatio < 0 || c.Capture.BlackRatio > 1 {
		return fmt.Errorf("capture.blackRatio must be within [0,1], got %g", c.Capture.BlackRatio)
	}
	if c.Capture.JPEGQuality < 1 || c.Capture.JPEGQuality > 100 {
		return fmt.Errorf("capture.jpegQuality must be within [1,100], got %d", c.Capture.JPEGQuality)
	}
	switch c.Capture.Screen {
	case "static", "display":
	default:
		return fmt.Errorf("capture.screen must be static or display, got %q", c.Capture.Screen)
	}
	switch strings.ToLower(c.Preferences.Format) {
	case "png", "jpeg", "jpg", "lossless", "lossy":
	default:
		return fmt.Errorf("preferences.format %q is not supported", c.Preferences.Format)
	}
	return nil
}

// Addr returns the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSN returns the Postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// URL returns the AMQP connection string
func (q QueueConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", q.User, q.Password, q.Host, q.Port, q.Vhost)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "10s")

	// Auth defaults
	v.SetDefault("auth.bridgeSecret", "")
	v.SetDefault("auth.tokenTTL", "1h")

	// Rate limit defaults
	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.rps", 5)
	v.SetDefault("rateLimit.burst", 10)

	// Capture defaults
	v.SetDefault("capture.settleDelay", "100ms")
	v.SetDefault("capture.blackSampleCount", 100)
	v.SetDefault("capture.blackChannelThreshold", 10)
	v.SetDefault("capture.blackRatio", 0.05)
	v.SetDefault("capture.jpegQuality", 95)
	v.SetDefault("capture.screen", "static")
	v.SetDefault("capture.display", 0)

	// Preference defaults
	v.SetDefault("preferences.includeSubtitles", true)
	v.SetDefault("preferences.autoDownload", true)
	v.SetDefault("preferences.format", "png")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "substills")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 10)
	v.SetDefault("database.minConns", 2)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lastTTL", "24h")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "screenshots")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.prefix", "captures")
	v.SetDefault("storage.presignExpiry", "15m")

	// Queue defaults
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")
	v.SetDefault("queue.name", "substills.commands")
	v.SetDefault("queue.maxAge", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "substills")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.sampleRate", 1.0)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Bridge defaults
	v.SetDefault("bridge.pageURL", "http://localhost:8080/bridge/page")
	v.SetDefault("bridge.backgroundURL", "http://localhost:8080/bridge/background")
	v.SetDefault("bridge.timeout", "30s")
}
