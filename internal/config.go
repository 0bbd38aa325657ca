package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Security      SecurityConfig      `mapstructure:"security"`
	Bank          BankConfig          `mapstructure:"bank"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

// RedisConfig is optional. An empty URL disables the webhook delivery lock.
type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type SecurityConfig struct {
	InternalAPIKey string `mapstructure:"internal_api_key"`
	GatewayAPIKey  string `mapstructure:"gateway_api_key"`
}

type BankConfig struct {
	Account   string `mapstructure:"account"`
	Name      string `mapstructure:"name"`
	QRBaseURL string `mapstructure:"qr_base_url"`
}

type PaymentConfig struct {
	ExpiryWindow    time.Duration `mapstructure:"expiry_window"`
	MaxCodeAttempts int           `mapstructure:"max_code_attempts"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	DefaultExpiryWindow    = 10 * time.Minute
	DefaultMaxCodeAttempts = 5
	DefaultQRBaseURL       = "https://qr.sepay.vn/img"
	DefaultLockTTL         = 30 * time.Second
)

// LoadConfigFromEnv builds the config from plain environment variables (docker deployments).
func LoadConfigFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 3000),
			BaseURL:           getEnv("BASE_URL", ""),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			LockTTL: getEnvAsDuration("REDIS_LOCK_TTL", DefaultLockTTL),
		},
		Security: SecurityConfig{
			InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),
			GatewayAPIKey:  getEnv("SEPAY_API_KEY", ""),
		},
		Bank: BankConfig{
			Account:   getEnv("MY_BANK_ACC", ""),
			Name:      getEnv("MY_BANK_NAME", ""),
			QRBaseURL: getEnv("QR_BASE_URL", DefaultQRBaseURL),
		},
		Payment: PaymentConfig{
			ExpiryWindow:    getEnvAsDuration("PAYMENT_EXPIRY_WINDOW", DefaultExpiryWindow),
			MaxCodeAttempts: getEnvAsInt("PAYMENT_MAX_CODE_ATTEMPTS", DefaultMaxCodeAttempts),
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: getEnv("METRICS_ENABLED", "true") == "true",
				Path:    getEnv("METRICS_PATH", "/metrics"),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values that have a sane default.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Bank.QRBaseURL == "" {
		c.Bank.QRBaseURL = DefaultQRBaseURL
	}
	if c.Payment.ExpiryWindow <= 0 {
		c.Payment.ExpiryWindow = DefaultExpiryWindow
	}
	if c.Payment.MaxCodeAttempts <= 0 {
		c.Payment.MaxCodeAttempts = DefaultMaxCodeAttempts
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = DefaultLockTTL
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Bank.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("bank config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.InternalAPIKey == "" {
		return errors.New("internal_api_key is required")
	}
	if c.GatewayAPIKey == "" {
		return errors.New("gateway_api_key is required")
	}
	return nil
}

func (c *BankConfig) Validate() error {
	if c.Account == "" {
		return errors.New("account is required")
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	if _, err := url.ParseRequestURI(c.QRBaseURL); err != nil {
		return fmt.Errorf("invalid qr_base_url: %w", err)
	}
	return nil
}
