package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnv                = "development"
	defaultLogLevel           = "info"
	defaultHTTPHost           = "0.0.0.0"
	defaultHTTPPort           = 8080
	defaultHTTPTimeoutSeconds = 15
	defaultFeedBaseURL        = "https://api.cryptohopper.com/v1"
	defaultFeedLimit          = 20
	defaultTelegramAPIURL     = "https://api.telegram.org"
	defaultWatermarkBackend   = BackendFile
	defaultWatermarkFile      = "last_trade.json"
	defaultWatermarkKey       = "notifier:last_trade_id"
	defaultRedisAddr          = "localhost:6379"
	defaultRedisDB            = 0
	defaultTradesExchange     = "notifier.trades"
)

// Watermark backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config keeps the runtime configuration for the notifier.
type Config struct {
	Env       string
	LogLevel  string
	HTTP      HTTPConfig
	Feed      FeedConfig
	Telegram  TelegramConfig
	Watermark WatermarkConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	RabbitMQ  RabbitMQConfig
}

// RunTimeout bounds one run: a fetch, one delivery per trade of the window
// and the watermark save, each limited by the outbound HTTP timeout.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Feed.Limit+2) * c.HTTP.Timeout
}

// HTTPConfig holds the run-trigger server settings and the outbound client timeout.
type HTTPConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Addr renders the listen address in host:port form.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// FeedConfig describes the trading-bot trades endpoint.
type FeedConfig struct {
	BaseURL     string
	HopperID    string
	AccessToken string
	Limit       int
}

// TelegramConfig describes the chat target.
type TelegramConfig struct {
	APIURL    string
	BotToken  string
	ChatID    string
	ParseMode string
}

// WatermarkConfig selects where the last notified trade id lives.
type WatermarkConfig struct {
	Backend string
	File    string
	Key     string
}

// RedisConfig stores Redis connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig stores database connection parameters.
type PostgresConfig struct {
	DSN string
}

// RabbitMQConfig enables mirroring of notified trades when URL is set.
type RabbitMQConfig struct {
	URL            string
	TradesExchange string
}

// Enabled reports whether the trade mirror should be started.
func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

// Load builds Config from environment variables. A .env file in the working
// directory is applied first without overriding variables that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds Config from the current environment only.
func FromEnv() (*Config, error) {
	var errs []error

	port, err := getInt("HTTP_PORT", defaultHTTPPort)
	if err != nil {
		errs = append(errs, err)
	}
	timeoutSeconds, err := getInt("HTTP_TIMEOUT_SECONDS", defaultHTTPTimeoutSeconds)
	if err != nil {
		errs = append(errs, err)
	}
	limit, err := getInt("FEED_LIMIT", defaultFeedLimit)
	if err != nil {
		errs = append(errs, err)
	} else if limit <= 0 {
		errs = append(errs, errors.New("FEED_LIMIT must be positive"))
	}
	redisDB, err := getInt("REDIS_DB", defaultRedisDB)
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		Env:      getString("APP_ENV", defaultEnv),
		LogLevel: getString("LOG_LEVEL", defaultLogLevel),
		HTTP: HTTPConfig{
			Host:    getString("HTTP_HOST", defaultHTTPHost),
			Port:    port,
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		Feed: FeedConfig{
			BaseURL:     strings.TrimRight(getString("FEED_BASE_URL", defaultFeedBaseURL), "/"),
			HopperID:    required("HOPPER_ID", &errs),
			AccessToken: required("ACCESS_TOKEN", &errs),
			Limit:       limit,
		},
		Telegram: TelegramConfig{
			APIURL:    strings.TrimRight(getString("TELEGRAM_API_URL", defaultTelegramAPIURL), "/"),
			BotToken:  required("TELEGRAM_BOT_TOKEN", &errs),
			ChatID:    required("TELEGRAM_CHAT_ID", &errs),
			ParseMode: getString("TELEGRAM_PARSE_MODE", ""),
		},
		Watermark: WatermarkConfig{
			Backend: strings.ToLower(getString("WATERMARK_BACKEND", defaultWatermarkBackend)),
			File:    getString("WATERMARK_FILE", defaultWatermarkFile),
			Key:     getString("WATERMARK_KEY", defaultWatermarkKey),
		},
		Redis: RedisConfig{
			Addr:     getString("REDIS_ADDR", defaultRedisAddr),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Postgres: PostgresConfig{
			DSN: getString("DATABASE_DSN", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:            getString("RABBITMQ_URL", ""),
			TradesExchange: getString("RABBITMQ_TRADES_EXCHANGE", defaultTradesExchange),
		},
	}

	switch cfg.Watermark.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	case BackendPostgres:
		if cfg.Postgres.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN is required for the postgres watermark backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported WATERMARK_BACKEND %q", cfg.Watermark.Backend))
	}

	if len(errs) > 0 {
		return nil, &Error{Err: errors.Join(errs...)}
	}
	return cfg, nil
}

// Error is returned when the configuration is incomplete or invalid.
// It is fatal and must stop the process before any network call.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return "invalid configuration: " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func required(key string, errs *[]error) string {
	value := getString(key, "")
	if value == "" {
		*errs = append(*errs, fmt.Errorf("%s is required", key))
	}
	return value
}

func getString(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("convert %s value %q to int: %w", key, value, err)
	}
	return parsed, nil
}
