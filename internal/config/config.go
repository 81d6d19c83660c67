// Package config provides environment configuration for the chat gateway.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingBotToken is returned by Validate when no bot token is configured.
var ErrMissingBotToken = errors.New("TELEGRAM_BOT_TOKEN is not set")

// Cache drivers.
const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Platform settings
	PlatformName    string
	BotToken        string
	WebhookURL      string
	WebhookSecret   string
	UseWebhook      bool
	AllowedOrigins  []string
	PlatformTimeout time.Duration

	// Backend settings
	BackendURL     string
	BackendAPIKey  string
	BackendTimeout time.Duration
	NotifyTimeout  time.Duration

	// Cache settings
	CacheDriver   string
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Per-conversation rate limiting
	RateLimitMessages int
	RateLimitWindow   time.Duration
	TenantCacheTTL    time.Duration

	// Agent send endpoint
	SendJWTSecret         string
	SendRateLimitRequests int
	SendRateLimitWindow   time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8081"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),

		// Platform
		PlatformName:    strings.ToUpper(getEnv("PLATFORM_NAME", "TELEGRAM")),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:      getEnv("TELEGRAM_WEBHOOK_URL", ""),
		WebhookSecret:   getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		UseWebhook:      getBoolEnv("USE_WEBHOOK", true),
		AllowedOrigins:  getListEnv("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://*"}),
		PlatformTimeout: getDurationEnv("PLATFORM_TIMEOUT", 10*time.Second),

		// Backend
		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", "http://backend:8080"), "/"),
		BackendAPIKey:  getEnv("BACKEND_API_KEY", ""),
		BackendTimeout: getDurationEnv("BACKEND_TIMEOUT", 30*time.Second),
		NotifyTimeout:  getDurationEnv("NOTIFY_TIMEOUT", 5*time.Second),

		// Cache
		CacheDriver:   strings.ToLower(getEnv("CACHE_DRIVER", CacheDriverRedis)),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getIntEnv("REDIS_PORT", 6379),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		// Rate limiting
		RateLimitMessages: getIntEnv("RATE_LIMIT_MESSAGES", 10),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", 60*time.Second),
		TenantCacheTTL:    getDurationEnv("TENANT_CACHE_TTL", 300*time.Second),

		// Send endpoint
		SendJWTSecret:         getEnv("SEND_JWT_SECRET", ""),
		SendRateLimitRequests: getIntEnv("SEND_RATE_LIMIT_REQUESTS", 120),
		SendRateLimitWindow:   getDurationEnv("SEND_RATE_LIMIT_WINDOW", time.Minute),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks that the loaded configuration can run the gateway.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return ErrMissingBotToken
	}
	if c.RateLimitMessages <= 0 {
		return fmt.Errorf("RATE_LIMIT_MESSAGES must be positive, got %d", c.RateLimitMessages)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimitWindow)
	}
	if c.TenantCacheTTL <= 0 {
		return fmt.Errorf("TENANT_CACHE_TTL must be positive, got %s", c.TenantCacheTTL)
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive, got %s", c.BackendTimeout)
	}
	if c.PlatformTimeout <= 0 {
		return fmt.Errorf("PLATFORM_TIMEOUT must be positive, got %s", c.PlatformTimeout)
	}
	switch c.CacheDriver {
	case CacheDriverRedis, CacheDriverMemory:
	default:
		return fmt.Errorf("unknown CACHE_DRIVER %q", c.CacheDriver)
	}
	return nil
}

// RedisAddr returns the host:port address of the cache.
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

// WebhookConfigured reports whether the platform webhook should be registered on start.
func (c *Config) WebhookConfigured() bool {
	return c.UseWebhook && c.WebhookURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90s") and bare integers as seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
