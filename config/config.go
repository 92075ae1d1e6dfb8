package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	App      AppConfig
	Auth     AuthConfig
	Pricing  PricingConfig
	Render   RenderConfig
	Portal   PortalConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins []string
}

type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AppConfig struct {
	Environment string
	LogLevel    string
	Version     string
	ServiceName string
}

type AuthConfig struct {
	// JWTSecret enables bearer token verification. Empty means the
	// X-User-Id header is trusted (development only).
	JWTSecret string
}

// PricingConfig controls the markup percentage bound. Without AllowPremium
// percentages are limited to [0, 1].
type PricingConfig struct {
	AllowPremium  bool
	MaxPercentage float64
}

type RenderConfig struct {
	CacheTTL           time.Duration
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// PortalConfig drives traveler invitations. BaseURL is the public address
// of this API; links take the form {BaseURL}/portal/{token}/page.
type PortalConfig struct {
	BaseURL      string
	InviteTTL    time.Duration
	MaxInviteTTL time.Duration
}

type NotifyConfig struct {
	EmailAPIURL    string
	EmailAPIKey    string
	EmailFrom      string
	WhatsAppAPIURL string
	WhatsAppToken  string
	RetrySchedule  string
	MaxAttempts    int
	// EnqueueTimeout bounds how long a request waits to hand off an event.
	EnqueueTimeout time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			DSN:      getEnv("DB_DSN", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "tourplanner"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			ServiceName: getEnv("SERVICE_NAME", "tourplanner-backend"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Pricing: PricingConfig{
			AllowPremium:  getEnvAsBool("PRICING_ALLOW_PREMIUM", false),
			MaxPercentage: getEnvAsFloat("PRICING_MAX_PERCENTAGE", 1),
		},
		Render: RenderConfig{
			CacheTTL:           time.Duration(getEnvAsInt("RENDER_CACHE_TTL_SECONDS", 86400)) * time.Second,
			RateLimitPerSecond: getEnvAsFloat("RENDER_RATE_LIMIT", 2),
			RateLimitBurst:     getEnvAsInt("RENDER_RATE_BURST", 5),
		},
		Portal: PortalConfig{
			BaseURL:      getEnv("PORTAL_BASE_URL", "http://localhost:8080/api/v1"),
			InviteTTL:    time.Duration(getEnvAsInt("PORTAL_INVITE_TTL_HOURS", 7*24)) * time.Hour,
			MaxInviteTTL: time.Duration(getEnvAsInt("PORTAL_MAX_INVITE_TTL_HOURS", 30*24)) * time.Hour,
		},
		Notify: NotifyConfig{
			EmailAPIURL:    getEnv("EMAIL_API_URL", ""),
			EmailAPIKey:    getEnv("EMAIL_API_KEY", ""),
			EmailFrom:      getEnv("EMAIL_FROM", "no-reply@tourplanner.local"),
			WhatsAppAPIURL: getEnv("WHATSAPP_API_URL", ""),
			WhatsAppToken:  getEnv("WHATSAPP_TOKEN", ""),
			RetrySchedule:  getEnv("NOTIFY_RETRY_SCHEDULE", "0 */5 * * * *"),
			MaxAttempts:    getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 5),
			EnqueueTimeout: time.Duration(getEnvAsInt("NOTIFY_ENQUEUE_TIMEOUT_MS", 2000)) * time.Millisecond,
		},
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = cfg.Database.URL()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.DSN == "" && c.Database.Host == "" {
		return fmt.Errorf("DB_DSN or DB_HOST is required")
	}

	if c.Pricing.AllowPremium && c.Pricing.MaxPercentage < 1 {
		return fmt.Errorf("PRICING_MAX_PERCENTAGE must be >= 1 when premium markup is allowed")
	}

	if c.Portal.InviteTTL <= 0 || c.Portal.MaxInviteTTL < c.Portal.InviteTTL {
		return fmt.Errorf("PORTAL_INVITE_TTL_HOURS must be positive and not above PORTAL_MAX_INVITE_TTL_HOURS")
	}

	if c.Notify.MaxAttempts < 1 {
		return fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be positive")
	}

	return nil
}

// URL builds a pgx connection string from the discrete settings.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid number for %s, using default: %g", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean for %s, using default: %t", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
