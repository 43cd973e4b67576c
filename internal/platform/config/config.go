// Package config builds runtime configuration from environment variables so
// main stays lean. Tier pricing uses the delimited-vector format inherited
// from the deployment templates: comma-separated per-tier values, with
// pipe-separated feature lists inside a tier.
package config

import (
	"os"
	"strconv"
	"time"

	liststrings "orgkit/pkg/platform/strings"
)

// Config is the full runtime configuration.
type Config struct {
	Addr     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers    []string
	KafkaEventTopic string

	AdminToken     string
	JWTSecret      string
	AllowedOrigins []string

	Paddle  Paddle
	Pricing Pricing

	ShutdownTimeout time.Duration
}

// Paddle holds payment-provider settings.
type Paddle struct {
	APIURL        string
	APIKey        string
	WebhookSecret string
}

// Pricing holds the raw tier vectors; internal/pricing assembles them.
type Pricing struct {
	Names          string
	Prices         string
	PriceIDs       string
	ProductIDs     string
	Descriptions   string
	Features       string
	PopularTier    string
	CommonFeatures string
}

// FromEnv reads configuration from the environment, applying development
// defaults where safe.
func FromEnv() Config {
	return Config{
		Addr:     getEnv("ORGKIT_ADDR", ":8080"),
		LogLevel: getEnv("ORGKIT_LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		KafkaBrokers:    liststrings.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
		KafkaEventTopic: getEnv("KAFKA_EVENT_TOPIC", "orgkit.billing.events"),

		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		AllowedOrigins: liststrings.SplitList(getEnv("ALLOWED_ORIGINS", "*"), ","),

		Paddle: Paddle{
			APIURL:        getEnv("PADDLE_API_URL", "https://api.paddle.com"),
			APIKey:        os.Getenv("PADDLE_API_KEY"),
			WebhookSecret: os.Getenv("PADDLE_WEBHOOK_SECRET"),
		},

		Pricing: Pricing{
			Names:          os.Getenv("TIERS_NAMES"),
			Prices:         os.Getenv("TIERS_PRICES"),
			PriceIDs:       os.Getenv("TIERS_PRICEID"),
			ProductIDs:     os.Getenv("TIERS_PRODUCTIDS"),
			Descriptions:   os.Getenv("TIERS_DESCRIPTIONS"),
			Features:       os.Getenv("TIERS_FEATURES"),
			PopularTier:    os.Getenv("POPULAR_TIER"),
			CommonFeatures: os.Getenv("COMMON_FEATURES"),
		},

		ShutdownTimeout: getDuration("ORGKIT_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return fallback
}
