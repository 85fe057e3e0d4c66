package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting, read once at startup.
type Config struct {
	DBSource       string
	RedisAddr      string
	KafkaBrokers   []string
	KafkaTopic     string
	JWTSecret      string
	Port           string
	Env            string
	IdempotencyTTL time.Duration
}

// Load reads configuration from the environment. A .env file is honored
// when present but never required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbSource := os.Getenv("DB_SOURCE")
	if dbSource == "" {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}

	jwtSecret := os.Getenv("AUTH_JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET environment variable is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	redisAddr := os.Getenv("REDIS_ADDR")

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "transfer_completed"
	}

	ttl := 48 * time.Hour
	if raw := os.Getenv("IDEMPOTENCY_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL %q: %w", raw, err)
		}
		ttl = parsed
	}

	return &Config{
		DBSource:       dbSource,
		RedisAddr:      redisAddr,
		KafkaBrokers:   brokers,
		KafkaTopic:     topic,
		JWTSecret:      jwtSecret,
		Port:           port,
		Env:            env,
		IdempotencyTTL: ttl,
	}, nil
}
