package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Addr                string
	Environment         string
	LogLevel            string
	StoreDriver         string
	DatabaseURL         string
	SQLitePath          string
	MigrationsDir       string
	RunMigrations       bool
	JWTSecret           string
	RedisAddr           string
	IdempotencyTTL      time.Duration
	KafkaBrokers        []string
	KafkaAuditTopic     string
	MaxBodyBytes        int64
	RateLimitPerMinute  int
	EnforceSelfApproval bool
	PayDateOffset       time.Duration
	ShutdownTimeout     time.Duration
	MetricsEnabled      bool
}

func Load() Config {
	return Config{
		Addr:                getEnv("APP_ADDR", ":8080"),
		Environment:         getEnv("APP_ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		SQLitePath:          getEnv("SQLITE_PATH", "hrpay.db"),
		MigrationsDir:       getEnv("MIGRATIONS_DIR", "migrations"),
		RunMigrations:       getEnvBool("RUN_MIGRATIONS", true),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		IdempotencyTTL:      getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		KafkaBrokers:        getEnvList("KAFKA_BROKERS"),
		KafkaAuditTopic:     getEnv("KAFKA_AUDIT_TOPIC", "hrpay.audit"),
		MaxBodyBytes:        int64(getEnvInt("MAX_BODY_BYTES", 1048576)),
		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		EnforceSelfApproval: getEnvBool("PAYROLL_ENFORCE_SELF_APPROVAL", true),
		PayDateOffset:       getEnvDuration("PAYROLL_PAY_DATE_OFFSET", 7*24*time.Hour),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is sqlite")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, postgres, sqlite")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Environment == "production" {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
		}
		if c.StoreDriver == StoreMemory {
			return fmt.Errorf("STORE_DRIVER memory is not allowed in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.PayDateOffset < 0 {
		return fmt.Errorf("PAYROLL_PAY_DATE_OFFSET cannot be negative")
	}
	return nil
}
