package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NewRelic   NewRelicConfig
	Gateway    GatewayConfig
	Kafka      KafkaConfig
	Commission CommissionConfig
	Reconciler ReconcilerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// AutoMigrate applies the embedded schema migrations at startup.
	AutoMigrate bool
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// GatewayConfig holds payment gateway configuration. SecretKey is read once
// here and handed only to the gateway client and the webhook verifier.
type GatewayConfig struct {
	BaseURL          string
	SecretKey        string
	APIVersion       string
	Currency         string
	Timeout          time.Duration
	RetryBackoff     time.Duration
	ReturnBaseURL    string
	WebhookTolerance time.Duration
	QRExpiry         time.Duration
}

// KafkaConfig holds settlement event publishing configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// CommissionConfig holds commission defaults.
type CommissionConfig struct {
	DefaultRate decimal.Decimal
}

// ReconcilerConfig holds settings for the stale payment reconciler.
type ReconcilerConfig struct {
	Enabled    bool
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
	Workers    int
	LockTTL    time.Duration
}

// Load loads configuration from environment variables. A .env file in the
// working directory is applied first when present; real environment
// variables take precedence over it.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration overrides from .env")
	}

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			ReadTimeout:    getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			AllowedOrigins: getListEnv("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "rental"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			AutoMigrate:     getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "rental-settlement"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Gateway: GatewayConfig{
			BaseURL:          getEnv("GATEWAY_BASE_URL", "https://api.paymongo.com/v1"),
			SecretKey:        getEnv("GATEWAY_SECRET_KEY", ""),
			APIVersion:       getEnv("GATEWAY_API_VERSION", "2024-06-01"),
			Currency:         getEnv("GATEWAY_CURRENCY", "PHP"),
			Timeout:          getDurationEnv("GATEWAY_TIMEOUT", 15*time.Second),
			RetryBackoff:     getDurationEnv("GATEWAY_RETRY_BACKOFF", 500*time.Millisecond),
			ReturnBaseURL:    getEnv("GATEWAY_RETURN_BASE_URL", "http://localhost:8080"),
			WebhookTolerance: getDurationEnv("GATEWAY_WEBHOOK_TOLERANCE", 5*time.Minute),
			QRExpiry:         getDurationEnv("GATEWAY_QR_EXPIRY", 30*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: getListEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_SETTLEMENT_TOPIC", "settlement.events"),
			Enabled: getBoolEnv("KAFKA_ENABLED", false),
		},
		Commission: CommissionConfig{
			DefaultRate: getDecimalEnv("COMMISSION_DEFAULT_RATE", decimal.NewFromInt(10)),
		},
		Reconciler: ReconcilerConfig{
			Enabled:    getBoolEnv("RECONCILER_ENABLED", true),
			Interval:   getDurationEnv("RECONCILER_INTERVAL", time.Minute),
			StaleAfter: getDurationEnv("RECONCILER_STALE_AFTER", 5*time.Minute),
			BatchSize:  getIntEnv("RECONCILER_BATCH_SIZE", 50),
			Workers:    getIntEnv("RECONCILER_WORKERS", 5),
			LockTTL:    getDurationEnv("RECONCILER_LOCK_TTL", 30*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getDecimalEnv(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
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
