package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fjod/pawmart/internal/repository"
)

type Config struct {
	HTTPPort       string
	GRPCPort       string
	RequestTimeout time.Duration
	LogLevel       string

	DB repository.Credentials

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CatalogTTL    time.Duration

	MongoURI string
	MongoDB  string

	KafkaBrokers   []string
	KafkaTopic     string
	KafkaGroupID   string
	OutboxInterval time.Duration
	OutboxBatch    int

	JWTSecret string

	PaymentGatewayURL     string
	PaymentAPIKey         string
	PaymentWebhookSecret  string
	PaymentTimeout        time.Duration
	WebhookTolerance      time.Duration
	PaymentSuccessURL     string
	PaymentCancelURL      string
	Currency              string
	AllowBackorder        bool
	HealthCheckInterval   time.Duration
	ShutdownGraceDuration time.Duration
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, strconv.Itoa(defaultValue))
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, defaultValue.String())
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := getEnv(key, strconv.FormatBool(defaultValue))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// Load reads the environment, after applying a .env file when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	var err error
	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "50051"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "pawmart"),

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "order-events"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "pawmart-notifier"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		PaymentGatewayURL:    getEnv("PAYMENT_GATEWAY_URL", "http://localhost:8090"),
		PaymentAPIKey:        getEnv("PAYMENT_API_KEY", ""),
		PaymentWebhookSecret: getEnv("PAYMENT_WEBHOOK_SECRET", ""),
		PaymentSuccessURL:    getEnv("PAYMENT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		PaymentCancelURL:     getEnv("PAYMENT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
		Currency:             getEnv("CURRENCY", "usd"),
	}

	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	cfg.DB = repository.Credentials{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              dbPort,
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "pawmart"),
		SSLMode:           getEnv("DB_SSLMODE", "disable"),
		MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
	}

	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.OutboxBatch, err = getEnvInt("OUTBOX_BATCH_SIZE", 100); err != nil {
		return nil, err
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"REQUEST_TIMEOUT", 10 * time.Second, &cfg.RequestTimeout},
		{"CATALOG_CACHE_TTL", 10 * time.Minute, &cfg.CatalogTTL},
		{"OUTBOX_INTERVAL", time.Second, &cfg.OutboxInterval},
		{"PAYMENT_TIMEOUT", 5 * time.Second, &cfg.PaymentTimeout},
		{"WEBHOOK_TOLERANCE", 5 * time.Minute, &cfg.WebhookTolerance},
		{"HEALTH_CHECK_INTERVAL", 10 * time.Second, &cfg.HealthCheckInterval},
		{"SHUTDOWN_GRACE", 5 * time.Second, &cfg.ShutdownGraceDuration},
	}
	for _, d := range durations {
		if *d.dest, err = getEnvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.AllowBackorder, err = getEnvBool("ALLOW_BACKORDER", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports settings that serve cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.PaymentWebhookSecret == "" {
		return fmt.Errorf("PAYMENT_WEBHOOK_SECRET is required")
	}
	return nil
}
