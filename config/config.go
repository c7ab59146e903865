package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	App            AppConfig
	HTTP           ServerConfig
	GRPC           ServerConfig
	Log            LogConfig
	Stripe         StripeConfig
	Payments       PaymentsConfig
	TransactionLog TransactionLogConfig
	MySQL          MySQLConfig
	Jobs           JobsConfig
}

type AppConfig struct {
	ServiceName        string
	Environment        string
	PublicDir          string
	CORSAllowedOrigins []string
}

// IsProduction reports whether error details must be withheld from clients.
func (c AppConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

type ServerConfig struct {
	Host string
	Port string
}

type LogConfig struct {
	Level string
}

type StripeConfig struct {
	SecretKey                 string
	PublishableKey            string
	WebhookSecret             string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

// Configured reports whether outbound provider calls can be made.
func (c StripeConfig) Configured() bool {
	return strings.TrimSpace(c.SecretKey) != ""
}

type PaymentsConfig struct {
	Currency        string
	ProviderTimeout time.Duration
}

type TransactionLogConfig struct {
	Path string
}

// MySQLConfig configures the optional mirror of the transaction log. An empty
// DSN disables the mirror.
type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type JobsConfig struct {
	ReconcileStaleAfter time.Duration
	ReconcileInterval   time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	environment := strings.ToLower(getEnv("APP_ENV", EnvDevelopment))
	if environment != EnvDevelopment && environment != EnvProduction {
		return nil, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, environment)
	}

	defaultOrigins := ""
	if environment == EnvDevelopment {
		defaultOrigins = "*"
	}

	return &Config{
		App: AppConfig{
			ServiceName:        getEnv("APP_SERVICE_NAME", "payment-intents-service"),
			Environment:        environment,
			PublicDir:          getEnv("PUBLIC_DIR", ""),
			CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", defaultOrigins)),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", getEnv("PORT", "3000")),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: os.Getenv("GRPC_PORT"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Stripe: StripeConfig{
			SecretKey:                 getEnv("STRIPE_SECRET_KEY", ""),
			PublishableKey:            getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			WebhookSecret:             getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SignatureToleranceSeconds: int64(getIntEnv("STRIPE_SIGNATURE_TOLERANCE_SECONDS", 300)),
			HTTPTimeout:               getSecondsEnv("STRIPE_HTTP_TIMEOUT_SECONDS", 10*time.Second),
		},
		Payments: PaymentsConfig{
			Currency:        strings.ToLower(getEnv("PAYMENTS_CURRENCY", "eur")),
			ProviderTimeout: getSecondsEnv("PAYMENTS_PROVIDER_TIMEOUT_SECONDS", 15*time.Second),
		},
		TransactionLog: TransactionLogConfig{
			Path: getEnv("TRANSACTION_LOG_PATH", "transactions.log"),
		},
		MySQL: MySQLConfig{
			DSN:             getEnv("TRANSACTION_LOG_MYSQL_DSN", ""),
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Jobs: JobsConfig{
			ReconcileStaleAfter: getMinutesEnv("RECONCILE_STALE_AFTER_MINUTES", 30*time.Minute),
			ReconcileInterval:   getMinutesEnv("RECONCILE_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
