package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Auth              AuthConfig
	Redis             RedisConfig
	Frontend          FrontendConfig
	Flutterwave       FlutterwaveConfig
	Paystack          PaystackConfig
	Mail              MailConfig
	Payments          PaymentsConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

// AuthConfig configures bearer-token verification for admin endpoints.
type AuthConfig struct {
	JWTSecret string
	AdminRole string
}

// RedisConfig is optional. With an empty Addr the per-order lock stays in-process.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	LockTTL   time.Duration
	KeyPrefix string
}

type FrontendConfig struct {
	BaseURL string
}

type FlutterwaveConfig struct {
	PublicKey   string
	SecretKey   string
	SecretHash  string
	BaseURL     string
	HTTPTimeout time.Duration
}

type PaystackConfig struct {
	PublicKey     string
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
}

type MailConfig struct {
	RelayURL      string
	APIKey        string
	From          string
	HTTPTimeout   time.Duration
	MaxAttempts   int32
	RetryInterval time.Duration
}

type PaymentsConfig struct {
	DefaultCurrency     string
	PendingTimeout      time.Duration
	ReconcileStaleAfter time.Duration
	JobBatchSize        int32
}

type JobsConfig struct {
	ReconcileInterval     time.Duration
	MailDispatchInterval  time.Duration
	ExpirePendingInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "checkout-payments-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			AdminRole: getEnv("AUTH_ADMIN_ROLE", "ADMIN"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getIntEnv("REDIS_DB", 0),
			LockTTL:   getSecondsEnv("REDIS_LOCK_TTL_SECONDS", 30*time.Second),
			KeyPrefix: getEnv("REDIS_LOCK_PREFIX", "payments:lock:"),
		},
		Frontend: FrontendConfig{
			BaseURL: strings.TrimRight(getEnv("FRONTEND_URL", ""), "/"),
		},
		Flutterwave: FlutterwaveConfig{
			PublicKey:   getEnv("FLUTTERWAVE_PUBLIC_KEY", ""),
			SecretKey:   getEnv("FLUTTERWAVE_SECRET_KEY", ""),
			SecretHash:  getEnv("FLUTTERWAVE_SECRET_HASH", ""),
			BaseURL:     getEnv("FLUTTERWAVE_BASE_URL", ""),
			HTTPTimeout: getSecondsEnv("FLUTTERWAVE_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		Paystack: PaystackConfig{
			PublicKey:     getEnv("PAYSTACK_PUBLIC_KEY", ""),
			SecretKey:     getEnv("PAYSTACK_SECRET_KEY", ""),
			WebhookSecret: getEnv("PAYSTACK_WEBHOOK_SECRET", ""),
			BaseURL:       getEnv("PAYSTACK_BASE_URL", ""),
			HTTPTimeout:   getSecondsEnv("PAYSTACK_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		Mail: MailConfig{
			RelayURL:      getEnv("MAIL_RELAY_URL", ""),
			APIKey:        getEnv("MAIL_RELAY_API_KEY", ""),
			From:          getEnv("MAIL_FROM", "orders@localhost"),
			HTTPTimeout:   getSecondsEnv("MAIL_HTTP_TIMEOUT_SECONDS", 10*time.Second),
			MaxAttempts:   int32(getIntEnv("MAIL_MAX_ATTEMPTS", 5)),
			RetryInterval: getMinutesEnv("MAIL_RETRY_INTERVAL_MINUTES", 5*time.Minute),
		},
		Payments: PaymentsConfig{
			DefaultCurrency:     strings.ToUpper(getEnv("PAYMENTS_DEFAULT_CURRENCY", "NGN")),
			PendingTimeout:      getMinutesEnv("PAYMENTS_PENDING_TIMEOUT_MINUTES", 24*time.Hour),
			ReconcileStaleAfter: getMinutesEnv("PAYMENTS_RECONCILE_STALE_AFTER_MINUTES", 15*time.Minute),
			JobBatchSize:        int32(getIntEnv("PAYMENTS_JOB_BATCH_SIZE", 100)),
		},
		Jobs: JobsConfig{
			ReconcileInterval:     getMinutesEnv("PAYMENTS_RECONCILE_INTERVAL_MINUTES", 2*time.Minute),
			MailDispatchInterval:  getMinutesEnv("PAYMENTS_MAIL_DISPATCH_INTERVAL_MINUTES", time.Minute),
			ExpirePendingInterval: getMinutesEnv("PAYMENTS_EXPIRE_PENDING_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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
