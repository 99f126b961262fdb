package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	AdminAPIToken string

	Telemetry TelemetryConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSQLitePath      string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	AutoMigrate       bool

	Redis     RedisConfig
	Cache     CacheConfig
	Acquirer  AcquirerConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled          bool
	PaymentStatusTTL time.Duration
}

// Simulated mode runs the HTTP client against the in-process simulator;
// simulated-direct calls the simulator without the client's retry and breaker.
const (
	AcquirerModeSimulated       = "simulated"
	AcquirerModeSimulatedDirect = "simulated-direct"
	AcquirerModeHTTP            = "http"
)

type AcquirerConfig struct {
	Mode               string
	BaseURL            string
	PaymentEndpoint    string
	APIKey             string
	Timeout            time.Duration
	RetryMaxAttempts   int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	BreakerFailures    int
	BreakerOpenTimeout time.Duration
	BreakerWindow      time.Duration
	SimulatorConfig    string
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Expiry   time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	PaymentsRate  float64
	PaymentsBurst int
}

const (
	EventsPublisherLog      = "log"
	EventsPublisherRabbitMQ = "rabbitmq"
	EventsPublisherKafka    = "kafka"
)

// TelemetryConfig covers logging and OpenTelemetry export.
type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelEndpoint  string
	OtelProtocol  string
	SamplingRatio float64
}

type EventsConfig struct {
	Publisher        string
	RabbitMQURL      string
	RabbitMQExchange string
	KafkaBrokers     []string
	KafkaTopic       string
	SweepInterval    time.Duration
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "paygate"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		AdminAPIToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),

		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:     strings.ToLower(getenv("LOG_FORMAT", "json")),
			OtelEnabled:   getenvBool("OTEL_ENABLED", true),
			OtelEndpoint:  getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			OtelProtocol:  strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "paygate"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBSQLitePath:      getenv("DATABASE_SQLITE_PATH", "paygate.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		DBConnMaxIdleTime: getenvDuration("DATABASE_CONN_MAX_IDLE_TIME", 5*time.Minute),
		AutoMigrate:       getenvBool("DATABASE_AUTO_MIGRATE", true),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled:          getenvBool("CACHE_ENABLED", true),
			PaymentStatusTTL: getenvDuration("CACHE_PAYMENT_STATUS_TTL", 5*time.Minute),
		},
		Acquirer: AcquirerConfig{
			Mode:               normalizeAcquirerMode(getenv("ACQUIRER_MODE", AcquirerModeSimulated)),
			BaseURL:            strings.TrimSpace(getenv("ACQUIRER_BASE_URL", "http://localhost:8080/api/v1/acquirer")),
			PaymentEndpoint:    strings.TrimSpace(getenv("ACQUIRER_PAYMENT_ENDPOINT", "payments")),
			APIKey:             strings.TrimSpace(getenv("ACQUIRER_API_KEY", "")),
			Timeout:            getenvDuration("ACQUIRER_TIMEOUT", 30*time.Second),
			RetryMaxAttempts:   getenvInt("ACQUIRER_RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:     getenvDuration("ACQUIRER_RETRY_BASE_DELAY", 200*time.Millisecond),
			RetryMaxDelay:      getenvDuration("ACQUIRER_RETRY_MAX_DELAY", 5*time.Second),
			BreakerFailures:    getenvInt("ACQUIRER_BREAKER_FAILURES", 5),
			BreakerOpenTimeout: getenvDuration("ACQUIRER_BREAKER_OPEN_TIMEOUT", 30*time.Second),
			BreakerWindow:      getenvDuration("ACQUIRER_BREAKER_WINDOW", 60*time.Second),
			SimulatorConfig:    strings.TrimSpace(getenv("ACQUIRER_SIMULATOR_CONFIG", "")),
		},
		JWT: JWTConfig{
			Secret:   strings.TrimSpace(getenv("JWT_SECRET", "")),
			Issuer:   getenv("JWT_ISSUER", "paygate"),
			Audience: getenv("JWT_AUDIENCE", "paygate-merchants"),
			Expiry:   getenvDuration("JWT_EXPIRY", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			PaymentsRate:  getenvFloat("RATE_LIMIT_PAYMENTS_RATE", 10),
			PaymentsBurst: getenvInt("RATE_LIMIT_PAYMENTS_BURST", 20),
		},
		Events: EventsConfig{
			Publisher:        strings.ToLower(getenv("EVENTS_PUBLISHER", EventsPublisherLog)),
			RabbitMQURL:      strings.TrimSpace(getenv("EVENTS_RABBITMQ_URL", "")),
			RabbitMQExchange: getenv("EVENTS_RABBITMQ_EXCHANGE", "payment_events"),
			KafkaBrokers:     splitList(getenv("EVENTS_KAFKA_BROKERS", "")),
			KafkaTopic:       getenv("EVENTS_KAFKA_TOPIC", "payment-events"),
			SweepInterval:    getenvDuration("EVENTS_SWEEP_INTERVAL", 30*time.Second),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func normalizeAcquirerMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case AcquirerModeHTTP:
		return AcquirerModeHTTP
	case AcquirerModeSimulatedDirect:
		return AcquirerModeSimulatedDirect
	default:
		return AcquirerModeSimulated
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go duration strings ("30s") or plain seconds ("30").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
