package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Log controls where and how the zap logger writes.
type Log struct {
	Release bool   `mapstructure:"release"`
	File    string `mapstructure:"file"`
}

// Telemetry holds the OTLP trace export settings shared by both binaries.
type Telemetry struct {
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Insecure    bool   `mapstructure:"insecure"`
}

// Config is the notification store server's configuration.
type Config struct {
	HTTPAddr            string
	MySQLDSN            string
	RabbitMQURL         string
	RabbitExchange      string
	RabbitQueue         string
	RabbitRoutingKey    string
	RabbitConsumerTag   string
	RabbitPublishPrefix string
	JWTSecret           string
	MaxPageLimit        int
	Log                 Log
	Telemetry           Telemetry
}

func New() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:            ":8080",
		RabbitExchange:      "domain-events",
		RabbitQueue:         "notifications.ingest",
		RabbitRoutingKey:    "notification.*",
		RabbitConsumerTag:   "notification-ingest",
		RabbitPublishPrefix: "notification",
		MaxPageLimit:        100,
		Log: Log{
			Release: os.Getenv("GIN_MODE") == "release",
			File:    "logs/server.log",
		},
		Telemetry: Telemetry{
			ServiceName: "notification-store",
			Insecure:    true,
		},
	}

	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	} else if port := os.Getenv("PORT"); port != "" {
		cfg.HTTPAddr = ":" + port
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.RabbitMQURL = os.Getenv("RABBITMQ_URL")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = DevJWTSecret
	}

	if v := os.Getenv("RABBITMQ_EXCHANGE"); v != "" {
		cfg.RabbitExchange = v
	}
	if v := os.Getenv("RABBITMQ_QUEUE"); v != "" {
		cfg.RabbitQueue = v
	}
	if v := os.Getenv("RABBITMQ_ROUTING_KEY"); v != "" {
		cfg.RabbitRoutingKey = v
	}
	if v := os.Getenv("RABBITMQ_CONSUMER_TAG"); v != "" {
		cfg.RabbitConsumerTag = v
	}
	if v := os.Getenv("RABBITMQ_PUBLISH_PREFIX"); v != "" {
		cfg.RabbitPublishPrefix = v
	}

	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Log.File = v
	}

	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		cfg.Telemetry.ServiceName = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Telemetry.Insecure = b
		}
	}

	if v := os.Getenv("MAX_PAGE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPageLimit = n
		}
	}

	return cfg
}

func LogSettings(cfg *Config) Log {
	return cfg.Log
}

// DevJWTSecret signs tokens when JWT_SECRET is unset. Never use it in
// production.
const DevJWTSecret = "notify-dev-secret"

// ShutdownTimeout bounds graceful shutdown of either binary.
const ShutdownTimeout = 10 * time.Second
