// Package config loads the chat client configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the chat client configuration.
type Config struct {
	// Backend API
	APIBase            string
	HTTPTimeout        time.Duration
	InsecureSkipVerify bool

	// Local gateway
	Port        string
	DebugRoutes bool

	// Cache
	ChatsStaleAfter time.Duration

	// Events and tracing
	AMQPURL      string
	AMQPExchange string
	OTLPEndpoint string
	ServiceName  string
	Environment  string

	// Logging
	LogLevel string
}

// Load reads a .env file when present and then the environment.
func Load(logger logrus.FieldLogger) *Config {
	if err := godotenv.Load(); err != nil && logger != nil {
		logger.WithError(err).Debug("no .env file loaded, using environment only")
	}

	return &Config{
		APIBase:            getEnv("API_BASE", "https://0.0.0.0:8443/api/v1"),
		HTTPTimeout:        getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		InsecureSkipVerify: getEnvBool("INSECURE_SKIP_VERIFY", false),
		Port:               getEnv("PORT", "8086"),
		DebugRoutes:        getEnvBool("DEBUG_ROUTES", false),
		ChatsStaleAfter:    getEnvDuration("CHATS_STALE_AFTER", 5*time.Minute),
		AMQPURL:            getEnv("AMQP_URL", ""),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "chat_client.events"),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:        getEnv("SERVICE_NAME", "chat-client"),
		Environment:        getEnv("ENVIRONMENT", "local"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
