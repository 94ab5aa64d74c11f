// Package config provides runtime configuration for the stocksync services.
// Every knob is read from the environment and falls back to a hard-coded
// default, so both services start against a local broker with no setup.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultQueueName = "estoque_eventos"

	DefaultConnectAttempts = 5
	DefaultConnectDelay    = 5 * time.Second
	DefaultPublishAttempts = 5
	DefaultPublishDelay    = 3 * time.Second
)

// Config groups the settings shared by the sales and stock services. Each
// binary only uses the keys that are relevant to it.
type Config struct {
	// RabbitMQ connection settings.
	RabbitMQHost     string
	RabbitMQPort     int
	RabbitMQUser     string
	RabbitMQPassword string

	// QueueName is the durable queue declared by both publisher and consumer.
	QueueName string

	// ConnectAttempts bounds the connect retries; ConnectDelay is the fixed
	// inter-attempt delay. Retries use a fixed delay, not exponential backoff.
	ConnectAttempts int
	ConnectDelay    time.Duration

	// PublishAttempts bounds per-message publish retries with PublishDelay
	// between attempts.
	PublishAttempts int
	PublishDelay    time.Duration

	// HTTPAddr is the listen address of the service's HTTP API.
	HTTPAddr string

	// Metrics configuration.
	MetricsEnabled bool
	MetricsPort    int

	// SQLitePath is the product database file used by the stock service.
	// Use ":memory:" for an in-memory database (useful for testing).
	SQLitePath string

	// StockServiceURL is the base URL the sales service uses to check
	// product availability before accepting an order.
	StockServiceURL string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvs(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec < 0 {
		return def
	}
	return time.Duration(sec) * time.Second
}

// Load collects configuration from the environment with defaults.
func Load() Config {
	return Config{
		RabbitMQHost:     getenv("RABBITMQ_HOST", "localhost"),
		RabbitMQPort:     atoienv("RABBITMQ_PORT", 5672),
		RabbitMQUser:     getenv("RABBITMQ_USER", "guest"),
		RabbitMQPassword: getenv("RABBITMQ_PASSWORD", "guest"),
		QueueName:        getenv("RABBITMQ_QUEUE", DefaultQueueName),
		ConnectAttempts:  atoienv("CONNECT_ATTEMPTS", DefaultConnectAttempts),
		ConnectDelay:     durenvs("CONNECT_DELAY_SECONDS", DefaultConnectDelay),
		PublishAttempts:  atoienv("PUBLISH_ATTEMPTS", DefaultPublishAttempts),
		PublishDelay:     durenvs("PUBLISH_DELAY_SECONDS", DefaultPublishDelay),
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		MetricsEnabled:   getenv("METRICS_ENABLED", "true") == "true",
		MetricsPort:      atoienv("METRICS_PORT", 9090),
		SQLitePath:       getenv("SQLITE_PATH", "estoque.db"),
		StockServiceURL:  getenv("STOCK_SERVICE_URL", "http://localhost:8081"),
	}
}

// AMQPURL builds the broker URL from the individual connection settings.
func (c Config) AMQPURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.RabbitMQUser, c.RabbitMQPassword),
		Host:   fmt.Sprintf("%s:%d", c.RabbitMQHost, c.RabbitMQPort),
		Path:   "/",
	}
	return u.String()
}

func (c Config) String() string {
	// Copy so the original keeps its credentials.
	redacted := c
	if redacted.RabbitMQPassword != "" {
		redacted.RabbitMQPassword = "***REDACTED***"
	}
	// Use a type alias to avoid infinite recursion when printing.
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(redacted))
}

// Validate checks that the configuration is usable. Returns an error
// describing every invalid field.
func (c Config) Validate() error {
	var errs []error

	if c.RabbitMQHost == "" {
		errs = append(errs, errors.New("rabbitmq: host is required"))
	}
	if c.RabbitMQPort <= 0 || c.RabbitMQPort > 65535 {
		errs = append(errs, fmt.Errorf("rabbitmq: invalid port %d", c.RabbitMQPort))
	}
	if c.QueueName == "" {
		errs = append(errs, errors.New("rabbitmq: queue name is required"))
	}
	if c.ConnectAttempts <= 0 {
		errs = append(errs, errors.New("connect: attempts must be positive"))
	}
	if c.PublishAttempts <= 0 {
		errs = append(errs, errors.New("publish: attempts must be positive"))
	}
	if c.ConnectDelay < 0 {
		errs = append(errs, errors.New("connect: delay cannot be negative"))
	}
	if c.PublishDelay < 0 {
		errs = append(errs, errors.New("publish: delay cannot be negative"))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics: invalid port %d", c.MetricsPort))
	}

	return errors.Join(errs...)
}
