// shared/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
)

// CommonConfig holds infrastructure details used by every service:
// the Postgres store, the Kafka event stream and the RabbitMQ notification queue.
type CommonConfig struct {
	//Database (PostgreSQL) config
	DB_USER     string
	DB_PASSWORD string
	DB_NAME     string
	DB_HOST     string
	DB_PORT     string
	DB_SSLMODE  string
	//Kafka config
	KAFKA_TOPIC   string
	KAFKA_BROKERS string // comma separated
	//RabbitMQ config
	RABBITMQ_USER     string
	RABBITMQ_PASSWORD string
	RABBITMQ_HOST     string
	RABBITMQ_PORT     string
	RABBITMQ_QUEUE    string
	//Logging
	LOG_LEVEL  string
	LOG_FORMAT string
}

// LoadCommonConfig returns the shared infrastructure config read from the environment.
func LoadCommonConfig() *CommonConfig {
	return &CommonConfig{
		DB_USER:     os.Getenv("DB_USER"),
		DB_PASSWORD: os.Getenv("DB_PASSWORD"),
		DB_HOST:     os.Getenv("DB_HOST"),
		DB_PORT:     os.Getenv("DB_PORT"),
		DB_NAME:     os.Getenv("DB_NAME"),
		DB_SSLMODE:  os.Getenv("DB_SSLMODE"),

		KAFKA_TOPIC:   os.Getenv("KAFKA_TOPIC"),
		KAFKA_BROKERS: os.Getenv("KAFKA_BROKERS"),

		RABBITMQ_USER:     os.Getenv("RABBITMQ_USER"),
		RABBITMQ_PASSWORD: os.Getenv("RABBITMQ_PASSWORD"),
		RABBITMQ_HOST:     os.Getenv("RABBITMQ_HOST"),
		RABBITMQ_PORT:     os.Getenv("RABBITMQ_PORT"),
		RABBITMQ_QUEUE:    os.Getenv("RABBITMQ_QUEUE"),

		LOG_LEVEL:  os.Getenv("LOG_LEVEL"),
		LOG_FORMAT: os.Getenv("LOG_FORMAT"),
	}
}

// HasDatabase reports whether enough Postgres settings are present to open a connection.
// Without them the services fall back to in-memory stores.
func (c *CommonConfig) HasDatabase() bool {
	return c.DB_HOST != "" && c.DB_NAME != ""
}

// GetDBURL formats the config into a PostgreSQL connection string
func (c *CommonConfig) GetDBURL() string {
	sslmode := c.DB_SSLMODE
	if sslmode == "" {
		sslmode = "disable"
	}
	port := c.DB_PORT
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.DB_USER, c.DB_PASSWORD, c.DB_HOST, port, c.DB_NAME, sslmode)
}

// KafkaBrokers splits KAFKA_BROKERS into a list, dropping blanks.
func (c *CommonConfig) KafkaBrokers() []string {
	var out []string
	for _, b := range strings.Split(c.KAFKA_BROKERS, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// GetRabbitMQURL formats the config into a RabbitMQ connection string.
// Returns "" when no host is configured so callers can skip the notifier.
func (c *CommonConfig) GetRabbitMQURL() string {
	if c.RABBITMQ_HOST == "" {
		return ""
	}
	port := c.RABBITMQ_PORT
	if port == "" {
		port = "5672"
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/",
		c.RABBITMQ_USER, c.RABBITMQ_PASSWORD, c.RABBITMQ_HOST, port)
}

// NotificationQueue is the queue the email collaborator consumes from.
func (c *CommonConfig) NotificationQueue() string {
	if c.RABBITMQ_QUEUE == "" {
		return "settlement.notifications"
	}
	return c.RABBITMQ_QUEUE
}
