// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	GatewayAddr string `envconfig:"GATEWAY_ADDR" default:":8080"`
	APIAddr     string `envconfig:"API_ADDR" default:":8081"`

	ScyllaHosts    []string `envconfig:"SCYLLA_HOSTS" default:"localhost:9042"`
	ScyllaKeyspace string   `envconfig:"SCYLLA_KEYSPACE" default:"chat"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`

	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS" default:"localhost:19092"`
	KafkaNotifyTopic string   `envconfig:"KAFKA_NOTIFY_TOPIC" default:"chat-notifications"`

	JWTSecret string        `envconfig:"JWT_SECRET" default:"my_secret_key"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	TypingTimeout time.Duration `envconfig:"TYPING_TIMEOUT" default:"4s"`
	SendBuffer    int           `envconfig:"SEND_BUFFER" default:"256"`

	// SnowflakeNode must be unique per gateway instance.
	SnowflakeNode int64 `envconfig:"SNOWFLAKE_NODE" default:"1"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return c, nil
}

// SlogLevel maps the configured level name onto slog's levels; unknown
// names fall back to info.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
