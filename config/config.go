package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds everything the process reads from the environment. The two
// durability paths can also come from CLI flags, which win.
type Config struct {
	Engine  EngineConfig
	Logging LoggingConfig
	Kafka   KafkaConfig
}

type EngineConfig struct {
	EventLogPath     string
	SnapshotDir      string
	SnapshotInterval uint64
	OutboxDir        string
	RiskLimitsPath   string
}

type LoggingConfig struct {
	Level string
	File  string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load reads configuration from environment variables, honoring a local
// .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := &Config{
		Engine: EngineConfig{
			EventLogPath:     getEnvString("HERMES_EVENT_LOG", ""),
			SnapshotDir:      getEnvString("HERMES_SNAPSHOT_DIR", ""),
			SnapshotInterval: getEnvUint64("HERMES_SNAPSHOT_INTERVAL", 1000),
			OutboxDir:        getEnvString("HERMES_OUTBOX_DIR", ""),
			RiskLimitsPath:   getEnvString("HERMES_RISK_LIMITS", ""),
		},
		Logging: LoggingConfig{
			Level: getEnvString("HERMES_LOG_LEVEL", "info"),
			File:  getEnvString("HERMES_LOG_FILE", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("HERMES_KAFKA_BROKERS"),
			Topic:   getEnvString("HERMES_KAFKA_TOPIC", "hermes.events"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Engine.SnapshotInterval == 0 {
		return fmt.Errorf("snapshot interval must be positive")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic required when brokers are set")
	}
	return nil
}

func getEnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvUint64(key string, def uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
