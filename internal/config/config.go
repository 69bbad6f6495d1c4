package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Auth     Auth     `yaml:"auth"`
	Limits   Limits   `yaml:"limits"`
	Storage  Storage  `yaml:"storage"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Stream   Stream   `yaml:"stream"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"zapstream-backend"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port           string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// Auth carries the static credential table as comma-separated key=tenant
// pairs, e.g. "dev_key_123=tenant_dev,prod_key=tenant_acme".
type Auth struct {
	APIKeys string `yaml:"api_keys" env:"API_KEYS" env-default:"dev_key_123=tenant_dev"`
}

type Limits struct {
	MaxPayloadBytes int `yaml:"max_payload_bytes" env:"MAX_PAYLOAD_BYTES" env-default:"524288"`
	RatePerMinute   int `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE" env-default:"60"`
}

type Storage struct {
	// Backend selects the event store implementation: "memory" or "postgres".
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"zapstream"`
}

// Redis enables the cross-instance stream backplane when Addr is non-empty.
type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:""`
}

// Kafka enables the best-effort event mirror when Topic is non-empty.
type Kafka struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:""`
}

type Stream struct {
	HeartbeatSeconds int `yaml:"heartbeat_seconds" env:"STREAM_HEARTBEAT_SECONDS" env-default:"20"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	return cfg, nil
}

// APIKeyTable parses Auth.APIKeys into a credential -> tenant map.
// Malformed pairs are skipped.
func (c *Config) APIKeyTable() map[string]string {
	table := make(map[string]string)
	for _, pair := range strings.Split(c.Auth.APIKeys, ",") {
		key, tenant, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" || tenant == "" {
			continue
		}
		table[key] = tenant
	}
	return table
}
