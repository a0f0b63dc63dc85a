package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	PostgresAddress  string
	PostgresPort     string
	PostgresDB       string
	PostgresUsername string
	PostgresPassword string
	MigrationsSource string

	Port            string
	LogLevel        string
	OperatorWorkers int

	SyncQueuePath      string
	SyncMaxRetries     int
	SyncReplayInterval time.Duration
	SyncReplayRate     float64

	CacheTTL          time.Duration
	RecurringInterval time.Duration
}

// In all cases the default behavior should be for the docker compose setup
var defaults = map[string]interface{}{
	"postgres_address":  "localhost",
	"postgres_port":     "5433",
	"postgres_db":       "postgres",
	"postgres_username": "postgres",
	"postgres_password": "testpassword",
	"migrations_source": "file://migrations",

	"ledger_port":      "9446",
	"log_level":        "info",
	"operator_workers": 4,

	"sync_queue_path":      "sync_queue.db",
	"sync_max_retries":     3,
	"sync_replay_interval": "30s",
	"sync_replay_rate":     20.0,

	"cache_ttl":          "5m",
	"recurring_interval": "1h",
}

// ProcessEnvironmentVariables loads defaults, then the YAML file named by LEDGER_CONFIG
// if set, then environment variables such as POSTGRES_ADDRESS or CACHE_TTL.
func ProcessEnvironmentVariables() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, err
	}

	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if _, known := defaults[key]; !known {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, err
	}

	return &Config{
		PostgresAddress:  k.String("postgres_address"),
		PostgresPort:     k.String("postgres_port"),
		PostgresDB:       k.String("postgres_db"),
		PostgresUsername: k.String("postgres_username"),
		PostgresPassword: k.String("postgres_password"),
		MigrationsSource: k.String("migrations_source"),

		Port:            k.String("ledger_port"),
		LogLevel:        k.String("log_level"),
		OperatorWorkers: k.Int("operator_workers"),

		SyncQueuePath:      k.String("sync_queue_path"),
		SyncMaxRetries:     k.Int("sync_max_retries"),
		SyncReplayInterval: k.Duration("sync_replay_interval"),
		SyncReplayRate:     k.Float64("sync_replay_rate"),

		CacheTTL:          k.Duration("cache_ttl"),
		RecurringInterval: k.Duration("recurring_interval"),
	}, nil
}
