package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Service   string          `yaml:"service"`
	HTTP      HTTPConfig      `yaml:"http"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Restock   RestockConfig   `yaml:"restock"`
	Inventory InventoryConfig `yaml:"inventory"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

type DatabaseConfig struct {
	// Driver is one of sqlite, mysql, postgres.
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
	// TxTimeout bounds every ledger transaction.
	TxTimeout time.Duration `yaml:"tx_timeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type AlertsConfig struct {
	// Sinks lists the enabled channels: log, redis, kafka.
	Sinks            []string      `yaml:"sinks"`
	Stream           string        `yaml:"stream"`
	StreamMaxLen     int64         `yaml:"stream_max_len"`
	DedupeTTL        time.Duration `yaml:"dedupe_ttl"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
	OpenTimeout      time.Duration `yaml:"open_timeout"`
	PublishTimeout   time.Duration `yaml:"publish_timeout"`
}

type RestockConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

type InventoryConfig struct {
	LowStockThreshold int `yaml:"low_stock_threshold"`
}

type LogConfig struct {
	Level              string `yaml:"level"`
	Format             string `yaml:"format"`
	SecurityLogPath    string `yaml:"security_log_path"`
	SecurityMaxSizeMB  int    `yaml:"security_max_size_mb"`
	SecurityMaxBackups int    `yaml:"security_max_backups"`
	SecurityMaxAgeDays int    `yaml:"security_max_age_days"`
}

func Default() Config {
	return Config{
		Service: "inventory-ledger",
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		GRPC: GRPCConfig{Addr: ":50051", Enabled: true},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:inventory.db?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
			Migrate:         true,
			TxTimeout:       5 * time.Second,
		},
		Redis: RedisConfig{Addr: "localhost:6379", PoolSize: 100},
		Kafka: KafkaConfig{Topic: "inventory-alerts"},
		Alerts: AlertsConfig{
			Sinks:            []string{"log"},
			Stream:           "inventory:alerts",
			StreamMaxLen:     10000,
			DedupeTTL:        15 * time.Minute,
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
			PublishTimeout:   2 * time.Second,
		},
		Restock: RestockConfig{
			Workers:     4,
			QueueSize:   1000,
			MaxAttempts: 5,
			Backoff:     500 * time.Millisecond,
			MaxBackoff:  30 * time.Second,
		},
		Inventory: InventoryConfig{LowStockThreshold: 10},
		Log: LogConfig{
			Level:              "info",
			Format:             "json",
			SecurityMaxSizeMB:  100,
			SecurityMaxBackups: 10,
			SecurityMaxAgeDays: 90,
		},
	}
}

// Load reads the YAML file at path (if any) over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.GRPC.Addr = getEnv("GRPC_ADDR", c.GRPC.Addr)
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_DSN", c.Database.DSN)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.SecurityLogPath = getEnv("SECURITY_LOG_PATH", c.Log.SecurityLogPath)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("ALERT_SINKS"); v != "" {
		c.Alerts.Sinks = splitList(v)
	}
	if v := os.Getenv("LOW_STOCK_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LOW_STOCK_THRESHOLD: %w", err)
		}
		c.Inventory.LowStockThreshold = n
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3", "mysql", "postgres", "postgresql", "pg":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.Inventory.LowStockThreshold < 0 {
		errs = append(errs, errors.New("inventory.low_stock_threshold must not be negative"))
	}
	if c.Restock.Workers < 1 {
		errs = append(errs, errors.New("restock.workers must be at least 1"))
	}
	if c.Restock.QueueSize < 1 {
		errs = append(errs, errors.New("restock.queue_size must be at least 1"))
	}

	for _, sink := range c.Alerts.Sinks {
		switch sink {
		case "log":
		case "redis":
			if c.Redis.Addr == "" {
				errs = append(errs, errors.New("alerts sink redis requires redis.addr"))
			}
		case "kafka":
			if len(c.Kafka.Brokers) == 0 {
				errs = append(errs, errors.New("alerts sink kafka requires kafka.brokers"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown alert sink %q", sink))
		}
	}

	return errors.Join(errs...)
}

func (c Config) SinkEnabled(name string) bool {
	for _, s := range c.Alerts.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
