package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Event delivery modes
const (
	EventsInline = "inline"
	EventsRedis  = "redis"
)

// AppConfig holds the runtime configuration. Values come from defaults, then a .env file,
// then an optional YAML file, then the process environment.
type AppConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`

	DBDriver    string `yaml:"db_driver"`
	DatabaseURL string `yaml:"database_url"`

	JWTSecret string `yaml:"jwt_secret"`

	CloserInterval  time.Duration `yaml:"closer_interval"`
	CloserBatchSize int           `yaml:"closer_batch_size"`

	// inline stores notifications in-process; redis goes through the stream outbox and Kafka
	EventsMode string `yaml:"events_mode"`

	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`

	EventStream   string `yaml:"event_stream"`
	EventGroup    string `yaml:"event_group"`
	EventConsumer string `yaml:"event_consumer"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
	KafkaGroupID string   `yaml:"kafka_group_id"`

	// BidRateLimit is per caller per window; 0 disables limiting
	BidRateLimit  int           `yaml:"bid_rate_limit"`
	BidRateWindow time.Duration `yaml:"bid_rate_window"`

	SeedDemoData bool `yaml:"seed_demo_data"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() AppConfig {
	return AppConfig{
		HTTPAddr:        ":8080",
		LogLevel:        "info",
		DBDriver:        "memory",
		JWTSecret:       "dev-secret-change-me",
		CloserInterval:  30 * time.Second,
		CloserBatchSize: 100,
		EventsMode:      EventsInline,
		RedisAddr:       "localhost:6379",
		EventStream:     "bidvault:auction_events",
		EventGroup:      "bidvault-relay-group",
		EventConsumer:   "bidvault-relay-1",
		KafkaBrokers:    []string{"localhost:9092"},
		KafkaTopic:      "bidvault-auction-events",
		KafkaGroupID:    "bidvault-notifications",
		BidRateLimit:    0,
		BidRateWindow:   time.Second,
	}
}

// Load reads the configuration. path names an optional YAML file; when empty BIDVAULT_CONFIG is used.
func Load(path string) (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()

	if path == "" {
		path = getEnv("BIDVAULT_CONFIG", "")
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return AppConfig{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *AppConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *AppConfig) error {
	var err error

	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", cfg.DBDriver))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.EventsMode = strings.ToLower(getEnv("EVENTS_MODE", cfg.EventsMode))
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.EventStream = getEnv("EVENT_STREAM", cfg.EventStream)
	cfg.EventGroup = getEnv("EVENT_GROUP", cfg.EventGroup)
	cfg.EventConsumer = getEnv("EVENT_CONSUMER", cfg.EventConsumer)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.KafkaGroupID = getEnv("KAFKA_GROUP_ID", cfg.KafkaGroupID)
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		cfg.KafkaBrokers = splitCSV(v)
	}

	if cfg.CloserInterval, err = getEnvDuration("CLOSER_INTERVAL", cfg.CloserInterval); err != nil {
		return fmt.Errorf("invalid CLOSER_INTERVAL: %w", err)
	}
	if cfg.CloserBatchSize, err = getEnvInt("CLOSER_BATCH_SIZE", cfg.CloserBatchSize); err != nil {
		return fmt.Errorf("invalid CLOSER_BATCH_SIZE: %w", err)
	}
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", cfg.RedisDB); err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.BidRateLimit, err = getEnvInt("BID_RATE_LIMIT", cfg.BidRateLimit); err != nil {
		return fmt.Errorf("invalid BID_RATE_LIMIT: %w", err)
	}
	if cfg.BidRateWindow, err = getEnvDuration("BID_RATE_WINDOW", cfg.BidRateWindow); err != nil {
		return fmt.Errorf("invalid BID_RATE_WINDOW: %w", err)
	}
	if cfg.SeedDemoData, err = getEnvBool("SEED_DEMO_DATA", cfg.SeedDemoData); err != nil {
		return fmt.Errorf("invalid SEED_DEMO_DATA: %w", err)
	}
	return nil
}

// Validate reports the first setting that cannot work
func (c AppConfig) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	switch c.DBDriver {
	case "memory":
	case "sqlite", "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for DB_DRIVER=%s", c.DBDriver)
		}
	default:
		return fmt.Errorf("DB_DRIVER must be one of memory, sqlite, postgres; got %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.CloserInterval <= 0 {
		return fmt.Errorf("CLOSER_INTERVAL must be > 0")
	}
	if c.CloserBatchSize <= 0 {
		return fmt.Errorf("CLOSER_BATCH_SIZE must be > 0")
	}
	if c.BidRateLimit < 0 {
		return fmt.Errorf("BID_RATE_LIMIT must be >= 0")
	}
	if c.BidRateLimit > 0 && c.BidRateWindow <= 0 {
		return fmt.Errorf("BID_RATE_WINDOW must be > 0")
	}

	switch c.EventsMode {
	case EventsInline:
		return nil
	case EventsRedis:
	default:
		return fmt.Errorf("EVENTS_MODE must be inline or redis; got %q", c.EventsMode)
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR must not be empty")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if c.KafkaGroupID == "" {
		return fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if c.EventStream == "" || c.EventGroup == "" || c.EventConsumer == "" {
		return fmt.Errorf("EVENT_STREAM, EVENT_GROUP and EVENT_CONSUMER must not be empty")
	}
	return nil
}

// UsesRedis reports whether the Redis client is needed
func (c AppConfig) UsesRedis() bool {
	return c.EventsMode == EventsRedis || c.BidRateLimit > 0
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

// splitCSV splits a comma separated list and drops empty items
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
