// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Data, Postgres, Kafka, Redis, Recommender, etc.).
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Data        DataConfig        `yaml:"data"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Redis       RedisConfig       `yaml:"redis"`
	Recommender RecommenderConfig `yaml:"recommender"`
	RateLimit   RateLimitConfig   `yaml:"rateLimit"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// SlowRequest is the latency above which request traces log at Warn.
	SlowRequest     time.Duration `yaml:"slowRequest"`
}

// DataConfig selects where the catalog, ratings and links tables are read
// from at startup. Source is either "csv" or "postgres".
type DataConfig struct {
	Source      string        `yaml:"source"`
	MoviesPath  string        `yaml:"moviesPath"`
	RatingsPath string        `yaml:"ratingsPath"`
	LinksPath   string        `yaml:"linksPath"`
	LoadTimeout time.Duration `yaml:"loadTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	QueryEvents string `yaml:"queryEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// RecommenderConfig holds the scoring constants and query limits of the
// recommendation engine.
type RecommenderConfig struct {
	HighRatingThreshold float64 `yaml:"highRatingThreshold"`
	MinCandidateShare   float64 `yaml:"minCandidateShare"`
	DetailSimilar       int     `yaml:"detailSimilar"`
	DetailFetch         int     `yaml:"detailFetch"`
	SearchDefaultLimit  int     `yaml:"searchDefaultLimit"`
	ListDefaultLimit    int     `yaml:"listDefaultLimit"`
	MaxLimit            int     `yaml:"maxLimit"`
	MaxHistory          int     `yaml:"maxHistory"`
	Workers             int     `yaml:"workers"`
}

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requestsPerWindow"`
	Window            time.Duration `yaml:"window"`
	// TrustForwardedFor keys clients by X-Forwarded-For instead of the
	// socket peer. Enable only behind a proxy that sets the header.
	TrustForwardedFor bool `yaml:"trustForwardedFor"`
}

// AnalyticsConfig controls query-event collection in the recommender and
// the standalone analytics service.
type AnalyticsConfig struct {
	Port             int           `yaml:"port"`
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	PersistSnapshots bool          `yaml:"persistSnapshots"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Data.Source {
	case "csv", "postgres":
	default:
		return fmt.Errorf("invalid data source %q: must be csv or postgres", c.Data.Source)
	}
	r := c.Recommender
	if r.MinCandidateShare < 0 || r.MinCandidateShare >= 1 {
		return fmt.Errorf("recommender.minCandidateShare must be in [0,1), got %v", r.MinCandidateShare)
	}
	if r.DetailSimilar < 0 || r.DetailFetch < r.DetailSimilar {
		return fmt.Errorf("recommender.detailFetch (%d) must be >= detailSimilar (%d)", r.DetailFetch, r.DetailSimilar)
	}
	if r.MaxLimit <= 0 {
		return fmt.Errorf("recommender.maxLimit must be positive, got %d", r.MaxLimit)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			SlowRequest:     500 * time.Millisecond,
		},
		Data: DataConfig{
			Source:      "csv",
			MoviesPath:  "data/movies_finalized_dataset1.csv",
			RatingsPath: "data/ratings.csv",
			LinksPath:   "data/links.csv",
			LoadTimeout: 2 * time.Minute,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "movierec",
			User:            "movierec",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "movierec-analytics",
			Topics: KafkaTopics{
				QueryEvents: "recommender-query-events",
			},
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Recommender: RecommenderConfig{
			HighRatingThreshold: 4.0,
			MinCandidateShare:   0.10,
			DetailSimilar:       6,
			DetailFetch:         10,
			SearchDefaultLimit:  10,
			ListDefaultLimit:    20,
			MaxLimit:            100,
			MaxHistory:          50,
			Workers:             runtime.NumCPU(),
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 120,
			Window:            time.Minute,
		},
		Analytics: AnalyticsConfig{
			Port:             5100,
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    time.Second,
			PersistSnapshots: false,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads MR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MR_DATA_SOURCE"); v != "" {
		cfg.Data.Source = v
	}
	if v := os.Getenv("MR_DATA_MOVIES_PATH"); v != "" {
		cfg.Data.MoviesPath = v
	}
	if v := os.Getenv("MR_DATA_RATINGS_PATH"); v != "" {
		cfg.Data.RatingsPath = v
	}
	if v := os.Getenv("MR_DATA_LINKS_PATH"); v != "" {
		cfg.Data.LinksPath = v
	}
	if v := os.Getenv("MR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("MR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("MR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("MR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("MR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("MR_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("MR_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("MR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MR_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("MR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MR_RECOMMENDER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recommender.Workers = n
		}
	}
	if v := os.Getenv("MR_ANALYTICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Analytics.Port = port
		}
	}
	if v := os.Getenv("MR_ANALYTICS_PERSIST"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.PersistSnapshots = b
		}
	}
	if v := os.Getenv("MR_RATELIMIT_TRUST_FORWARDED_FOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RateLimit.TrustForwardedFor = b
		}
	}
	if v := os.Getenv("MR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MR_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
