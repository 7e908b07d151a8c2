// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Engine, Feedback, Eval, Dense, Redis, Kafka, Store, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Store    StoreConfig    `yaml:"store"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Engine   EngineConfig   `yaml:"engine"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Eval     EvalConfig     `yaml:"eval"`
	Dense    DenseConfig    `yaml:"dense"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP and RPC server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RPCPort         int           `yaml:"rpcPort"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit       int           `yaml:"rateLimit"`
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

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables event publishing.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents   string `yaml:"searchEvents"`
	FeedbackEvents string `yaml:"feedbackEvents"`
	EvalEvents     string `yaml:"evalEvents"`
}

// RedisConfig holds Redis connection and caching parameters. An empty Addr
// disables the result cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// StoreConfig selects where evaluation reports are persisted.
type StoreConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres | none
	Path   string `yaml:"path"`
}

// CorpusConfig controls how the document directory is read and tokenized.
type CorpusConfig struct {
	Dir         string `yaml:"dir"`
	HTML        bool   `yaml:"html"`
	Stem        bool   `yaml:"stem"`
	Parallelism int    `yaml:"parallelism"`
}

// EngineConfig controls retrieval strategy and result limits.
type EngineConfig struct {
	Strategy          string  `yaml:"strategy"`
	PopularityWeight  float64 `yaml:"popularityWeight"`
	PopularityFile    string  `yaml:"popularityFile"`
	MissingPopularity string  `yaml:"missingPopularity"`
	Lambda            float64 `yaml:"lambda"`
	MaxResults        int     `yaml:"maxResults"`
	DefaultLimit      int     `yaml:"defaultLimit"`
}

// FeedbackConfig holds the Rocchio weights.
type FeedbackConfig struct {
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
	Gamma float64 `yaml:"gamma"`
}

// EvalConfig controls evaluation runs.
type EvalConfig struct {
	QueryFile         string `yaml:"queryFile"`
	QueryVectorDir    string `yaml:"queryVectorDir"`
	NDCGLimit         int    `yaml:"ndcgLimit"`
	SimulatedFeedback int    `yaml:"simulatedFeedback"`
	Binary            bool   `yaml:"binary"`
	Control           bool   `yaml:"control"`
}

// DenseConfig configures the embedding retriever.
type DenseConfig struct {
	Mode          string        `yaml:"mode"` // memory | rpc
	EmbeddingsDir string        `yaml:"embeddingsDir"`
	RPCAddr       string        `yaml:"rpcAddr"`
	Timeout       time.Duration `yaml:"timeout"`
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

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Engine.Strategy {
	case "", "cosine", "proximity", "popularity", "hybrid":
	default:
		return fmt.Errorf("config: unknown engine strategy %q", c.Engine.Strategy)
	}
	if !(c.Engine.Lambda >= 0 && c.Engine.Lambda <= 1) {
		return fmt.Errorf("config: engine lambda %v outside [0,1]", c.Engine.Lambda)
	}
	switch c.Engine.MissingPopularity {
	case "", "fail", "zero":
	default:
		return fmt.Errorf("config: unknown missingPopularity policy %q", c.Engine.MissingPopularity)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("config: server rateLimit must not be negative")
	}
	if c.Eval.NDCGLimit < 1 {
		return fmt.Errorf("config: eval ndcgLimit must be at least 1, got %d", c.Eval.NDCGLimit)
	}
	if c.Eval.SimulatedFeedback < 0 {
		return fmt.Errorf("config: eval simulatedFeedback must not be negative")
	}
	switch c.Dense.Mode {
	case "", "memory", "rpc":
	default:
		return fmt.Errorf("config: unknown dense mode %q", c.Dense.Mode)
	}
	switch c.Store.Driver {
	case "", "none", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			RPCPort:         9091,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "vsr",
			User:            "vsr",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topics: KafkaTopics{
				SearchEvents:   "vsr-search-events",
				FeedbackEvents: "vsr-feedback-events",
				EvalEvents:     "vsr-eval-events",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "vsr-eval.db",
		},
		Corpus: CorpusConfig{
			Parallelism: 4,
		},
		Engine: EngineConfig{
			Strategy:          "cosine",
			PopularityWeight:  1,
			MissingPopularity: "fail",
			Lambda:            0.5,
			MaxResults:        100,
			DefaultLimit:      10,
		},
		Feedback: FeedbackConfig{
			Alpha: 8,
			Beta:  16,
			Gamma: 4,
		},
		Eval: EvalConfig{
			NDCGLimit:         10,
			SimulatedFeedback: 5,
		},
		Dense: DenseConfig{
			Mode:    "memory",
			Timeout: 5 * time.Second,
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

// applyEnvOverrides reads VSR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VSR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VSR_SERVER_RPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.RPCPort = port
		}
	}
	if v := os.Getenv("VSR_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("VSR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("VSR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("VSR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("VSR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("VSR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("VSR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("VSR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("VSR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("VSR_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("VSR_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("VSR_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("VSR_ENGINE_STRATEGY"); v != "" {
		cfg.Engine.Strategy = v
	}
	if v := os.Getenv("VSR_ENGINE_LAMBDA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Engine.Lambda = f
		}
	}
	if v := os.Getenv("VSR_ENGINE_POPULARITY_FILE"); v != "" {
		cfg.Engine.PopularityFile = v
	}
	if v := os.Getenv("VSR_DENSE_MODE"); v != "" {
		cfg.Dense.Mode = v
	}
	if v := os.Getenv("VSR_DENSE_EMBEDDINGS_DIR"); v != "" {
		cfg.Dense.EmbeddingsDir = v
	}
	if v := os.Getenv("VSR_DENSE_RPC_ADDR"); v != "" {
		cfg.Dense.RPCAddr = v
	}
	if v := os.Getenv("VSR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VSR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
