/*
Package config handles ric configuration.

Configuration is layered (low to high precedence): built-in defaults, an
optional YAML file, the NEO4J_* connection variables and RIC_* environment
variables. A .env file in the working directory is read first.

Example config file (~/.ric/config.yaml):

	log_level: info
	store:
	  backend: neo4j
	  query_timeout: 10s
	  max_qps: 20
	  neo4j:
	    uri: neo4j+s://xxxx.databases.neo4j.io
	    user: neo4j
	recommender:
	  alpha: 0.3
	  score_limit: 10
	  recommend_limit: 5
	tracing:
	  enabled: false
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khanglvm/ric/internal/learning"
	"github.com/khanglvm/ric/internal/logging"
	"github.com/khanglvm/ric/internal/seed"
	"github.com/khanglvm/ric/internal/storage"
)

// DefaultQueryTimeout bounds each confidence query.
const DefaultQueryTimeout = 10 * time.Second

// Config is the root configuration.
type Config struct {
	LogLevel    string `koanf:"log_level" yaml:"log_level"`
	LogFormat   string `koanf:"log_format" yaml:"log_format"`
	MetricsAddr string `koanf:"metrics_addr" yaml:"metrics_addr,omitempty"`

	Store       StoreConfig       `koanf:"store" yaml:"store"`
	Recommender RecommenderConfig `koanf:"recommender" yaml:"recommender"`
	Seed        SeedConfig        `koanf:"seed" yaml:"seed"`
	Tracing     TracingConfig     `koanf:"tracing" yaml:"tracing"`
}

// StoreConfig selects and configures the graph store.
type StoreConfig struct {
	// Backend is "neo4j" or "sqlite".
	Backend      string        `koanf:"backend" yaml:"backend"`
	QueryTimeout time.Duration `koanf:"query_timeout" yaml:"query_timeout"`

	// MaxQPS throttles confidence queries; zero disables throttling.
	MaxQPS float64 `koanf:"max_qps" yaml:"max_qps"`
	Burst  int     `koanf:"burst" yaml:"burst"`

	Neo4j  Neo4jConfig  `koanf:"neo4j" yaml:"neo4j"`
	SQLite SQLiteConfig `koanf:"sqlite" yaml:"sqlite"`
}

// Neo4jConfig holds Neo4j connection parameters.
type Neo4jConfig struct {
	URI      string `koanf:"uri" yaml:"uri"`
	User     string `koanf:"user" yaml:"user"`
	Password string `koanf:"password" yaml:"password,omitempty"`
	Database string `koanf:"database" yaml:"database,omitempty"`
}

// SQLiteConfig holds the embedded store location.
type SQLiteConfig struct {
	Path string `koanf:"path" yaml:"path"`
}

// RecommenderConfig holds the recommendation parameters.
type RecommenderConfig struct {
	Alpha          float64 `koanf:"alpha" yaml:"alpha"`
	ScoreLimit     int     `koanf:"score_limit" yaml:"score_limit"`
	RecommendLimit int     `koanf:"recommend_limit" yaml:"recommend_limit"`
}

// SeedConfig shapes generated datasets.
type SeedConfig struct {
	Users       int   `koanf:"users" yaml:"users"`
	MinSessions int   `koanf:"min_sessions" yaml:"min_sessions"`
	MaxSessions int   `koanf:"max_sessions" yaml:"max_sessions"`
	MinSteps    int   `koanf:"min_steps" yaml:"min_steps"`
	MaxSteps    int   `koanf:"max_steps" yaml:"max_steps"`
	Seed        int64 `koanf:"seed" yaml:"seed"`
}

// TracingConfig controls OpenTelemetry span export to stderr.
type TracingConfig struct {
	Enabled bool `koanf:"enabled" yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	sqlitePath, err := storage.DefaultSQLitePath()
	if err != nil {
		sqlitePath = filepath.Join(".ric", "graph.db")
	}
	seedOpts := seed.DefaultOptions()

	return &Config{
		LogLevel:  "info",
		LogFormat: logging.FormatConsole,
		Store: StoreConfig{
			Backend:      storage.BackendNeo4j,
			QueryTimeout: DefaultQueryTimeout,
			Burst:        1,
			SQLite:       SQLiteConfig{Path: sqlitePath},
		},
		Recommender: RecommenderConfig{
			Alpha:          learning.DefaultAlpha,
			ScoreLimit:     learning.DefaultScoreLimit,
			RecommendLimit: learning.DefaultRecommendLimit,
		},
		Seed: SeedConfig{
			Users:       seedOpts.Users,
			MinSessions: seedOpts.MinSessions,
			MaxSessions: seedOpts.MaxSessions,
			MinSteps:    seedOpts.MinSteps,
			MaxSteps:    seedOpts.MaxSteps,
			Seed:        seedOpts.Seed,
		},
	}
}

// DefaultPath returns ~/.ric/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ric", "config.yaml"), nil
}

// StoreOptions converts the store section for storage.Open.
func (c *Config) StoreOptions() storage.Options {
	return storage.Options{
		Backend: c.Store.Backend,
		Neo4j: storage.Neo4jConfig{
			URI:      c.Store.Neo4j.URI,
			User:     c.Store.Neo4j.User,
			Password: c.Store.Neo4j.Password,
			Database: c.Store.Neo4j.Database,
		},
		SQLitePath: c.Store.SQLite.Path,
	}
}

// SeedOptions converts the seed section for seed.Generate.
func (c *Config) SeedOptions() seed.Options {
	return seed.Options{
		Users:       c.Seed.Users,
		MinSessions: c.Seed.MinSessions,
		MaxSessions: c.Seed.MaxSessions,
		MinSteps:    c.Seed.MinSteps,
		MaxSteps:    c.Seed.MaxSteps,
		Seed:        c.Seed.Seed,
	}
}

func invalid(key, msg, hint string) error {
	return &InvalidConfigError{Path: key, Message: msg, Hint: hint}
}

// Validate reports the first invalid setting as an *InvalidConfigError
// wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := c.ValidateOffline(); err != nil {
		return err
	}
	return c.ValidateStore()
}

// ValidateStore checks the store section, including connection credentials.
func (c *Config) ValidateStore() error {
	switch c.Store.Backend {
	case storage.BackendNeo4j:
		var missing []string
		if c.Store.Neo4j.URI == "" {
			missing = append(missing, "NEO4J_URI")
		}
		if c.Store.Neo4j.User == "" {
			missing = append(missing, "NEO4J_USER")
		}
		if c.Store.Neo4j.Password == "" {
			missing = append(missing, "NEO4J_PASSWORD")
		}
		if len(missing) > 0 {
			return invalid("store.neo4j", fmt.Sprintf("missing Neo4j credentials: %v", missing),
				"Set them in the environment or a .env file, or use --store sqlite")
		}
	case storage.BackendSQLite:
		if c.Store.SQLite.Path == "" {
			return invalid("store.sqlite.path", "path must not be empty", "Set RIC_STORE__SQLITE__PATH")
		}
	default:
		return invalid("store.backend", fmt.Sprintf("unknown backend %q", c.Store.Backend), "Use 'neo4j' or 'sqlite'")
	}

	if c.Store.QueryTimeout < 0 {
		return invalid("store.query_timeout", "timeout must not be negative", "Use a duration such as 10s, or 0 to disable")
	}
	if c.Store.MaxQPS < 0 {
		return invalid("store.max_qps", "rate must not be negative", "Use 0 to disable throttling")
	}
	if c.Store.MaxQPS > 0 && c.Store.Burst <= 0 {
		return invalid("store.burst", "burst must be positive when max_qps is set", "The default is 1")
	}
	return nil
}

// ValidateOffline checks everything except the store section. Commands that
// never connect, such as writing a Cypher script, use it alone.
func (c *Config) ValidateOffline() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return invalid("log_level", err.Error(), "Use one of: debug, info, warn, error")
	}
	if c.LogFormat != logging.FormatConsole && c.LogFormat != logging.FormatJSON {
		return invalid("log_format", fmt.Sprintf("unknown format %q", c.LogFormat), "Use 'console' or 'json'")
	}

	if !(c.Recommender.Alpha >= 0 && c.Recommender.Alpha <= 1) {
		return invalid("recommender.alpha", fmt.Sprintf("alpha %v is outside [0, 1]", c.Recommender.Alpha), "The default is 0.3")
	}
	if c.Recommender.ScoreLimit <= 0 {
		return invalid("recommender.score_limit", "limit must be positive", "The default is 10")
	}
	if c.Recommender.RecommendLimit <= 0 {
		return invalid("recommender.recommend_limit", "limit must be positive", "The default is 5")
	}

	return nil
}
