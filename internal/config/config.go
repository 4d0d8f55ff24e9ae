package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hurou927/pg-relsub/internal/plan"
)

// Config represents the top-level YAML configuration.
type Config struct {
	Connection Connection `yaml:"connection"`
	Schemas    []string   `yaml:"schemas"`
	// Snapshot points at a YAML catalog dump used instead of a live database.
	Snapshot  string    `yaml:"snapshot"`
	Planner   Planner   `yaml:"planner"`
	Inference Inference `yaml:"inference"`
	Log       Log       `yaml:"log"`
}

// Connection holds database connection parameters.
type Connection struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Database        string `yaml:"database"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"sslmode"`
	MaxConns        int32  `yaml:"max_conns"`
	ApplicationName string `yaml:"application_name"`
}

// Planner holds subscription planner policy.
type Planner struct {
	Strict       bool   `yaml:"strict"`
	Ambiguity    string `yaml:"ambiguity"`
	AllowRevisit bool   `yaml:"allow_revisit"`
	MaxDepth     int    `yaml:"max_depth"`
}

// Inference holds relationship inference settings.
type Inference struct {
	Concurrency int `yaml:"concurrency"`
}

// Log holds logger settings.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DSN builds a PostgreSQL connection string.
func (c *Connection) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
	)
}

// Load reads and parses a YAML config file. An empty path yields a config
// built from defaults and environment variables only. A .env file in the
// working directory is loaded first and never overrides the real environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv fills in empty Connection fields from environment variables.
// YAML values take precedence; env vars are used only as fallback.
func (c *Config) applyEnv() {
	conn := &c.Connection
	if conn.Host == "" {
		conn.Host = envOr("PGHOST", "POSTGRES_HOST")
	}
	if conn.Port == 0 {
		if s := envOr("PGPORT", "POSTGRES_PORT"); s != "" {
			if p, err := strconv.Atoi(s); err == nil {
				conn.Port = p
			}
		}
	}
	if conn.Database == "" {
		conn.Database = envOr("PGDATABASE", "POSTGRES_DB")
	}
	if conn.User == "" {
		conn.User = envOr("PGUSER", "POSTGRES_USER")
	}
	if conn.Password == "" {
		conn.Password = envOr("PGPASSWORD", "POSTGRES_PASSWORD")
	}
	if conn.SSLMode == "" {
		conn.SSLMode = envOr("PGSSLMODE")
	}
	if c.Snapshot == "" {
		c.Snapshot = envOr("RELSUB_SNAPSHOT")
	}
	if c.Log.Level == "" {
		c.Log.Level = envOr("RELSUB_LOG_LEVEL")
	}
}

// envOr returns the first non-empty value from the given env var names.
func envOr(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// validate fills defaults and checks settings shared by every command.
func (c *Config) validate() error {
	if c.Connection.Port == 0 {
		c.Connection.Port = 5432
	}
	if c.Connection.SSLMode == "" {
		c.Connection.SSLMode = "disable"
	}
	if c.Connection.ApplicationName == "" {
		c.Connection.ApplicationName = "pg-relsub"
	}
	if len(c.Schemas) == 0 {
		c.Schemas = []string{"public"}
	}
	if c.Inference.Concurrency <= 0 {
		c.Inference.Concurrency = 4
	}
	if c.Planner.MaxDepth < 0 {
		return fmt.Errorf("planner.max_depth must not be negative")
	}
	if _, err := plan.ParseAmbiguityPolicy(c.Planner.Ambiguity); err != nil {
		return fmt.Errorf("planner.ambiguity: %w", err)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	return nil
}

// ValidateForDatabase checks the fields required to open a connection.
func (c *Config) ValidateForDatabase() error {
	if c.Connection.Host == "" {
		return fmt.Errorf("connection.host is required")
	}
	if c.Connection.Database == "" {
		return fmt.Errorf("connection.database is required")
	}
	if c.Connection.User == "" {
		return fmt.Errorf("connection.user is required")
	}
	return nil
}

// PlannerOptions converts the planner section into plan.Options. Bare root
// table names resolve in the first configured schema.
func (c *Config) PlannerOptions() plan.Options {
	policy, _ := plan.ParseAmbiguityPolicy(c.Planner.Ambiguity)
	var defaultSchema string
	if len(c.Schemas) > 0 {
		defaultSchema = c.Schemas[0]
	}
	return plan.Options{
		DefaultSchema: defaultSchema,
		Strict:        c.Planner.Strict,
		Ambiguity:     policy,
		AllowRevisit:  c.Planner.AllowRevisit,
		MaxDepth:      c.Planner.MaxDepth,
	}
}
