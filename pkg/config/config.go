package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/lucentdata/metricplane/pkg/models"
)

// Config holds all configuration for metricplane.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Metadata store configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Resolution pipeline configuration
	Resolver ResolverConfig `yaml:"resolver"`
}

// DatabaseConfig holds PostgreSQL metadata store configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"metricplane"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"metricplane"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`

	// MigrationsPath points at the SQL migration directory applied on startup.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// ResolverConfig holds resolution pipeline settings.
type ResolverConfig struct {
	// DefaultEngine is the execution engine used when a request does not
	// name one. Must match a registered engine type.
	DefaultEngine string `yaml:"default_engine" env:"RESOLVER_DEFAULT_ENGINE" env-default:"postgres"`

	// GrainPolicy controls dimension validation: "subset" accepts any
	// subset of the declared grain, "exact" requires the full grain.
	GrainPolicy string `yaml:"grain_policy" env:"RESOLVER_GRAIN_POLICY" env-default:"subset"`

	// ExecutionEngineURL optionally points query execution at a database
	// other than the metadata store. Empty means the metadata store pool
	// doubles as the postgres execution engine.
	ExecutionEngineURL string `yaml:"execution_engine_url" env:"EXECUTION_ENGINE_URL" env-default:""`

	// MSSQLConnectionString enables the SQL Server engine when set.
	MSSQLConnectionString string `yaml:"-" env:"MSSQL_CONNECTION_STRING"` // Secret - not in YAML
}

// Load reads configuration from config.yaml with environment variable
// overrides. When no config.yaml exists the environment alone is used.
// The version parameter is injected at build time and set on the returned
// Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Resolver.GrainPolicy {
	case "subset", "exact":
	default:
		return fmt.Errorf("grain_policy must be \"subset\" or \"exact\", got %q", c.Resolver.GrainPolicy)
	}

	switch c.Resolver.DefaultEngine {
	case models.EngineTypePostgres, models.EngineTypeMSSQL:
	default:
		return fmt.Errorf("default_engine must be %q or %q, got %q",
			models.EngineTypePostgres, models.EngineTypeMSSQL, c.Resolver.DefaultEngine)
	}

	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
