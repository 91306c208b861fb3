package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("1.0.0-test")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.BindAddr)
	assert.Equal(t, "8443", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "1.0.0-test", cfg.Version)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "metricplane", cfg.Database.User)
	assert.Equal(t, int32(25), cfg.Database.MaxConnections)
	assert.Equal(t, "migrations", cfg.Database.MigrationsPath)
	assert.Equal(t, "postgres", cfg.Resolver.DefaultEngine)
	assert.Equal(t, "subset", cfg.Resolver.GrainPolicy)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGPASSWORD", "s3cret")
	t.Setenv("RESOLVER_GRAIN_POLICY", "exact")
	t.Setenv("RESOLVER_DEFAULT_ENGINE", "mssql")

	cfg, err := Load("dev")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "exact", cfg.Resolver.GrainPolicy)
	assert.Equal(t, "mssql", cfg.Resolver.DefaultEngine)
}

func TestLoad_RejectsUnknownGrainPolicy(t *testing.T) {
	t.Setenv("RESOLVER_GRAIN_POLICY", "superset")

	_, err := Load("dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grain_policy")
}

func TestLoad_RejectsUnknownDefaultEngine(t *testing.T) {
	t.Setenv("RESOLVER_DEFAULT_ENGINE", "oracle")

	_, err := Load("dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_engine")
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "metricplane",
		Password: "s3cret",
		Database: "metricplane",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=metricplane password=s3cret dbname=metricplane sslmode=disable",
		db.ConnectionString())
}
