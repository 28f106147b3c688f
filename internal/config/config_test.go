package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
env:
  name: test
  log:
    level: debug
storage:
  driver: memory
postgres:
  dsn: postgres://from-file
  maxConns: 4
  maxConnIdleTime: 5m
redis:
  enabled: false
  ttl: 1h
receipt:
  pageSize: 50
  storeLines:
    - Loja
  discountRate: "0.05"
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadWithEnv_File(t *testing.T) {
	dir := writeConfig(t, "test", testYAML)

	cfg, err := LoadWithEnv[Config]("test", dir)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env.Name)
	assert.Equal(t, "debug", cfg.Env.Log.Level)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "postgres://from-file", cfg.Postgres.DSN)
	assert.Equal(t, int32(4), cfg.Postgres.MaxConns)
	assert.Equal(t, 5*time.Minute, cfg.Postgres.MaxConnIdleTime)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, []string{"Loja"}, cfg.Receipt.StoreLines)
	assert.Equal(t, "0.05", cfg.Receipt.DiscountRate)
}

func TestLoadWithEnv_EnvOverrides(t *testing.T) {
	dir := writeConfig(t, "test", testYAML)
	t.Setenv("POSTGRES_DSN", "postgres://from-env")
	t.Setenv("POSTGRES_MAX_CONNS", "16")
	t.Setenv("REDIS_TTL", "90s")
	t.Setenv("CLI_OPERATOR", "caixa")

	cfg, err := LoadWithEnv[Config]("test", dir)
	require.NoError(t, err)

	assert.Equal(t, "postgres://from-env", cfg.Postgres.DSN)
	assert.Equal(t, int32(16), cfg.Postgres.MaxConns)
	assert.Equal(t, 90*time.Second, cfg.Redis.TTL)
	assert.Equal(t, "caixa", cfg.CLI.Operator)
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	_, err := LoadWithEnv[Config]("absent", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.yaml not found")
}

func TestShippedConfig_ProductionDefaults(t *testing.T) {
	cfg, err := LoadWithEnv[Config]("config", "../../config")
	require.NoError(t, err)

	assert.False(t, cfg.Env.Development, "shipped config must log in production mode")
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "memory needs nothing", mutate: func(c *Config) { c.Storage.Driver = DriverMemory }},
		{name: "postgres default", mutate: func(c *Config) { c.Postgres.DSN = "postgres://x" }},
		{name: "postgres without dsn", mutate: func(c *Config) {}, wantErr: "postgres.dsn"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "unknown storage driver"},
		{
			name: "redis without addr",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverMemory
				c.Redis.Enabled = true
			},
			wantErr: "redis.addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			tt.mutate(&c)
			err := c.validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, c.Storage.Driver)
		})
	}
}

func TestCanonicalizeEnvKey(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{
			"dsn":             "",
			"maxConns":        10,
			"maxConnIdleTime": "30m",
		},
		"receipt": map[string]any{
			"storeLines": []any{},
			"taxId":      "",
		},
		"cli": map[string]any{
			"operator": "",
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "POSTGRES_DSN", want: "postgres.dsn"},
		{envKey: "POSTGRES_MAXCONNS", want: "postgres.maxConns"},
		{envKey: "POSTGRES_MAX_CONNS", want: "postgres.maxConns"},
		{envKey: "POSTGRES_MAX_CONN_IDLE_TIME", want: "postgres.maxConnIdleTime"},
		{envKey: "RECEIPT_TAX_ID", want: "receipt.taxId"},
		{envKey: "CLI_OPERATOR", want: "cli.operator"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalizeEnvKey(tt.envKey, existing))
		})
	}
}
