package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig_Defaults(t *testing.T) {
	cfg, err := poolConfig(PoolSettings{DSN: "postgres://loja@localhost:5432/consigna"})
	require.NoError(t, err)

	assert.Equal(t, int32(defaultMaxConns), cfg.MaxConns)
	assert.Equal(t, int32(0), cfg.MinConns)
	assert.Equal(t, defaultMaxConnIdleTime, cfg.MaxConnIdleTime)
	assert.Equal(t, "consigna", cfg.ConnConfig.RuntimeParams["application_name"])
	assert.Equal(t, "UTC", cfg.ConnConfig.RuntimeParams["timezone"])
}

func TestPoolConfig_Overrides(t *testing.T) {
	cfg, err := poolConfig(PoolSettings{
		DSN:             "postgres://loja@localhost:5432/consigna?application_name=caixa",
		MaxConns:        2,
		MinConns:        4,
		MaxConnLifetime: 10 * time.Minute,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(2), cfg.MaxConns)
	assert.Equal(t, int32(2), cfg.MinConns)
	assert.Equal(t, 10*time.Minute, cfg.MaxConnLifetime)
	assert.Equal(t, "caixa", cfg.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfig_BadDSN(t *testing.T) {
	_, err := poolConfig(PoolSettings{DSN: "postgres://loja@localhost:notaport/consigna"})
	assert.ErrorContains(t, err, "parse postgres dsn")
}
