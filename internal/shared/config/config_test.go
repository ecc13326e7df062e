package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, LedgerDriverPostgres, cfg.Ledger.Driver)
	assert.Equal(t, 64, cfg.Ledger.Shards)
	assert.True(t, cfg.Ledger.Breaker.Enabled)
	assert.Equal(t, uint32(5), cfg.Ledger.Breaker.FailureThreshold)
	assert.Equal(t, 2*time.Second, cfg.Access.LookupTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadFile_BootstrapPlans(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
ledger:
  driver: redis
bootstrap:
  plans:
    - id: basic
      name: Basic
      operations: [service1, service2]
      quota: 100
      period: 720h
    - name: Pro
      operations: [service1, service2, service3]
      quota: 1000
`))
	require.NoError(t, err)

	require.Len(t, cfg.Bootstrap.Plans, 2)
	basic := cfg.Bootstrap.Plans[0]
	assert.Equal(t, "basic", basic.ID)
	assert.Equal(t, []string{"service1", "service2"}, basic.Operations)
	assert.Equal(t, int64(100), basic.Quota)
	assert.Equal(t, 720*time.Hour, basic.Period)
	assert.Zero(t, cfg.Bootstrap.Plans[1].Period)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoadFile_Env(t *testing.T) {
	t.Setenv("QUOTAGATE_LEDGER_DRIVER", "memory")
	t.Setenv("QUOTAGATE_DB_PASSWORD", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://app@db/quotagate")

	cfg, err := LoadFile(writeConfig(t, "server:\n  address: \":9090\"\n"))
	require.NoError(t, err)

	assert.Equal(t, LedgerDriverMemory, cfg.Ledger.Driver)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "postgres://app@db/quotagate", cfg.Database.DSN())
	assert.Equal(t, ":9090", cfg.Server.Address)
}

func TestLoadFile_Invalid(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "ledger:\n  driver: etcd\n"))
	assert.ErrorContains(t, err, "unknown driver")

	_, err = LoadFile(writeConfig(t, "bootstrap:\n  plans:\n    - quota: 1\n"))
	assert.ErrorContains(t, err, "name is required")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := &DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "q", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=q sslmode=disable", c.DSN())
}
