package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainconfig "designgraph/domain/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ENABLE_EVENTS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.False(t, cfg.LedgerDedup)
	assert.Equal(t, 100, cfg.PolicyDebounceMS)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("STORE_BACKEND", StoreSQLite)
	t.Setenv("SQLITE_PATH", "/tmp/kernel.db")
	t.Setenv("LEDGER_DEDUP", "true")
	t.Setenv("WORKFLOW_PHASE", "setup")
	t.Setenv("POLICY_DEBOUNCE_MS", "250")
	t.Setenv("ENABLE_CORS", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, "/tmp/kernel.db", cfg.SQLitePath)
	assert.True(t, cfg.LedgerDedup)
	assert.Equal(t, "setup", cfg.WorkflowPhase)
	assert.Equal(t, 250, cfg.PolicyDebounceMS)
	assert.False(t, cfg.EnableCORS)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{Environment: "development", StoreBackend: StoreMemory}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown store", mutate: func(c *Config) { c.StoreBackend = "redis" }, wantErr: "unknown STORE_BACKEND"},
		{name: "sqlite without path", mutate: func(c *Config) { c.StoreBackend = StoreSQLite }, wantErr: "SQLITE_PATH"},
		{name: "dynamodb without table", mutate: func(c *Config) { c.StoreBackend = StoreDynamoDB }, wantErr: "DYNAMODB_TABLE"},
		{name: "events without bus", mutate: func(c *Config) { c.EnableEvents = true }, wantErr: "EVENT_BUS_NAME"},
		{name: "watch without file", mutate: func(c *Config) { c.WatchPolicy = true }, wantErr: "POLICY_FILE"},
		{name: "negative rate limit", mutate: func(c *Config) { c.TaskRateLimit = -1 }, wantErr: "TASK_RATE_LIMIT"},
		{name: "memory in production", mutate: func(c *Config) { c.Environment = "production" }, wantErr: "not allowed in production"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DomainPolicy(t *testing.T) {
	t.Run("environment defaults", func(t *testing.T) {
		cfg := &Config{Environment: "production"}
		pol, err := cfg.DomainPolicy()
		require.NoError(t, err)
		assert.Equal(t, domainconfig.ProductionDomainConfig().Budget, pol.Domain.Budget)
		assert.Empty(t, pol.Catalog)
	})

	t.Run("phase override wins over file", func(t *testing.T) {
		path := writePolicy(t, "phase: setup\n")
		cfg := &Config{Environment: "development", PolicyFile: path, WorkflowPhase: domainconfig.PhaseMaterialize}
		pol, err := cfg.DomainPolicy()
		require.NoError(t, err)
		assert.Equal(t, domainconfig.PhaseMaterialize, pol.Domain.Phase)
	})

	t.Run("unknown phase", func(t *testing.T) {
		cfg := &Config{Environment: "development", WorkflowPhase: "review"}
		_, err := cfg.DomainPolicy()
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := &Config{PolicyFile: filepath.Join(t.TempDir(), "absent.yaml")}
		_, err := cfg.DomainPolicy()
		assert.Error(t, err)
	})
}

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
