package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"guildhall-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.Development, cfg.Environment)
	assert.Equal(t, "guildhall-dev", cfg.AWS.TableName)
	assert.Equal(t, "GSI1", cfg.AWS.IndexName)
	assert.Equal(t, "memory", cfg.Cache.Provider)
	assert.Equal(t, 30*time.Second, cfg.Cache.ListTTL)
	assert.Equal(t, 24*time.Hour, cfg.Service.IdempotencyTTL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"defaults", "environment"}, cfg.LoadedFrom)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("PORT", "9090")
	t.Setenv("TABLE_NAME", "test-table")
	t.Setenv("MODERATORS", "mod-1, mod-2,,")
	t.Setenv("GUILD_LIST_CACHE_TTL", "5s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("ENABLE_TRACING", "true")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.Staging, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "test-table", cfg.AWS.TableName)
	assert.Equal(t, []string{"mod-1", "mod-2"}, cfg.Access.Moderators)
	assert.Equal(t, 5*time.Second, cfg.Cache.ListTTL)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout, "unparseable values keep the default")
}

func TestLoadFileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guildhall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
aws:
  tableName: from-file
  eventBusName: guild-events
cache:
  provider: redis
  redisAddr: localhost:6379
  listTTL: 1m
access:
  moderators: [file-mod]
`), 0o600))

	t.Setenv("ENVIRONMENT", "")
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("TABLE_NAME", "from-env")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.AWS.TableName, "environment wins over the file")
	assert.Equal(t, "guild-events", cfg.AWS.EventBusName)
	assert.Equal(t, "redis", cfg.Cache.Provider)
	assert.Equal(t, time.Minute, cfg.Cache.ListTTL)
	assert.Equal(t, []string{"file-mod"}, cfg.Access.Moderators)
	assert.Equal(t, "GSI1", cfg.AWS.IndexName, "unset file keys keep defaults")
	assert.Contains(t, cfg.LoadedFrom, path)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := config.Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(c *config.Config) {}},
		{
			name:    "table name required",
			mutate:  func(c *config.Config) { c.AWS.TableName = "" },
			wantErr: "table name is required",
		},
		{
			name:    "unknown cache provider",
			mutate:  func(c *config.Config) { c.Cache.Provider = "memcached" },
			wantErr: "unknown cache provider",
		},
		{
			name:    "redis needs an address",
			mutate:  func(c *config.Config) { c.Cache.Provider = "redis" },
			wantErr: "redis address is required",
		},
		{
			name: "production needs a secret",
			mutate: func(c *config.Config) {
				c.Environment = config.Production
			},
			wantErr: "JWT secret is required in production",
		},
		{
			name: "production behind the gateway",
			mutate: func(c *config.Config) {
				c.Environment = config.Production
				c.Auth.TrustGatewayHeaders = true
			},
		},
		{
			name:    "RS256 needs a public key",
			mutate:  func(c *config.Config) { c.Auth.SigningMethod = "RS256" },
			wantErr: "public key is required",
		},
		{
			name:    "unsupported signing method",
			mutate:  func(c *config.Config) { c.Auth.SigningMethod = "none" },
			wantErr: "unsupported JWT signing method",
		},
		{
			name:    "sample rate bounds",
			mutate:  func(c *config.Config) { c.Tracing.SampleRate = 1.5 },
			wantErr: "sample rate",
		},
		{
			name: "enabled rate limit must be positive",
			mutate: func(c *config.Config) {
				c.RateLimit.Enabled = true
				c.RateLimit.RequestsPerSecond = 0
			},
			wantErr: "rate limit must be positive",
		},
		{
			name:    "unknown environment",
			mutate:  func(c *config.Config) { c.Environment = "qa" },
			wantErr: "unknown environment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default(config.Development)
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvironmentDefaults(t *testing.T) {
	dev := config.Default(config.Development)
	prod := config.Default(config.Production)

	assert.Equal(t, "guildhall-dev", dev.AWS.TableName)
	assert.Equal(t, "guildhall-prod", prod.AWS.TableName)
	assert.True(t, dev.Server.Debug)
	assert.False(t, prod.Server.Debug)
	assert.True(t, prod.RateLimit.Enabled)
	assert.True(t, prod.CircuitBreaker.Enabled)
	assert.True(t, prod.IsProduction())
}

func TestInitialPolicy(t *testing.T) {
	cfg := config.Default(config.Development)
	cfg.Access.Moderators = []string{"env-mod"}

	policy, err := cfg.InitialPolicy()
	require.NoError(t, err)
	assert.True(t, policy.IsModerator("env-mod"))

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("moderators:\n  - file-mod\n"), 0o600))
	cfg.Access.PolicyFile = path

	policy, err = cfg.InitialPolicy()
	require.NoError(t, err)
	assert.True(t, policy.IsModerator("file-mod"))
	assert.False(t, policy.IsModerator("env-mod"), "the policy file replaces the moderator list")
}
