package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderMemory, cfg.Checker.DBProvider)
	assert.Equal(t, 24*time.Hour, cfg.Checker.CacheTTL)
	assert.Equal(t, "localhost:6379", cfg.Checker.Redis.Address())
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.True(t, cfg.Mail.ValidateCerts)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CHECKER_DB_PROVIDER", "Redis")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CHECKER_API_KEY", "secret")
	t.Setenv("CHECKER_CACHE_TTL", "3600")
	t.Setenv("CHECKER_API_TIMEOUT", "2s")
	t.Setenv("CHECKER_BLOCKED_DOMAINS", "mailinator.com, yopmail.com ,")
	t.Setenv("SUPPRESS_SEND", "1")
	t.Setenv("MAIL_PORT", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderRedis, cfg.Checker.DBProvider)
	assert.Equal(t, "cache.internal:6380", cfg.Checker.Redis.Address())
	assert.Equal(t, 2, cfg.Checker.Redis.DB)
	assert.Equal(t, "secret", cfg.Checker.APIKey)
	assert.Equal(t, time.Hour, cfg.Checker.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.Checker.APITimeout)
	assert.Equal(t, []string{"mailinator.com", "yopmail.com"}, cfg.Checker.SeedDomains)
	assert.True(t, cfg.Mail.SuppressSend)
	assert.Equal(t, 25, cfg.Mail.Port)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("CHECKER_DB_PROVIDER", "memcached")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memcached")
}

func TestLoadRequiresAdminSecretInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ADMIN_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seeds.yaml")
	content := `
domains:
  - mailinator.com
  - guerrillamail.com
addresses:
  - spammer@example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("CHECKER_BLOCKED_DOMAINS", "yopmail.com")
	t.Setenv("CHECKER_SEED_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"yopmail.com", "mailinator.com", "guerrillamail.com"}, cfg.Checker.SeedDomains)
	assert.Equal(t, []string{"spammer@example.com"}, cfg.Checker.SeedAddresses)
}

func TestLoadSeedFileMissing(t *testing.T) {
	cfg := DefaultCheckerConfig()
	err := cfg.LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
