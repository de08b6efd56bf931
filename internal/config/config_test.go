package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(50<<20), cfg.Migration.MaxUploadBytes)
	assert.Equal(t, BackendNone, cfg.Storage.Backend)
	assert.Equal(t, "models", cfg.Storage.ModelFolder)
	assert.Equal(t, BackendNone, cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "modelmig:", cfg.Cache.Prefix)
	assert.False(t, cfg.Auth.Enabled())
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := `
server:
  port: 9090
  host: 127.0.0.1
  api_prefix: /models
storage:
  backend: disk
  model_folder: /var/lib/modelmig
cache:
  backend: redis
  redis_addr: cache:6379
  ttl: 10m
auth:
  jwt_secret: s3cret
log:
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modelmig.yaml"), []byte(content), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, "/models", cfg.Server.APIPrefix)
	assert.Equal(t, BackendDisk, cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/modelmig", cfg.Storage.ModelFolder)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_ExplicitPathAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("migration:\n  workers: 3\n"), 0o644))

	t.Setenv("MODELMIG_SERVER_PORT", "7070")
	t.Setenv("MODELMIG_AUDIT_DRIVER", "sqlite3")
	t.Setenv("MODELMIG_AUDIT_DSN", "file:audit.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Migration.Workers)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sqlite3", cfg.Audit.Driver)
	assert.Equal(t, "file:audit.db", cfg.Audit.DSN)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"prefix without slash", "server:\n  api_prefix: api\n", "must start with '/'"},
		{"prefix trailing slash", "server:\n  api_prefix: /api/\n", "must not end with '/'"},
		{"unknown storage", "storage:\n  backend: s3\n", `unknown storage.backend "s3"`},
		{"disk without folder", "storage:\n  backend: disk\n  model_folder: \"\"\n", "model_folder is required"},
		{"unknown cache", "cache:\n  backend: memcached\n", `unknown cache.backend "memcached"`},
		{"audit without dsn", "audit:\n  driver: pgx\n", "audit.dsn is required"},
		{"unknown log format", "log:\n  format: xml\n", `unknown log.format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "modelmig.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
