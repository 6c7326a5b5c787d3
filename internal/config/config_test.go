package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	base := `
service_name: intraportal
log:
  mode: production
  level: info
db:
  host: localhost
  port: 5432
  password: ${DB_PASSWORD}
import:
  email_domain: salam.com
  lock_ttl: 2m
  max_upload_mb: 16
outbox:
  interval: 500ms
`
	local := `
log:
  mode: development
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.yaml"), []byte(local), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secrets.env"), []byte("DB_PASSWORD=s3cret\n"), 0o644))

	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("CONFIG_ENV", "local")
	t.Setenv("IMPORT_EMAIL_DOMAIN", "example.org")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "intraportal", cfg.ServiceName)
	assert.Equal(t, "development", cfg.Log.Mode)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, "s3cret", cfg.DB.Password)
	assert.Equal(t, "example.org", cfg.Import.EmailDomain)
	assert.Equal(t, 2*time.Minute, cfg.Import.LockTTLOrDefault())
	assert.Equal(t, int64(16<<20), cfg.Import.MaxUploadBytes())
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.IntervalOrDefault())
	assert.Equal(t, 24*time.Hour, cfg.Dedup.TTLOrDefault())
}

func TestLoadLeavesMissingSecretUnresolved(t *testing.T) {
	dir := t.TempDir()
	base := `
service_name: intraportal
jwt:
  secret: ${JWT_SECRET}
  issuer: intraportal
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(base), 0o644))

	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("CONFIG_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "${JWT_SECRET}", cfg.JWT.Secret)
	assert.Error(t, cfg.JWT.Validate())

	t.Setenv("JWT_SECRET", "rotated")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "rotated", cfg.JWT.Secret)
	assert.NoError(t, cfg.JWT.Validate())
}
