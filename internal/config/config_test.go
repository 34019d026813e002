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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  request_timeout: 3s
database:
  host: db
  name: recetas
storage:
  driver: memory
jwt:
  secret: s3cret
outbox:
  batch_size: 10
  cleanup_spec: "0 3 * * *"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port, "defaults fill unset keys")
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 10, cfg.Outbox.BatchSize)
	assert.Equal(t, "0 3 * * *", cfg.Outbox.CleanupSpec)
	assert.Equal(t, 10*time.Minute, cfg.Cache.MedicationTTL)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: from-file\n")
	t.Setenv("RX_JWT_SECRET", "from-env")
	t.Setenv("RX_DATABASE_PORT", "6543")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 6543, cfg.Database.Port)
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: x\nstorage:\n  driver: mongo\n")

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestValidateRequiresSecret(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: memory\n")

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "jwt.secret")
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=n sslmode=disable", c.DSN())
}
