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
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 1.99, cfg.Booking.PlatformFee)
	assert.Equal(t, 0.10, cfg.Booking.DepositRate)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, "@every 5m", cfg.Reconcile.Schedule)
}

func TestLoadConfigFileAndEnvOverrides(t *testing.T) {
	dir := writeConfig(t, `
server:
  port: 9000
storage:
  driver: memory
booking:
  platform_fee: 2.5
outbox:
  poll_interval: 500ms
`)
	t.Setenv("BOOKING_STORAGE_DRIVER", "mongo")
	t.Setenv("BOOKING_JWT_SECRET", "from-env")
	t.Setenv("BOOKING_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, StorageDriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2.5, cfg.Booking.PlatformFee)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.PollInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := writeConfig(t, `
storage:
  driver: sqlite
booking:
  deposit_rate: 1.5
  platform_fee: -1
`)
	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown storage.driver "sqlite"`)
	assert.Contains(t, err.Error(), "deposit_rate")
	assert.Contains(t, err.Error(), "platform_fee")
}

func TestDSNPrefersURL(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())

	c.URL = "postgres://u:p@db/n"
	assert.Equal(t, "postgres://u:p@db/n", c.DSN())
}
