package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Flaque/filet"
	"github.com/UnknownOlympus/cartograph/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MustLoadFromEnv(t *testing.T) {
	t.Setenv("CARTOGRAPH_ENV", "local")
	t.Setenv("CARTOGRAPH_SERVICE_INTERVAL", "10m")
	t.Setenv("CARTOGRAPH_BATCH_SIZE", "250")
	t.Setenv("CARTOGRAPH_BATCH_JOB_TIMEOUT", "1h")
	t.Setenv("CARTOGRAPH_POSTGRES_HOST", "testHost")
	t.Setenv("CARTOGRAPH_POSTGRES_PORT", "12345")
	t.Setenv("CARTOGRAPH_POSTGRES_USER", "admin")
	t.Setenv("CARTOGRAPH_POSTGRES_PASSWORD", "adminpass")
	t.Setenv("CARTOGRAPH_POSTGRES_DB_NAME", "testName")
	t.Setenv("CARTOGRAPH_KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg := config.MustLoad()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "testHost", cfg.Database.Host)
	assert.Equal(t, "12345", cfg.Database.Port)
	assert.Equal(t, "admin", cfg.Database.User)
	assert.Equal(t, "adminpass", cfg.Database.Password)
	assert.Equal(t, "testName", cfg.Database.Name)
	assert.Equal(t, 10*time.Minute, cfg.Interval)
	assert.Equal(t, 250, cfg.Batch.Size)
	assert.Equal(t, time.Hour, cfg.Batch.JobTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
}

func TestMustLoad_Defaults(t *testing.T) {
	cfg := config.MustLoad()

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "here", cfg.ProviderType)
	assert.Equal(t, "https://batch.geocoder.ls.hereapi.com/6.2", cfg.Here.BatchURL)
	assert.Equal(t, 5*time.Second, cfg.Batch.PollInterval)
	assert.Equal(t, 5, cfg.Batch.RetryAttempts)
	assert.Equal(t, 600*time.Millisecond, cfg.Batch.RetryDelay)
	assert.Equal(t, 1000, cfg.CacheCapacity)
	assert.Equal(t, "CAN", cfg.Country.Default)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestMustLoad_ConfigFile(t *testing.T) {
	defer filet.CleanUp(t)

	dir := filet.TmpDir(t, "")
	path := filepath.Join(dir, "cartograph.yaml")
	filet.File(t, path, `
env: dev
provider:
  type: google
  google_key: google-key
batch:
  poll_interval: 2s
  size: 50
kafka:
  brokers:
    - broker-a:9092
    - broker-b:9092
  topic: tasks.geocoded
`)
	t.Setenv("CARTOGRAPH_CONFIG", path)
	t.Setenv("CARTOGRAPH_BATCH_SIZE", "75")

	cfg := config.MustLoad()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "google", cfg.ProviderType)
	assert.Equal(t, "google-key", cfg.GoogleAPIKey)
	assert.Equal(t, 2*time.Second, cfg.Batch.PollInterval)
	assert.Equal(t, 75, cfg.Batch.Size, "environment overrides the file")
	assert.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "tasks.geocoded", cfg.Kafka.Topic)
}

func TestMustLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CARTOGRAPH_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Panics(t, func() {
		config.MustLoad()
	})
}

func TestMustLoad_IntervalError(t *testing.T) {
	t.Setenv("CARTOGRAPH_SERVICE_INTERVAL", "error_value")

	assert.PanicsWithValue(t, "failed to parse interval from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_PortError(t *testing.T) {
	t.Setenv("CARTOGRAPH_MONITORING_PORT", "error_value")

	assert.PanicsWithValue(t, "failed to parse port for monitoring server from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_PollIntervalError(t *testing.T) {
	t.Setenv("CARTOGRAPH_BATCH_POLL_INTERVAL", "soon")

	assert.PanicsWithValue(t, "failed to parse batch poll interval from configuration", func() {
		config.MustLoad()
	})
}

func TestMustLoad_BatchSizeError(t *testing.T) {
	t.Setenv("CARTOGRAPH_BATCH_SIZE", "many")

	assert.PanicsWithValue(t, "failed to parse batch size, must be an integer", func() {
		config.MustLoad()
	})
}

func TestEnvCredentials(t *testing.T) {
	ctx := t.Context()

	t.Run("missing key", func(t *testing.T) {
		t.Setenv("CARTOGRAPH_HERE_API_KEY", "")
		creds := config.MustLoad().HereCredentials()

		_, err := creds.APIKey(ctx)

		require.ErrorIs(t, err, config.ErrMissingAPIKey)
	})

	t.Run("rotated key is picked up", func(t *testing.T) {
		t.Setenv("CARTOGRAPH_HERE_API_KEY", "first-key")
		creds := config.MustLoad().HereCredentials()

		key, err := creds.APIKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "first-key", key)

		t.Setenv("CARTOGRAPH_HERE_API_KEY", "second-key")
		key, err = creds.APIKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "second-key", key)
	})
}
