package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "postgres", cfg.Database.User)
	assert.Equal(t, "aquasense", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "aquasense-alert", cfg.MQTT.ClientID)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	assert.Equal(t, 48, cfg.Alert.RetentionHours)
	assert.Equal(t, 30, cfg.Alert.LivenessSeconds)
	assert.Equal(t, 60, cfg.Alert.CallDelaySeconds)
	assert.Equal(t, "aquasense:alerts", cfg.Alert.Stream)
	assert.Equal(t, "aquasense/telemetry", cfg.Alert.Topic)

	assert.Equal(t, 48*time.Hour, cfg.RetentionWindow())
	assert.Equal(t, 30*time.Second, cfg.LivenessTimeout())
	assert.Equal(t, 60*time.Second, cfg.CallDelay())

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_USER", "test-user")
	os.Setenv("DB_NAME", "test-db")
	os.Setenv("REDIS_ADDR", "test-redis:6380")
	os.Setenv("MQTT_BROKER", "tcp://test-broker:1883")
	os.Setenv("ALERT_RETENTION_HOURS", "24")
	os.Setenv("ALERT_LIVENESS_SECONDS", "10")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	// 验证环境变量覆盖
	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, "test-user", cfg.Database.User)
	assert.Equal(t, "test-db", cfg.Database.Database)
	assert.Equal(t, "test-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "tcp://test-broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, 24, cfg.Alert.RetentionHours)
	assert.Equal(t, 10, cfg.Alert.LivenessSeconds)
	assert.Equal(t, "debug", cfg.Log.Level)

	os.Clearenv()
}

func TestLoad_ConfigFileOverride(t *testing.T) {
	os.Clearenv()

	yamlContent := `
http:
  addr: ":9090"
alert:
  retention_hours: 72
  stream: "custom:alerts"
log:
  level: warn
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0o644))
	os.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	// YAML 覆盖环境默认值
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 72, cfg.Alert.RetentionHours)
	assert.Equal(t, "custom:alerts", cfg.Alert.Stream)
	assert.Equal(t, "warn", cfg.Log.Level)

	// 未覆盖的字段保持默认
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 30, cfg.Alert.LivenessSeconds)

	os.Clearenv()
}

func TestLoad_ConfigFileMissing(t *testing.T) {
	os.Clearenv()
	os.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	_, err := Load()
	assert.Error(t, err)

	os.Clearenv()
}

func TestGetEnv(t *testing.T) {
	os.Clearenv()
	value := getEnv("TEST_KEY", "default-value")
	assert.Equal(t, "default-value", value)

	os.Setenv("TEST_KEY", "env-value")
	value = getEnv("TEST_KEY", "default-value")
	assert.Equal(t, "env-value", value)

	os.Unsetenv("TEST_KEY")
}

func TestGetEnvInt(t *testing.T) {
	os.Clearenv()
	value, err := getEnvInt("TEST_INT", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	os.Setenv("TEST_INT", "7")
	value, err = getEnvInt("TEST_INT", 42)
	require.NoError(t, err)
	assert.Equal(t, 7, value)

	// 非法值报错，不静默回退默认值
	os.Setenv("TEST_INT", "not-a-number")
	_, err = getEnvInt("TEST_INT", 42)
	assert.Error(t, err)

	os.Unsetenv("TEST_INT")
}

func TestLoad_MalformedIntEnv(t *testing.T) {
	os.Clearenv()
	os.Setenv("ALERT_RETENTION_HOURS", "two-days")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALERT_RETENTION_HOURS")

	os.Clearenv()
}
