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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.MQTT.Host)
	assert.Equal(t, 1883, cfg.MQTT.Port)
	assert.Equal(t, "liquid_cooling_system", cfg.Liquidctl.DeviceName)
	assert.Equal(t, "liquidctl", cfg.Topics.Namespace)
	assert.Equal(t, "gpu", cfg.Topics.GPUNamespace)
	assert.True(t, cfg.Topics.IncludeUnits)
	assert.Equal(t, time.Duration(0), cfg.Collector.Interval)
	assert.Equal(t, "INFO", cfg.Logger.Level)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.MQTT.Host)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mqtt:
  host: broker.lan
  port: 8883
  username: sensors
topics:
  namespace: home/liquidctl
  gpu_namespace: home/gpu
  include_units: false
collector:
  interval: 30s
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "broker.lan", cfg.MQTT.Host)
	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, "sensors", cfg.MQTT.Username)
	assert.Equal(t, "home/liquidctl", cfg.Topics.Namespace)
	assert.Equal(t, "home/gpu", cfg.Topics.GPUNamespace)
	assert.False(t, cfg.Topics.IncludeUnits)
	assert.Equal(t, 30*time.Second, cfg.Collector.Interval)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mqtt:
  host: broker.lan
liquidctl:
  device_name: from_file
`), 0644))

	t.Setenv("MQTT_HOST", "env-broker.lan")
	t.Setenv("MQTT_PORT", "9001")
	t.Setenv("LIQUIDCTL_DEVICE_NAME", "from_env")
	t.Setenv("SENSOR2MQTT_GPU_NAMESPACE", "lab/gpu")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-broker.lan", cfg.MQTT.Host)
	assert.Equal(t, 9001, cfg.MQTT.Port)
	assert.Equal(t, "from_env", cfg.Liquidctl.DeviceName)
	assert.Equal(t, "lab/gpu", cfg.Topics.GPUNamespace)
}

func TestLoadTransformsSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transforms:
  cooling:
    script_code: "function transform(record) { return record; }"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Contains(t, cfg.Transforms, "cooling")
	assert.NotEmpty(t, cfg.Transforms["cooling"].ScriptCode)
}
