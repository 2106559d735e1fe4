package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/eddielth/sensor2mqtt/logger"
)

// Config is the full application configuration.
type Config struct {
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Liquidctl  LiquidctlConfig  `mapstructure:"liquidctl"`
	Topics     TopicsConfig     `mapstructure:"topics"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Transforms TransformsConfig `mapstructure:"transforms"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	ClientID string `mapstructure:"client_id"`
}

// LiquidctlConfig holds cooling-device settings.
type LiquidctlConfig struct {
	// DeviceName is the display name used when the status output carries
	// no device or description field of its own.
	DeviceName string `mapstructure:"device_name"`
}

// TopicsConfig holds the two topic-namespace prefixes and payload options.
type TopicsConfig struct {
	Namespace    string `mapstructure:"namespace"`
	GPUNamespace string `mapstructure:"gpu_namespace"`
	IncludeUnits bool   `mapstructure:"include_units"`
}

// CollectorConfig holds run-cycle settings.
type CollectorConfig struct {
	// Interval enables daemon mode when > 0; zero means one-shot.
	Interval time.Duration `mapstructure:"interval"`
}

// TransformConfig configures one JavaScript record transform.
type TransformConfig struct {
	ScriptPath string `mapstructure:"script_path"`
	ScriptCode string `mapstructure:"script_code"`
}

// TransformsConfig maps a source kind ("cooling", "gpu") to its transform.
type TransformsConfig map[string]TransformConfig

// LoggerConfig holds the logging settings.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Console    bool   `mapstructure:"console"`
}

// ChangeCallback is invoked with the re-parsed configuration after the
// config file changes on disk.
type ChangeCallback func(cfg *Config) error

func setDefaults(v *viper.Viper) {
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("liquidctl.device_name", "liquid_cooling_system")
	v.SetDefault("topics.namespace", "liquidctl")
	v.SetDefault("topics.gpu_namespace", "gpu")
	v.SetDefault("topics.include_units", true)
	v.SetDefault("collector.interval", time.Duration(0))
	v.SetDefault("logger.level", "INFO")
	v.SetDefault("logger.file_path", "/var/log/sensor2mqtt.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.console", true)
}

// bindEnv wires the environment variables that override both the defaults
// and the config file. The MQTT_* and LIQUIDCTL_* names predate this
// implementation and are kept for compatibility with existing deployments.
func bindEnv(v *viper.Viper) {
	v.BindEnv("mqtt.host", "MQTT_HOST")
	v.BindEnv("mqtt.port", "MQTT_PORT")
	v.BindEnv("mqtt.username", "MQTT_USER")
	v.BindEnv("mqtt.password", "MQTT_PASSWORD")
	v.BindEnv("liquidctl.device_name", "LIQUIDCTL_DEVICE_NAME")
	v.BindEnv("topics.namespace", "SENSOR2MQTT_NAMESPACE")
	v.BindEnv("topics.gpu_namespace", "SENSOR2MQTT_GPU_NAMESPACE")
	v.BindEnv("topics.include_units", "SENSOR2MQTT_INCLUDE_UNITS")
	v.BindEnv("logger.level", "SENSOR2MQTT_LOG_LEVEL")
}

// Load reads configuration with precedence: environment variables over the
// config file over built-in defaults. A missing config file is not an
// error; the file is optional.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %v", configPath, err)
			}
		} else {
			logger.Info("no config file at %s, using defaults and environment", configPath)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	return &config, nil
}

// WatchConfig watches the config file and invokes callback on change.
// Changes are debounced so editors that write twice do not double-fire.
func WatchConfig(configPath string, callback ChangeCallback) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}

	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	v.SetConfigFile(absPath)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("cannot watch %s: %v", absPath, err)
	}

	var lastChange time.Time
	const debounce = 2 * time.Second

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write != fsnotify.Write {
			return
		}
		now := time.Now()
		if now.Sub(lastChange) < debounce {
			return
		}
		lastChange = now

		logger.Info("config file changed: %s", e.Name)

		var newConfig Config
		if err := v.Unmarshal(&newConfig); err != nil {
			logger.Error("failed to parse updated config: %v", err)
			return
		}

		if err := callback(&newConfig); err != nil {
			logger.Error("failed to apply updated config: %v", err)
		}
	})
	v.WatchConfig()

	return nil
}
