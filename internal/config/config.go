package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// PresetsConfig holds preset definition loading settings.
type PresetsConfig struct {
	Dir string `json:"dir" mapstructure:"dir"`
}

// StoreConfig holds named-variable persistence settings.
type StoreConfig struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	SqlitePath    string        `json:"sqlitePath" mapstructure:"sqlitePath"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// TelemetryConfig holds InfluxDB progress telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// GraylogConfig holds GELF log forwarding settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("tickRateHz", 18)

	viper.SetDefault("presets.dir", "./presets")

	viper.SetDefault("store.enabled", true)
	viper.SetDefault("store.sqlitePath", "./aircraft_vars.db")
	viper.SetDefault("store.flushInterval", "30s")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.protocol", "http")
	viper.SetDefault("telemetry.host", "localhost")
	viper.SetDefault("telemetry.port", "8086")
	viper.SetDefault("telemetry.token", "")
	viper.SetDefault("telemetry.org", "aircraft-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("monitor.interval", "10s")

	viper.SetConfigName("aircraft_presets.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetPresetsConfig returns the preset loading configuration.
func GetPresetsConfig() PresetsConfig {
	return PresetsConfig{
		Dir: viper.GetString("presets.dir"),
	}
}

// GetStoreConfig returns the variable persistence configuration.
func GetStoreConfig() StoreConfig {
	return StoreConfig{
		Enabled:       viper.GetBool("store.enabled"),
		SqlitePath:    viper.GetString("store.sqlitePath"),
		FlushInterval: viper.GetDuration("store.flushInterval"),
	}
}

// GetTelemetryConfig returns the InfluxDB telemetry configuration.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:  viper.GetBool("telemetry.enabled"),
		Protocol: viper.GetString("telemetry.protocol"),
		Host:     viper.GetString("telemetry.host"),
		Port:     viper.GetString("telemetry.port"),
		Token:    viper.GetString("telemetry.token"),
		Org:      viper.GetString("telemetry.org"),
	}
}

// GetGraylogConfig returns the GELF forwarding configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetMonitorInterval returns how often the status monitor reports.
func GetMonitorInterval() time.Duration {
	return viper.GetDuration("monitor.interval")
}
