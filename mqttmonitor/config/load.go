//go:build !tinygo

package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MONITOR_MQTT_BROKER.
const EnvPrefix = "MONITOR"

// Load layers an optional config file (any format viper reads, chosen by
// extension) and MONITOR_* environment variables over Default. An empty path
// skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return Config{}, errors.Wrap(err, "decode log_level")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so that environment variables are seen by
// Unmarshal even when no file mentions them.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("wifi.ssid", d.WiFi.SSID)
	v.SetDefault("wifi.password", d.WiFi.Password)
	v.SetDefault("wifi.hostname", d.WiFi.Hostname)
	v.SetDefault("wifi.join_attempts", d.WiFi.JoinAttempts)
	v.SetDefault("wifi.join_delay", d.WiFi.JoinDelay)

	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.topic", d.MQTT.Topic)
	v.SetDefault("mqtt.client_id_prefix", d.MQTT.ClientIDPrefix)
	v.SetDefault("mqtt.username", d.MQTT.Username)
	v.SetDefault("mqtt.password", d.MQTT.Password)
	v.SetDefault("mqtt.reconnect_delay", d.MQTT.ReconnectDelay)
	v.SetDefault("mqtt.timeout", d.MQTT.Timeout)

	v.SetDefault("ntp.server", d.NTP.Server)
	v.SetDefault("ntp.offset", d.NTP.Offset)
	v.SetDefault("ntp.interval", d.NTP.Interval)
	v.SetDefault("ntp.retries", d.NTP.Retries)
	v.SetDefault("ntp.retry_delay", d.NTP.RetryDelay)
	v.SetDefault("ntp.timeout", d.NTP.Timeout)

	v.SetDefault("screen.alternation", d.Screen.Alternation)

	v.SetDefault("clock.brightness", d.Clock.Brightness)
	v.SetDefault("clock.synced_after", d.Clock.SyncedAfter)

	v.SetDefault("loop_delay", d.LoopDelay)
	v.SetDefault("dwell", d.Dwell)
	v.SetDefault("parse_budget", d.ParseBudget)
	v.SetDefault("log_level", d.LogLevel.String())
}
