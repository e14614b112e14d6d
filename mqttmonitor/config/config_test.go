//go:build !tinygo

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sensor_data", cfg.MQTT.Topic)
	assert.Equal(t, 9*time.Hour, cfg.NTP.Offset)
	assert.Equal(t, time.Minute, cfg.NTP.Interval)
	assert.Equal(t, 10, cfg.NTP.Retries)
	assert.Equal(t, 5*time.Second, cfg.MQTT.ReconnectDelay)
	assert.Equal(t, 2*time.Second, cfg.Dwell)
	assert.Equal(t, 2048, cfg.ParseBudget)
	assert.Equal(t, 3*time.Second, cfg.Screen.Alternation)
	assert.Equal(t, 100*time.Millisecond, cfg.LoopDelay)
	assert.Equal(t, int64(1672531200), cfg.Clock.SyncedAfter)
}

func TestDefaultUsesLinkerBroker(t *testing.T) {
	old := broker
	t.Cleanup(func() { broker = old })

	broker = "10.0.0.9:1883"
	assert.Equal(t, "10.0.0.9:1883", Default().MQTT.Broker)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{name: "no broker", modify: func(c *Config) { c.MQTT.Broker = "" }, want: ErrNoBroker},
		{name: "no topic", modify: func(c *Config) { c.MQTT.Topic = "" }, want: ErrNoTopic},
		{name: "password without user", modify: func(c *Config) { c.MQTT.Password = "x" }},
		{name: "offset a day", modify: func(c *Config) { c.NTP.Offset = 24 * time.Hour }},
		{name: "zero retries", modify: func(c *Config) { c.NTP.Retries = 0 }},
		{name: "zero interval", modify: func(c *Config) { c.NTP.Interval = 0 }},
		{name: "zero parse budget", modify: func(c *Config) { c.ParseBudget = 0 }},
		{name: "zero alternation", modify: func(c *Config) { c.Screen.Alternation = 0 }},
		{name: "negative loop delay", modify: func(c *Config) { c.LoopDelay = -time.Second }},
		{name: "brightness", modify: func(c *Config) { c.Clock.Brightness = 101 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	err := os.WriteFile(path, []byte(`
mqtt:
  broker: broker.local:1883
  topic: office/co2
ntp:
  offset: 1h
  retries: 3
screen:
  alternation: 5s
log_level: debug
`), 0o600)
	require.NoError(t, err)

	t.Setenv("MONITOR_MQTT_TOPIC", "lab/co2")
	t.Setenv("MONITOR_CLOCK_BRIGHTNESS", "40")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "broker.local:1883", cfg.MQTT.Broker)
	assert.Equal(t, "lab/co2", cfg.MQTT.Topic, "environment wins over file")
	assert.Equal(t, time.Hour, cfg.NTP.Offset)
	assert.Equal(t, 3, cfg.NTP.Retries)
	assert.Equal(t, 5*time.Second, cfg.Screen.Alternation)
	assert.Equal(t, uint8(40), cfg.Clock.Brightness)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "pool.ntp.org", cfg.NTP.Server, "unset keys keep defaults")
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("MONITOR_PARSE_BUDGET", "0")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}
