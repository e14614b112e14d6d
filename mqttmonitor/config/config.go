// Package config holds the monitor's load-time settings.
//
// Firmware builds bake secrets in with linker flags:
//
//	tinygo flash -target=pico-w -ldflags="-X 'github.com/harveysanders/sensorclock/mqttmonitor/config.ssid=MyWiFi' -X 'github.com/harveysanders/sensorclock/mqttmonitor/config.pass=secret'" ./mqttmonitor
//
// Host builds can additionally read a file and MONITOR_* environment
// variables with Load.
package config

import (
	"errors"
	"log/slog"
	"time"
)

// Set via linker flags.
var (
	ssid   string
	pass   string
	broker string
)

type Config struct {
	WiFi   WiFi   `mapstructure:"wifi"`
	MQTT   MQTT   `mapstructure:"mqtt"`
	NTP    NTP    `mapstructure:"ntp"`
	Screen Screen `mapstructure:"screen"`
	Clock  Clock  `mapstructure:"clock"`

	// LoopDelay is the pause between passes of the control loop.
	LoopDelay time.Duration `mapstructure:"loop_delay"`
	// Dwell is how long setup banners stay on screen.
	Dwell time.Duration `mapstructure:"dwell"`
	// ParseBudget caps the size of a payload handed to the parser.
	ParseBudget int        `mapstructure:"parse_budget"`
	LogLevel    slog.Level `mapstructure:"-"` // Decoded separately from its text form.
}

type WiFi struct {
	SSID     string `mapstructure:"ssid"`
	Password string `mapstructure:"password"`
	Hostname string `mapstructure:"hostname"`
	// JoinAttempts bounds the join loop. Zero retries forever.
	JoinAttempts int           `mapstructure:"join_attempts"`
	JoinDelay    time.Duration `mapstructure:"join_delay"`
}

type MQTT struct {
	// Broker is host:port.
	Broker         string        `mapstructure:"broker"`
	Topic          string        `mapstructure:"topic"`
	ClientIDPrefix string        `mapstructure:"client_id_prefix"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type NTP struct {
	Server string `mapstructure:"server"`
	// Offset is added to UTC, e.g. 9h for Japan.
	Offset     time.Duration `mapstructure:"offset"`
	Interval   time.Duration `mapstructure:"interval"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type Screen struct {
	// Alternation is how long each data view stays up.
	Alternation time.Duration `mapstructure:"alternation"`
}

type Clock struct {
	Brightness uint8 `mapstructure:"brightness"`
	// SyncedAfter is the earliest epoch second treated as a synced clock.
	SyncedAfter int64 `mapstructure:"synced_after"`
}

// Default returns the stock settings with any linker-flag secrets applied.
func Default() Config {
	b := broker
	if b == "" {
		b = "192.168.3.82:1883"
	}
	return Config{
		WiFi: WiFi{
			SSID:         ssid,
			Password:     pass,
			Hostname:     "sensorclock",
			JoinAttempts: 0,
			JoinDelay:    5 * time.Second,
		},
		MQTT: MQTT{
			Broker:         b,
			Topic:          "sensor_data",
			ClientIDPrefix: "sensorclock-",
			ReconnectDelay: 5 * time.Second,
			Timeout:        5 * time.Second,
		},
		NTP: NTP{
			Server:     "pool.ntp.org",
			Offset:     9 * time.Hour,
			Interval:   time.Minute,
			Retries:    10,
			RetryDelay: time.Second,
			Timeout:    3 * time.Second,
		},
		Screen: Screen{
			Alternation: 3 * time.Second,
		},
		Clock: Clock{
			Brightness:  80,
			SyncedAfter: 1672531200, // 2023-01-01T00:00:00Z
		},
		LoopDelay:   100 * time.Millisecond,
		Dwell:       2 * time.Second,
		ParseBudget: 2048,
		LogLevel:    slog.LevelInfo,
	}
}

var (
	ErrNoBroker = errors.New("config: empty mqtt broker address")
	ErrNoTopic  = errors.New("config: empty mqtt topic")
)

// Validate rejects settings the monitor cannot run with.
func (c Config) Validate() error {
	if c.MQTT.Broker == "" {
		return ErrNoBroker
	}
	if c.MQTT.Topic == "" {
		return ErrNoTopic
	}
	if c.MQTT.Password != "" && c.MQTT.Username == "" {
		return errors.New("config: mqtt password set without username")
	}
	if c.NTP.Offset <= -24*time.Hour || c.NTP.Offset >= 24*time.Hour {
		return errors.New("config: ntp offset out of range: " + c.NTP.Offset.String())
	}
	if c.NTP.Retries < 1 {
		return errors.New("config: ntp retries must be at least 1")
	}
	if c.NTP.Interval <= 0 {
		return errors.New("config: ntp interval must be positive")
	}
	if c.ParseBudget <= 0 {
		return errors.New("config: parse budget must be positive")
	}
	if c.Screen.Alternation <= 0 {
		return errors.New("config: screen alternation must be positive")
	}
	if c.LoopDelay < 0 || c.MQTT.ReconnectDelay < 0 || c.Dwell < 0 {
		return errors.New("config: negative delay")
	}
	if c.Clock.Brightness > 100 {
		return errors.New("config: clock brightness above 100")
	}
	return nil
}
