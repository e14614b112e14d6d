// Package ntp keeps a wall-clock reading synchronised against an NTP server
// and exposes it in the broken-down form the displays need.
//
// The Client never sets the system clock. It remembers the server time at
// the last sync together with the local monotonic reading, and derives the
// current time from the elapsed local time.
package ntp

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/harveysanders/sensorclock/mqttmonitor/clock"
)

const (
	secondsPerDay  = 86400
	secondsPerHour = 3600
)

// rtcPlausibleAfter is the earliest RTC reading trusted when seeding:
// 2023-01-01T00:00:00Z.
var rtcPlausibleAfter = time.Unix(1672531200, 0)

// ErrNoExchanger is returned when the Client has nothing to sync against.
var ErrNoExchanger = errors.New("ntp: no exchanger")

// Exchanger performs one request/response round trip with a time server and
// returns the server's transmit time.
type Exchanger interface {
	Exchange() (time.Time, error)
}

// ExchangeFunc adapts a function to the Exchanger interface.
type ExchangeFunc func() (time.Time, error)

// Exchange calls f.
func (f ExchangeFunc) Exchange() (time.Time, error) { return f() }

// RTC is a battery-backed real-time clock that holds UTC across reboots.
// *pcf8563.Device satisfies it.
type RTC interface {
	ReadTime() (time.Time, error)
	SetTime(t time.Time) error
}

// Config configures a Client.
type Config struct {
	// Offset is added to UTC for every reading, e.g. 9h for JST.
	Offset time.Duration
	// Interval is how often Update resyncs.
	Interval time.Duration
	// Backoff is the least time Update waits after a failed sync before
	// trying again. Zero retries on every call.
	Backoff time.Duration
	// Clock is the local time base. Defaults to clock.New().
	Clock clock.Clock
	// RTC, if set, is written after every sync and can seed the client at boot.
	RTC    RTC
	Logger *slog.Logger
}

// Client tracks network time.
type Client struct {
	ex       Exchanger
	offset   time.Duration
	interval time.Duration
	backoff  time.Duration
	clock    clock.Clock
	rtc      RTC
	log      *slog.Logger

	bootedAt   time.Time // Local reading when the client was created.
	base       time.Time // UTC reference time, zero until synced or seeded.
	baseAt     time.Time // Local reading matching base.
	lastUpdate time.Time // Local reading of the last successful network sync.
	lastFailed time.Time
}

// NewClient returns a Client that syncs through ex.
func NewClient(ex Exchanger, cfg Config) *Client {
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		ex:       ex,
		offset:   cfg.Offset,
		interval: cfg.Interval,
		backoff:  cfg.Backoff,
		clock:    c,
		rtc:      cfg.RTC,
		log:      logger,
		bootedAt: c.Now(),
	}
}

// Update syncs if the client has never synced over the network or the
// interval has elapsed since the last sync. It reports whether a sync
// happened.
func (c *Client) Update() (bool, error) {
	now := c.clock.Now()
	if !c.lastUpdate.IsZero() && now.Sub(c.lastUpdate) < c.interval {
		return false, nil
	}
	if !c.lastFailed.IsZero() && now.Sub(c.lastFailed) < c.backoff {
		return false, nil
	}
	if err := c.ForceUpdate(); err != nil {
		c.lastFailed = now
		return false, err
	}
	c.lastFailed = time.Time{}
	return true, nil
}

// ForceUpdate syncs now regardless of the interval.
func (c *Client) ForceUpdate() error {
	if c.ex == nil {
		return ErrNoExchanger
	}
	serverTime, err := c.ex.Exchange()
	if err != nil {
		return errors.New("ntp exchange:" + err.Error())
	}
	now := c.clock.Now()
	c.base = serverTime.UTC()
	c.baseAt = now
	c.lastUpdate = now

	if c.rtc != nil {
		if err := c.rtc.SetTime(c.base); err != nil {
			c.log.Warn("ntp:rtc-write-failed", slog.String("err", err.Error()))
		}
	}
	c.log.Debug("ntp:synced", slog.String("utc", c.base.Format(time.RFC3339)))
	return nil
}

// SyncWithRetries calls ForceUpdate up to attempts times, sleeping delay
// between failures. It returns the last error if every attempt failed.
func (c *Client) SyncWithRetries(attempts int, delay time.Duration, sleep func(time.Duration)) error {
	if sleep == nil {
		sleep = time.Sleep
	}
	err := ErrNoExchanger
	for i := 0; i < attempts; i++ {
		if err = c.ForceUpdate(); err == nil {
			return nil
		}
		c.log.Warn("ntp:sync-attempt-failed", slog.Int("attempt", i+1), slog.String("err", err.Error()))
		if i < attempts-1 {
			sleep(delay)
		}
	}
	return err
}

// SeedFromRTC loads the time from the RTC if it holds a plausible date. The
// client still counts as never synced, so the next Update goes to the
// network.
func (c *Client) SeedFromRTC() error {
	if c.rtc == nil {
		return errors.New("ntp: no rtc")
	}
	t, err := c.rtc.ReadTime()
	if err != nil {
		return errors.New("ntp rtc read:" + err.Error())
	}
	if t.Before(rtcPlausibleAfter) {
		return errors.New("ntp: rtc time not plausible: " + t.Format(time.RFC3339))
	}
	c.base = t.UTC()
	c.baseAt = c.clock.Now()
	return nil
}

// IsSet reports whether a network sync has ever succeeded.
func (c *Client) IsSet() bool {
	return !c.lastUpdate.IsZero()
}

// LastUpdate returns the local time of the last successful network sync.
func (c *Client) LastUpdate() time.Time {
	return c.lastUpdate
}

// Epoch returns seconds since the Unix epoch with the configured offset
// applied. Before any sync or seed it counts up from the offset, so callers
// can detect an unsynced clock by comparing against a known past date.
func (c *Client) Epoch() int64 {
	now := c.clock.Now()
	if c.base.IsZero() {
		return int64(c.offset/time.Second) + int64(now.Sub(c.bootedAt)/time.Second)
	}
	return c.base.Add(now.Sub(c.baseAt)).Add(c.offset).Unix()
}

// Hours returns the hour of day, 0-23.
func (c *Client) Hours() int {
	return int(mod(c.Epoch(), secondsPerDay) / secondsPerHour)
}

// Minutes returns the minute of the hour, 0-59.
func (c *Client) Minutes() int {
	return int(mod(c.Epoch(), secondsPerHour) / 60)
}

// Seconds returns the second of the minute, 0-59.
func (c *Client) Seconds() int {
	return int(mod(c.Epoch(), 60))
}

// FormattedTime returns the time of day as "HH:MM:SS".
func (c *Client) FormattedTime() string {
	var buf [8]byte
	return string(c.AppendFormattedTime(buf[:0]))
}

// AppendFormattedTime appends "HH:MM:SS" to dst.
func (c *Client) AppendFormattedTime(dst []byte) []byte {
	epoch := c.Epoch()
	day := mod(epoch, secondsPerDay)
	dst = appendTwoDigits(dst, int(day/secondsPerHour))
	dst = append(dst, ':')
	dst = appendTwoDigits(dst, int(day%secondsPerHour/60))
	dst = append(dst, ':')
	return appendTwoDigits(dst, int(day%60))
}

// Now returns the current time in a fixed zone matching the offset.
func (c *Client) Now() time.Time {
	offset := int64(c.offset / time.Second)
	return time.Unix(c.Epoch()-offset, 0).In(time.FixedZone("", int(offset)))
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func appendTwoDigits(dst []byte, v int) []byte {
	return append(dst, byte('0'+v/10), byte('0'+v%10))
}
