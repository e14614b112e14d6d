// Package monitor runs the sensor monitor's single control loop: it feeds
// broker messages through the payload pipeline onto the screen, alternates
// the data views, keeps network time, and drives the external clock unit.
//
// Everything runs on the caller's goroutine. No step is fatal; failures are
// logged, shown on the screen where the user needs to know, and retried on
// a later pass.
package monitor

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/harveysanders/sensorclock/mqttmonitor/clock"
	"github.com/harveysanders/sensorclock/mqttmonitor/config"
	"github.com/harveysanders/sensorclock/mqttmonitor/digiclock"
	"github.com/harveysanders/sensorclock/mqttmonitor/screen"
	"github.com/harveysanders/sensorclock/mqttmonitor/sensor"
)

// Subscriber is the broker session. *mqtt.Client satisfies it; its
// OnMessage should be set to Monitor.HandleMessage.
type Subscriber interface {
	Connect(ctx context.Context, conn io.ReadWriteCloser) error
	Poll() error
	IsConnected() bool
	Err() error
}

// TimeSource keeps network time. *ntp.Client satisfies it.
type TimeSource interface {
	Update() (bool, error)
	SyncWithRetries(attempts int, delay time.Duration, sleep func(time.Duration)) error
	Epoch() int64
	Hours() int
	Minutes() int
	FormattedTime() string
}

// ClockUnit is the external seven-segment clock. *digiclock.Device
// satisfies it.
type ClockUnit interface {
	Configure() error
	SetBrightness(level uint8) error
	SetString(s string) error
}

// Outcomes of one inbound message.
const (
	OutcomeShown       = "shown"
	OutcomeInvalidJSON = "invalid_json"
	OutcomeParseFailed = "parse_failed"
)

// Metrics counts what the loop does.
type Metrics interface {
	MessageHandled(outcome string)
	BrokerConnect(err error)
}

type noMetrics struct{}

func (noMetrics) MessageHandled(string) {}
func (noMetrics) BrokerConnect(error)   {}

// Deps are the collaborators a Monitor drives.
type Deps struct {
	View   *screen.View
	Broker Subscriber
	// Dial opens a fresh transport to the broker.
	Dial func(ctx context.Context) (io.ReadWriteCloser, error)
	Time TimeSource
	// Join brings the network link up and returns the local address. Nil
	// when the link is managed elsewhere.
	Join func(ctx context.Context) (string, error)
	// Clock is the external clock unit. Nil runs without one.
	Clock ClockUnit
	Now   clock.Clock
	Sleep func(time.Duration)
	// Logger receives the message log and every degraded-state warning.
	Logger *slog.Logger
	// Metrics is optional.
	Metrics Metrics
}

type Monitor struct {
	cfg    config.Config
	view   *screen.View
	broker Subscriber
	dial   func(ctx context.Context) (io.ReadWriteCloser, error)
	time   TimeSource
	join   func(ctx context.Context) (string, error)
	unit   ClockUnit
	now    clock.Clock
	sleep  func(time.Duration)
	log    *slog.Logger
	stats  Metrics

	parser      sensor.Parser
	clock       *digiclock.Updater
	lastAttempt time.Time
	buf         []byte
}

// New returns a Monitor. The clock unit is treated as absent until Setup
// initialises it.
func New(cfg config.Config, d Deps) *Monitor {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := d.Now
	if now == nil {
		now = clock.New()
	}
	sleep := d.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	var stats Metrics = noMetrics{}
	if d.Metrics != nil {
		stats = d.Metrics
	}
	return &Monitor{
		cfg:    cfg,
		view:   d.View,
		broker: d.Broker,
		dial:   d.Dial,
		time:   d.Time,
		join:   d.Join,
		unit:   d.Clock,
		now:    now,
		sleep:  sleep,
		log:    logger,
		stats:  stats,
		parser: sensor.Parser{MaxSize: cfg.ParseBudget},
		clock:  digiclock.NewUpdater(nil, cfg.Clock.SyncedAfter),
		buf:    make([]byte, 0, cfg.ParseBudget),
	}
}

// Setup runs the startup sequence: clock unit, network link, time sync,
// one broker attempt, then the first full redraw. Failures leave the
// monitor in a degraded state; Run keeps retrying what can be retried.
func (m *Monitor) Setup(ctx context.Context) {
	m.log.Info("monitor:starting")
	m.view.ShowStatus("Starting...")

	m.setupClock()
	m.setupLink(ctx)
	m.setupTime()

	m.view.ShowStatus("MQTT connecting...")
	if err := m.connect(ctx); err != nil {
		m.view.AppendStatus("Failed, rc=" + err.Error() + " retry in " + m.cfg.MQTT.ReconnectDelay.String())
	} else {
		m.view.AppendStatus("MQTT Connected!")
	}
	m.sleep(m.cfg.Dwell / 2)

	m.view.Redraw()
	m.log.Info("monitor:setup-complete")
}

func (m *Monitor) setupClock() {
	if m.unit == nil {
		m.log.Info("clock:absent")
		return
	}
	err := m.unit.Configure()
	if err == nil {
		err = m.unit.SetBrightness(m.cfg.Clock.Brightness)
	}
	if err == nil {
		err = m.unit.SetString("----")
	}
	if err != nil {
		m.log.Error("clock:init-failed", slog.String("err", err.Error()))
		m.view.ShowClockError()
		m.sleep(m.cfg.Dwell)
		return
	}
	m.clock = digiclock.NewUpdater(m.unit, m.cfg.Clock.SyncedAfter)
	m.log.Info("clock:ready")
}

func (m *Monitor) setupLink(ctx context.Context) {
	if m.join == nil {
		return
	}
	m.view.ShowStatus("WiFi connecting...")
	addr, err := m.join(ctx)
	if err != nil {
		m.log.Error("wifi:join-failed", slog.String("err", err.Error()))
		m.view.ShowStatus("WiFi Failed!")
		m.sleep(m.cfg.Dwell)
		return
	}
	m.log.Info("wifi:connected", slog.String("addr", addr))
	m.view.ShowStatus("WiFi Connected!", addr)
	m.sleep(m.cfg.Dwell)
}

func (m *Monitor) setupTime() {
	m.view.ShowStatus("NTP Sync...")
	err := m.time.SyncWithRetries(m.cfg.NTP.Retries, m.cfg.NTP.RetryDelay, func(d time.Duration) {
		m.view.Progress()
		m.sleep(d)
	})
	if err != nil {
		m.log.Error("ntp:sync-failed", slog.String("err", err.Error()))
		m.view.ShowStatus("NTP Failed!")
	} else {
		m.log.Info("ntp:synced", slog.String("time", m.time.FormattedTime()))
		m.view.ShowStatus("NTP Synced!", m.time.FormattedTime())
	}
	m.sleep(m.cfg.Dwell)
}

// connect makes one attempt to dial the broker and subscribe.
func (m *Monitor) connect(ctx context.Context) error {
	m.lastAttempt = m.now.Now()
	conn, err := m.dial(ctx)
	if err != nil {
		m.log.Error("mqtt:dial-failed", slog.String("broker", m.cfg.MQTT.Broker), slog.String("err", err.Error()))
		m.stats.BrokerConnect(err)
		return err
	}
	err = m.broker.Connect(ctx, conn)
	if err != nil {
		m.log.Error("mqtt:connect-failed", slog.String("broker", m.cfg.MQTT.Broker), slog.String("err", err.Error()))
	}
	m.stats.BrokerConnect(err)
	return err
}

// Step makes one pass of the control loop.
func (m *Monitor) Step(ctx context.Context) {
	now := m.now.Now()

	if !m.broker.IsConnected() && now.Sub(m.lastAttempt) >= m.cfg.MQTT.ReconnectDelay {
		m.log.Warn("mqtt:reconnecting")
		m.connect(ctx)
	}
	if m.broker.IsConnected() {
		if err := m.broker.Poll(); err != nil {
			m.log.Warn("mqtt:poll-failed", slog.String("err", err.Error()))
		}
	}

	m.view.Tick(now)

	if _, err := m.time.Update(); err != nil {
		m.log.Debug("ntp:update-failed", slog.String("err", err.Error()))
	}

	wrote, err := m.clock.Update(m.time.Epoch(), m.time.Hours(), m.time.Minutes())
	if err != nil {
		m.log.Warn("clock:write-failed", slog.String("err", err.Error()))
	} else if wrote {
		m.log.Debug("clock:updated", slog.Int("minute", m.clock.LastMinute()))
	}
}

// Run repeats Step with the configured loop delay until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		m.Step(ctx)
		m.sleep(m.cfg.LoopDelay)
	}
}

// HandleMessage runs one inbound payload through the pipeline. Rejected
// payloads show an error panel and leave the current record untouched.
func (m *Monitor) HandleMessage(topic string, payload []byte) {
	m.buf = sensor.AppendPrintable(m.buf[:0], payload)
	s := string(m.buf)
	m.log.Info("monitor:message", slog.String("topic", topic), slog.String("payload", s))

	if !sensor.LooksLikeObject(s) {
		m.log.Warn("monitor:invalid-json")
		m.view.ShowError("Invalid JSON")
		m.stats.MessageHandled(OutcomeInvalidJSON)
		return
	}
	rec, err := m.parser.Parse(s)
	if err != nil {
		m.log.Warn("monitor:parse-failed", slog.String("err", err.Error()))
		m.view.ShowError("Parse Failed")
		m.stats.MessageHandled(OutcomeParseFailed)
		return
	}
	m.log.Info("monitor:record",
		slog.Int("co2", rec.CO2Level),
		slog.Float64("thi", float64(rec.ComfortIndex)),
		slog.String("comfort", rec.ComfortDescription),
	)
	m.view.Show(rec)
	m.stats.MessageHandled(OutcomeShown)
}

// ClockEnabled reports whether the external clock unit initialised.
func (m *Monitor) ClockEnabled() bool {
	return m.clock.Enabled()
}

// LogSubscription logs the broker session state for debugging.
func (m *Monitor) LogSubscription() {
	attrs := []any{
		slog.String("broker", m.cfg.MQTT.Broker),
		slog.String("topic", m.cfg.MQTT.Topic),
		slog.Bool("connected", m.broker.IsConnected()),
	}
	if err := m.broker.Err(); err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
	}
	m.log.Info("mqtt:subscription", attrs...)
}
