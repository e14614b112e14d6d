// Program monitorsim runs the sensor monitor on a workstation. It subscribes
// to a real broker over TCP, keeps time with SNTP over UDP, renders the 16x2
// LCD layout in the terminal and logs what the clock unit would show.
//
//	go run ./monitorsim --config monitor.yaml --metrics-addr :9100
//
// Any setting can be overridden with MONITOR_* variables, e.g.
// MONITOR_MQTT_BROKER=localhost:1883.
package main

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/harveysanders/sensorclock/internal/logging"
	"github.com/harveysanders/sensorclock/mqttmonitor/config"
	"github.com/harveysanders/sensorclock/mqttmonitor/monitor"
	"github.com/harveysanders/sensorclock/mqttmonitor/mqtt"
	"github.com/harveysanders/sensorclock/mqttmonitor/ntp"
	"github.com/harveysanders/sensorclock/mqttmonitor/screen"
)

type options struct {
	configPath  string
	pretty      bool
	withClock   bool
	metricsAddr string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "monitorsim",
		Short: "Run the CO2 and comfort monitor against a real broker",
		Long: `Runs the monitor's control loop on a workstation. The screen is drawn
in the terminal as the 16x2 LCD would show it, and Digi-Clock writes are
logged. Logs go to stderr so they do not interleave with the screen.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, opts.pretty, "monitorsim")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = run(ctx, cfg, opts, cmd.OutOrStdout(), logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (yaml, toml or json)")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", true, "colourised log output instead of JSON")
	cmd.Flags().BoolVar(&opts.withClock, "clock", true, "simulate the Digi-Clock unit")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	return cmd
}

func run(ctx context.Context, cfg config.Config, opts options, out io.Writer, logger *slog.Logger) error {
	ex, udp, err := ntp.DialExchanger(cfg.NTP.Server, cfg.NTP.Timeout)
	if err != nil {
		return errors.Wrap(err, "ntp")
	}
	defer udp.Close()

	timeClient := ntp.NewClient(ex, ntp.Config{
		Offset:   cfg.NTP.Offset,
		Interval: cfg.NTP.Interval,
		Backoff:  cfg.MQTT.ReconnectDelay,
		Logger:   logger,
	})

	broker := &mqtt.Client{
		IDPrefix: cfg.MQTT.ClientIDPrefix,
		Topic:    cfg.MQTT.Topic,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Timeout:  cfg.MQTT.Timeout,
		Rand:     rand.Uint32,
		Logger:   logger,
	}
	defer broker.Close()

	term := newTerminal(out, 16)
	view := screen.NewView(screen.NewLCD(term, 16, 2), screen.ViewConfig{
		Layout:   screen.LCDLayout(),
		Interval: cfg.Screen.Alternation,
		Time:     timeClient,
		Link:     broker,
		Logger:   logger,
	})

	deps := monitor.Deps{
		View:   view,
		Broker: broker,
		Dial: func(ctx context.Context) (io.ReadWriteCloser, error) {
			d := net.Dialer{Timeout: cfg.MQTT.Timeout}
			conn, err := d.DialContext(ctx, "tcp", cfg.MQTT.Broker)
			if err != nil {
				return nil, errors.Wrapf(err, "dial %s", cfg.MQTT.Broker)
			}
			return conn, nil
		},
		Time:   timeClient,
		Logger: logger,
	}
	if opts.withClock {
		deps.Clock = &logClock{log: logger}
	}
	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		deps.Metrics = newMetrics(reg)
		go serveMetrics(ctx, opts.metricsAddr, reg, logger)
	}

	m := monitor.New(cfg, deps)
	broker.OnMessage = m.HandleMessage

	m.Setup(ctx)
	m.LogSubscription()
	return m.Run(ctx)
}
