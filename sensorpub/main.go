// Program sensorpub publishes simulated CO2 and comfort readings in the
// format the monitor expects, for testing without the sensor node.
//
//	go run ./sensorpub --config monitor.yaml --interval 5s
//	go run ./sensorpub --raw '{"co2":"oops"'
//
// The broker, topic and credentials come from the monitor's own config, so
// both programs can share one file and the MONITOR_* environment.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/harveysanders/sensorclock/internal/logging"
	"github.com/harveysanders/sensorclock/mqttmonitor/config"
)

type options struct {
	configPath string
	interval   time.Duration
	count      int
	qos        int
	raw        string
	pretty     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:          "sensorpub",
		Short:        "Publish simulated sensor readings for the monitor",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.qos < 0 || opts.qos > 2 {
				return errors.Errorf("qos must be 0, 1 or 2, got %d", opts.qos)
			}
			if opts.interval <= 0 {
				return errors.Errorf("interval must be positive, got %s", opts.interval)
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel, opts.pretty, "sensorpub")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			clientID := "sensorpub-" + uuid.NewString()[:8]
			pub := newPublisher(cfg.MQTT, clientID, byte(opts.qos), logger)
			if err := pub.Connect(ctx); err != nil {
				return err
			}
			defer pub.Close()

			if opts.raw != "" {
				if err := pub.Publish([]byte(opts.raw)); err != nil {
					return err
				}
				logger.Info("sensorpub:sent", slog.String("payload", opts.raw))
				return nil
			}

			limiter := rate.NewLimiter(rate.Every(opts.interval), 1)
			err = run(ctx, pub, newGenerator(uint64(time.Now().UnixNano())), limiter, opts.count, logger)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "config file (yaml, toml or json)")
	cmd.Flags().DurationVarP(&opts.interval, "interval", "i", 5*time.Second, "time between readings")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 0, "stop after this many readings; 0 runs until interrupted")
	cmd.Flags().IntVar(&opts.qos, "qos", 0, "MQTT QoS for published readings (0, 1 or 2)")
	cmd.Flags().StringVar(&opts.raw, "raw", "", "publish this payload once instead of simulated readings")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", true, "colourised log output instead of JSON")
	return cmd
}

// sink is where readings go. *publisher satisfies it.
type sink interface {
	Publish(payload []byte) error
}

// run publishes one reading per limiter token until ctx is done or count
// readings have been sent. Publish failures are logged and retried on the
// next token.
func run(ctx context.Context, out sink, gen *generator, limiter *rate.Limiter, count int, logger *slog.Logger) error {
	for sent := 0; count == 0 || sent < count; {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "rate limiter")
		}

		r := gen.next(time.Now())
		payload, err := r.marshal()
		if err != nil {
			return errors.Wrap(err, "marshal reading")
		}
		if err := out.Publish(payload); err != nil {
			logger.Warn("sensorpub:publish-failed", slog.String("err", err.Error()))
			continue
		}
		sent++
		logger.Info("sensorpub:sent",
			slog.Int("co2", r.CO2),
			slog.Float64("thi", r.THI),
			slog.String("comfort", r.ComfortLevel),
		)
	}
	return nil
}
