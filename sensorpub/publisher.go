package main

import (
	"context"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/harveysanders/sensorclock/mqttmonitor/config"
)

// publisher sends readings to the monitor's topic.
type publisher struct {
	client  paho.Client
	topic   string
	qos     byte
	timeout time.Duration
	log     *slog.Logger
}

func newPublisher(cfg config.MQTT, clientID string, qos byte, logger *slog.Logger) *publisher {
	p := &publisher{
		topic:   cfg.Topic,
		qos:     qos,
		timeout: cfg.Timeout,
		log:     logger,
	}

	opts := paho.NewClientOptions()
	opts.AddBroker("tcp://" + cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(cfg.ReconnectDelay)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("mqtt:connected", slog.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt:connection-lost", slog.String("err", err.Error()))
	})

	p.client = paho.NewClient(opts)
	return p
}

// Connect waits for the first session. paho keeps retrying in the
// background until ctx is done.
func (p *publisher) Connect(ctx context.Context) error {
	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			return errors.Wrap(token.Error(), "mqtt connect")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Publish sends one payload and waits for it to leave (QoS 0) or be
// acknowledged (QoS 1 and 2).
func (p *publisher) Publish(payload []byte) error {
	token := p.client.Publish(p.topic, p.qos, false, payload)
	if !token.WaitTimeout(p.timeout) {
		return errors.Errorf("publish timeout for topic %s", p.topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "publish to %s", p.topic)
	}
	p.log.Debug("mqtt:published", slog.String("topic", p.topic), slog.Int("bytes", len(payload)))
	return nil
}

func (p *publisher) Close() {
	p.client.Disconnect(250)
}
