package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics implements monitor.Metrics with prometheus counters.
type metrics struct {
	messages *prometheus.CounterVec
	connects *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_messages_total",
				Help: "Count of MQTT messages handled, by outcome",
			},
			[]string{"outcome"},
		),
		connects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_broker_connects_total",
				Help: "Count of broker connection attempts, by result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.messages, m.connects)
	return m
}

func (m *metrics) MessageHandled(outcome string) {
	m.messages.WithLabelValues(outcome).Inc()
}

func (m *metrics) BrokerConnect(err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.connects.WithLabelValues(result).Inc()
}

// serveMetrics serves /metrics until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics:listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics:serve-failed", slog.String("err", err.Error()))
	}
}
