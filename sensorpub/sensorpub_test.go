package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/harveysanders/sensorclock/mqttmonitor/sensor"
)

func TestTHI(t *testing.T) {
	// 25 °C at 60 %RH is a warm room.
	assert.InDelta(t, 72.8, thi(25, 60), 0.05)
	assert.InDelta(t, 58.7, thi(15, 40), 0.05)
}

func TestComfortLevel(t *testing.T) {
	tests := []struct {
		index float64
		want  string
	}{
		{50, "cold"},
		{55, "chilly"},
		{62, "neutral"},
		{68.9, "comfortable"},
		{72.3, "warm"},
		{79.99, "hot"},
		{84, "very hot"},
		{90, "sweltering"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, comfortLevel(tt.index), "index %v", tt.index)
	}
}

func TestGeneratedReadingParses(t *testing.T) {
	gen := newGenerator(42)
	now := time.Unix(1700000000, 0)
	var p sensor.Parser
	p.MaxSize = 2048

	for i := 0; i < 50; i++ {
		r := gen.next(now)
		payload, err := r.marshal()
		require.NoError(t, err)

		text := sensor.Printable(payload)
		require.True(t, sensor.LooksLikeObject(text))
		rec, err := p.Parse(text)
		require.NoError(t, err)

		assert.True(t, rec.Valid)
		assert.Equal(t, r.CO2, rec.CO2Level)
		assert.InDelta(t, r.THI, rec.ComfortIndex, 0.001)
		assert.Equal(t, r.ComfortLevel, rec.ComfortDescription)
		assert.Equal(t, uint64(1700000000), rec.Timestamp)
		assert.GreaterOrEqual(t, rec.CO2Level, 400)
		assert.LessOrEqual(t, rec.CO2Level, 2500)
	}
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Publish(payload []byte) error {
	args := m.Called(payload)
	return args.Error(0)
}

func TestRunStopsAfterCount(t *testing.T) {
	out := &mockSink{}
	out.On("Publish", mock.Anything).Return(errors.New("broker gone")).Once()
	out.On("Publish", mock.Anything).Return(nil).Times(3)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	limiter := rate.NewLimiter(rate.Inf, 1)
	err := run(context.Background(), out, newGenerator(1), limiter, 3, logger)
	require.NoError(t, err)

	out.AssertExpectations(t)
	assert.Contains(t, logs.String(), "sensorpub:publish-failed")
	assert.Equal(t, 3, strings.Count(logs.String(), "sensorpub:sent"))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := &mockSink{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	err := run(ctx, out, newGenerator(1), limiter, 0, logger)
	assert.ErrorIs(t, err, context.Canceled)
	out.AssertNotCalled(t, "Publish", mock.Anything)
}

func TestRootCmdRejectsBadQoS(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--qos", "3"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qos must be 0, 1 or 2")
}
