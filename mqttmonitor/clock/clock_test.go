package clock_test

import (
	"testing"
	"time"

	"github.com/harveysanders/sensorclock/mqttmonitor/clock"
	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	c := clock.New()
	assert.NotNil(t, c)
	assert.False(t, c.Now().IsZero())
}

func TestMock(t *testing.T) {
	start := time.Date(2025, 7, 9, 12, 0, 0, 0, time.UTC)
	m := clock.NewMock(start)
	assert.Equal(t, start, m.Now())

	m.Add(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), m.Now())

	later := start.Add(time.Hour)
	m.Set(later)
	assert.Equal(t, later, m.Now())
}
