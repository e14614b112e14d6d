package clock

import (
	"sync"
	"time"
)

// Mock is a Clock that only moves when told to.
type Mock interface {
	Clock

	// Set moves the clock to t.
	Set(t time.Time)

	// Add advances the clock by d.
	Add(d time.Duration)
}

// NewMock returns a Mock clock reading t.
func NewMock(t time.Time) Mock {
	return &mockClock{
		now: t,
	}
}

type mockClock struct {
	sync.Mutex
	now time.Time
}

func (m *mockClock) Now() time.Time {
	m.Lock()
	defer m.Unlock()

	return m.now
}

func (m *mockClock) Set(t time.Time) {
	m.Lock()
	defer m.Unlock()

	m.now = t
}

func (m *mockClock) Add(d time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.now = m.now.Add(d)
}
