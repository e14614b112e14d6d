package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// terminal is a screen.CharDisplay that mirrors a character LCD on a text
// stream. Every row write is printed as a framed line tagged with its row.
type terminal struct {
	mu      sync.Mutex
	w       io.Writer
	columns int
	x, y    uint8
}

func newTerminal(w io.Writer, columns int) *terminal {
	return &terminal{w: w, columns: columns}
}

func (t *terminal) SetCursor(x, y uint8) {
	t.mu.Lock()
	t.x, t.y = x, y
	t.mu.Unlock()
}

func (t *terminal) Print(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := strings.Repeat(" ", int(t.x)) + string(data)
	if pad := t.columns - len(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	fmt.Fprintf(t.w, "%d|%s|\n", t.y, line)
}

// logClock stands in for the Digi-Clock unit and logs every write.
type logClock struct {
	log    *slog.Logger
	shown  string
	bright uint8
}

func (c *logClock) Configure() error {
	c.log.Info("digiclock:configured")
	return nil
}

func (c *logClock) SetBrightness(level uint8) error {
	c.bright = level
	c.log.Info("digiclock:brightness", slog.Int("level", int(level)))
	return nil
}

func (c *logClock) SetString(s string) error {
	c.shown = s
	c.log.Info("digiclock:show", slog.String("text", s))
	return nil
}
