// Package logging builds the slog loggers used by the host-side programs.
// Firmware logs to machine.Serial directly and does not import it.
package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a logger for app. Pretty output uses tint for an interactive
// terminal; otherwise records are written as JSON.
func New(w io.Writer, level slog.Leveler, pretty bool, app string) *slog.Logger {
	if pretty {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", app)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With("app", app)
}
