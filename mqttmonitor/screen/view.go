package screen

import (
	"image/color"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/harveysanders/sensorclock/mqttmonitor/sensor"
)

const title = "Sensor Monitor"

// TimeSource supplies the time of day drawn in the header.
type TimeSource interface {
	AppendFormattedTime(dst []byte) []byte
}

// Link reports whether the broker session is up.
type Link interface {
	IsConnected() bool
}

// ViewConfig configures a View.
type ViewConfig struct {
	Layout Layout
	// Interval is how long each data view stays up before alternating.
	Interval time.Duration
	Time     TimeSource
	Link     Link
	Logger   *slog.Logger
}

// View holds the latest sensor record and decides what the screen shows.
// The primary view is the CO2 reading, the secondary the comfort index.
type View struct {
	s        Screen
	layout   Layout
	interval time.Duration
	time     TimeSource
	link     Link
	log      *slog.Logger

	record          sensor.Record
	primary         bool
	lastAlternation time.Time

	statusY int16
	buf     []byte
}

// NewView returns a View drawing on s. It starts on the primary view with no
// data, and its first Tick redraws immediately.
func NewView(s Screen, cfg ViewConfig) *View {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &View{
		s:        s,
		layout:   cfg.Layout,
		interval: cfg.Interval,
		time:     cfg.Time,
		link:     cfg.Link,
		log:      logger,
		primary:  true,
		buf:      make([]byte, 0, 32),
	}
}

// Show replaces the current record and redraws the selected view, or the
// "No Data" message if rec is not valid. The view selection is unchanged.
func (v *View) Show(rec sensor.Record) {
	v.record = rec
	v.Redraw()
}

// Tick redraws once the alternation interval has elapsed since the last
// alternation and reports whether it did. The view flips only when there was
// valid data to show.
func (v *View) Tick(now time.Time) bool {
	if now.Sub(v.lastAlternation) < v.interval {
		return false
	}
	v.Redraw()
	if v.record.Valid {
		v.primary = !v.primary
	}
	v.lastAlternation = now
	return true
}

// Redraw repaints the whole screen from the current state.
func (v *View) Redraw() {
	v.s.Fill(Black)
	v.header()
	switch {
	case !v.record.Valid:
		v.text(v.layout.NoData, SizeMedium, Red, "No Data")
	case v.primary:
		v.reading("CO2:", Green, strconv.AppendInt(v.buf[:0], int64(v.record.CO2Level), 10))
	default:
		v.reading("THI:", Orange, strconv.AppendFloat(v.buf[:0], float64(v.record.ComfortIndex), 'f', 1, 32))
	}
	v.flush()
}

// ShowError repaints the header and a message-error panel. The current
// record is left as it was.
func (v *View) ShowError(detail string) {
	v.s.Fill(Black)
	v.header()
	v.text(v.layout.ErrorTitle, SizeMedium, Red, "JSON Error")
	v.text(v.layout.ErrorDetail, SizeSmall, Red, detail)
	v.flush()
}

// ShowStatus clears the screen and writes one setup-phase message per line.
func (v *View) ShowStatus(lines ...string) {
	v.s.Fill(Black)
	v.s.SetTextColor(White)
	v.s.SetTextSize(SizeMedium)
	v.statusY = v.layout.Banner.Y
	for i, line := range lines {
		if i > 0 {
			v.statusY += v.layout.LineHeight
		}
		v.s.SetCursor(v.layout.Banner.X, v.statusY)
		v.s.Print(line)
	}
	v.flush()
}

// AppendStatus writes msg on the line below the last status line, starting
// over at the top when the screen is full.
func (v *View) AppendStatus(msg string) {
	_, height := v.s.Size()
	v.statusY += v.layout.LineHeight
	if v.statusY >= height {
		v.ShowStatus(msg)
		return
	}
	v.s.SetTextColor(White)
	v.s.SetTextSize(SizeMedium)
	v.s.SetCursor(v.layout.Banner.X, v.statusY)
	v.s.Print(msg)
	v.flush()
}

// Progress appends a dot to the current status line.
func (v *View) Progress() {
	v.s.Print(".")
	v.flush()
}

// ShowClockError overlays the clock-unit failure notice on whatever is shown.
func (v *View) ShowClockError() {
	v.text(v.layout.ClockError, SizeMedium, Red, "DigiClock ERR")
	v.flush()
}

// Record returns the record currently held.
func (v *View) Record() sensor.Record {
	return v.record
}

// PrimaryShowing reports whether the next data redraw shows the CO2 view.
func (v *View) PrimaryShowing() bool {
	return v.primary
}

func (v *View) header() {
	v.text(v.layout.Title, SizeSmall, Cyan, title)
	if v.time != nil {
		v.text(v.layout.Time, SizeSmall, White, string(v.time.AppendFormattedTime(v.buf[:0])))
	}
	if v.link != nil && v.link.IsConnected() {
		v.text(v.layout.Status, SizeSmall, Green, "MQTT:OK")
	} else {
		v.text(v.layout.Status, SizeSmall, Red, "MQTT:NG")
	}
}

func (v *View) reading(label string, c color.RGBA, value []byte) {
	v.text(v.layout.Label, SizeMedium, c, label)
	if v.layout.ValueY < 0 {
		return
	}
	width, _ := v.s.Size()
	v.s.SetTextSize(SizeLarge)
	v.s.SetTextColor(c)
	v.s.DrawRightAligned(string(value), width-v.layout.RightMargin, v.layout.ValueY)
}

func (v *View) text(p Point, size uint8, c color.RGBA, s string) {
	if p == Hidden {
		return
	}
	v.s.SetTextSize(size)
	v.s.SetTextColor(c)
	v.s.SetCursor(p.X, p.Y)
	v.s.Print(s)
}

func (v *View) flush() {
	if err := v.s.Display(); err != nil {
		v.log.Error("screen:display-failed", slog.String("err", err.Error()))
	}
}
