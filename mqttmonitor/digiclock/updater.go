package digiclock

// SyncedAfter is the default sanity threshold: 2023-01-01T00:00:00Z. Epochs
// before it mean the time source has not synced yet.
const SyncedAfter int64 = 1672531200

// Writer is the part of the display the Updater needs.
type Writer interface {
	SetString(s string) error
}

// Updater pushes "HH:MM" to the display once per minute.
//
// The display is slow and flickers on rewrite, so the only trigger is the
// minute changing. A nil Writer means the unit is absent and Update is a
// no-op.
type Updater struct {
	display     Writer
	syncedAfter int64
	lastMinute  int // -1 until the first successful write.
	buf         [5]byte
}

// NewUpdater returns an Updater writing to display. Epochs before syncedAfter
// are ignored.
func NewUpdater(display Writer, syncedAfter int64) *Updater {
	return &Updater{
		display:     display,
		syncedAfter: syncedAfter,
		lastMinute:  -1,
	}
}

// Enabled reports whether a display is attached.
func (u *Updater) Enabled() bool {
	return u.display != nil
}

// LastMinute returns the minute last written, or -1.
func (u *Updater) LastMinute() int {
	return u.lastMinute
}

// Update writes hour:minute if the epoch looks synced and minute differs from
// the last written one. It reports whether a write happened. A failed write
// does not record the minute, so the next call retries.
func (u *Updater) Update(epoch int64, hour, minute int) (bool, error) {
	if u.display == nil || epoch < u.syncedAfter {
		return false, nil
	}
	if minute == u.lastMinute {
		return false, nil
	}
	if err := u.display.SetString(FormatHHMM(u.buf[:0], hour, minute)); err != nil {
		return false, err
	}
	u.lastMinute = minute
	return true, nil
}

// FormatHHMM appends the zero-padded 24-hour "HH:MM" form to dst and returns
// it as a string.
func FormatHHMM(dst []byte, hour, minute int) string {
	dst = appendTwoDigits(dst, hour)
	dst = append(dst, ':')
	dst = appendTwoDigits(dst, minute)
	return string(dst)
}

func appendTwoDigits(dst []byte, v int) []byte {
	if v < 0 {
		v = 0
	}
	v %= 100
	return append(dst, byte('0'+v/10), byte('0'+v%10))
}
