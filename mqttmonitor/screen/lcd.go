package screen

import (
	"bytes"
	"image/color"
)

// CharDisplay is a character LCD that can print at a cell position.
// *hd44780i2c.Device satisfies it.
type CharDisplay interface {
	SetCursor(x, y uint8)
	Print(data []byte)
}

// LCD draws onto a character display through a frame buffer. Only rows
// that changed since the last Display are sent, so redrawing identical
// content does not flicker. Colour and text size are ignored.
type LCD struct {
	dev     CharDisplay
	columns int16
	rows    int16
	frame   [][]byte
	shown   [][]byte
	x, y    int16
}

// NewLCD returns an LCD for a columns x rows display, such as 16x2.
func NewLCD(dev CharDisplay, columns, rows int16) *LCD {
	l := &LCD{
		dev:     dev,
		columns: columns,
		rows:    rows,
		frame:   make([][]byte, rows),
		shown:   make([][]byte, rows),
	}
	for i := range l.frame {
		l.frame[i] = bytes.Repeat([]byte{' '}, int(columns))
		// Zero bytes never match a printable frame, forcing the first write.
		l.shown[i] = make([]byte, columns)
	}
	return l
}

func (l *LCD) Size() (width, height int16) { return l.columns, l.rows }

func (l *LCD) Fill(color.RGBA) {
	for _, row := range l.frame {
		for i := range row {
			row[i] = ' '
		}
	}
	l.x, l.y = 0, 0
}

func (l *LCD) SetTextColor(color.RGBA) {}

func (l *LCD) SetTextSize(uint8) {}

func (l *LCD) SetCursor(x, y int16) {
	l.x, l.y = x, y
}

// Print writes s at the cursor. Text past the right edge is dropped.
func (l *LCD) Print(s string) {
	l.put(l.x, l.y, s)
	l.x += int16(len(s))
}

func (l *LCD) DrawRightAligned(s string, right, y int16) {
	l.put(right-int16(len(s)), y, s)
}

func (l *LCD) put(x, y int16, s string) {
	if y < 0 || y >= l.rows {
		return
	}
	row := l.frame[y]
	for i := 0; i < len(s); i++ {
		col := x + int16(i)
		if col < 0 {
			continue
		}
		if col >= l.columns {
			break
		}
		row[col] = s[i]
	}
}

// Display writes changed rows to the device.
func (l *LCD) Display() error {
	for y, row := range l.frame {
		if bytes.Equal(row, l.shown[y]) {
			continue
		}
		l.dev.SetCursor(0, uint8(y))
		l.dev.Print(row)
		copy(l.shown[y], row)
	}
	return nil
}

// Row returns the buffered content of row y.
func (l *LCD) Row(y int) string {
	if y < 0 || y >= len(l.frame) {
		return ""
	}
	return string(l.frame[y])
}
