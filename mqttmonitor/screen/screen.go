// Package screen renders the monitor's views onto a write-only display.
//
// A Screen is the drawing sink; a Layout pins every element to fixed
// coordinates; a View decides what to draw and when. Two Screens are
// provided: LCD for HD44780 character modules and TFT for pixel panels.
package screen

import "image/color"

var (
	Black  = color.RGBA{A: 0xff}
	White  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	Cyan   = color.RGBA{G: 0xff, B: 0xff, A: 0xff}
	Green  = color.RGBA{G: 0xff, A: 0xff}
	Red    = color.RGBA{R: 0xff, A: 0xff}
	Orange = color.RGBA{R: 0xff, G: 0xa5, A: 0xff}
)

// Text sizes used by the views. Screens map them to whatever they can draw.
const (
	SizeSmall  uint8 = 1
	SizeMedium uint8 = 2
	SizeLarge  uint8 = 8
)

// Screen is a write-only drawing surface. Coordinates are in the screen's own
// units: pixels for a panel, cells for a character display.
type Screen interface {
	Size() (width, height int16)
	// Fill clears the whole surface to c and homes the cursor.
	Fill(c color.RGBA)
	SetTextColor(c color.RGBA)
	SetTextSize(size uint8)
	// SetCursor places the top-left corner of the next Print.
	SetCursor(x, y int16)
	// Print draws s at the cursor and advances it past the text.
	Print(s string)
	// DrawRightAligned draws s so that it ends at right, with its top at y.
	// The cursor is left untouched.
	DrawRightAligned(s string, right, y int16)
	// Display pushes pending drawing to the hardware.
	Display() error
}

// Point is a screen position.
type Point struct {
	X, Y int16
}

// Hidden marks a layout element that the screen has no room for.
var Hidden = Point{X: -1, Y: -1}

// Layout holds the fixed position of every element the views draw.
type Layout struct {
	Title  Point
	Time   Point
	Status Point

	// Label is the small caption above the large reading.
	Label Point
	// ValueY is the top of the large reading, which is right-aligned
	// RightMargin units from the right edge.
	ValueY      int16
	RightMargin int16

	NoData      Point
	ErrorTitle  Point
	ErrorDetail Point
	ClockError  Point

	// Banner is the first line of setup-phase messages. Following lines
	// are LineHeight apart.
	Banner     Point
	LineHeight int16
}

// verticalOffset nudges every element of the pixel layout down.
const verticalOffset = 5

// PixelLayout positions elements for a 240x135 landscape panel.
func PixelLayout() Layout {
	return Layout{
		Title:       Point{5, 2 + verticalOffset},
		Time:        Point{140, 2 + verticalOffset},
		Status:      Point{190, 2 + verticalOffset},
		Label:       Point{15, 30 + verticalOffset},
		ValueY:      50 + verticalOffset,
		RightMargin: 15,
		NoData:      Point{40, 55 + verticalOffset},
		ErrorTitle:  Point{20, 50 + verticalOffset},
		ErrorDetail: Point{20, 80 + verticalOffset},
		ClockError:  Point{10, 50},
		Banner:      Point{5, 2 + verticalOffset},
		LineHeight:  20,
	}
}

// LCDLayout positions elements for a 16x2 character display. The top row
// reads "HH:MM:SS MQTT:OK"; the bottom row carries the reading or message.
func LCDLayout() Layout {
	return Layout{
		Title:       Hidden,
		Time:        Point{0, 0},
		Status:      Point{9, 0},
		Label:       Point{0, 1},
		ValueY:      1,
		RightMargin: 0,
		NoData:      Point{0, 1},
		ErrorTitle:  Hidden,
		ErrorDetail: Point{0, 1},
		ClockError:  Point{0, 1},
		Banner:      Point{0, 0},
		LineHeight:  1,
	}
}
