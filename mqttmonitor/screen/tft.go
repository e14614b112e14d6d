package screen

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinydraw"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"
	"tinygo.org/x/tinyfont/proggy"
)

// TFT draws onto a pixel display with tinyfont text. Text sizes map to three
// fonts: small, medium and large.
type TFT struct {
	d    drivers.Displayer
	fg   color.RGBA
	font *tinyfont.Font
	x, y int16
}

// NewTFT returns a TFT drawing on d, such as an *st7789.Device.
func NewTFT(d drivers.Displayer) *TFT {
	return &TFT{d: d, fg: White, font: fontFor(SizeSmall)}
}

func fontFor(size uint8) *tinyfont.Font {
	switch {
	case size <= SizeSmall:
		return &proggy.TinySZ8pt7b
	case size < SizeLarge:
		return &freesans.Bold9pt7b
	default:
		return &freesans.Bold24pt7b
	}
}

func (t *TFT) Size() (width, height int16) { return t.d.Size() }

func (t *TFT) Fill(c color.RGBA) {
	w, h := t.d.Size()
	tinydraw.FilledRectangle(t.d, 0, 0, w, h, c)
	t.x, t.y = 0, 0
}

func (t *TFT) SetTextColor(c color.RGBA) { t.fg = c }

func (t *TFT) SetTextSize(size uint8) { t.font = fontFor(size) }

func (t *TFT) SetCursor(x, y int16) {
	t.x, t.y = x, y
}

func (t *TFT) Print(s string) {
	t.x += t.draw(t.x, t.y, s)
}

func (t *TFT) DrawRightAligned(s string, right, y int16) {
	_, w := tinyfont.LineWidth(t.font, s)
	t.draw(right-int16(w), y, s)
}

// draw writes s with its top-left corner at x, y and returns its width.
// tinyfont positions text by baseline.
func (t *TFT) draw(x, y int16, s string) int16 {
	baseline := y + int16(t.font.YAdvance)*3/4
	tinyfont.WriteLine(t.d, t.font, x, baseline, s, t.fg)
	_, w := tinyfont.LineWidth(t.font, s)
	return int16(w)
}

func (t *TFT) Display() error {
	return t.d.Display()
}
