package screen

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePanel struct {
	w, h     int16
	pix      map[[2]int16]color.RGBA
	displays int
}

func newFakePanel() *fakePanel {
	return &fakePanel{w: 240, h: 135, pix: map[[2]int16]color.RGBA{}}
}

func (p *fakePanel) Size() (int16, int16) { return p.w, p.h }

func (p *fakePanel) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return
	}
	p.pix[[2]int16{x, y}] = c
}

func (p *fakePanel) Display() error {
	p.displays++
	return nil
}

// bounds returns the horizontal extent of pixels painted c.
func (p *fakePanel) bounds(c color.RGBA) (minX, maxX int16, n int) {
	minX, maxX = p.w, -1
	for xy, got := range p.pix {
		if got != c {
			continue
		}
		n++
		minX = min(minX, xy[0])
		maxX = max(maxX, xy[0])
	}
	return minX, maxX, n
}

func TestTFTFill(t *testing.T) {
	panel := newFakePanel()
	tft := NewTFT(panel)

	tft.Fill(Black)

	assert.Equal(t, Black, panel.pix[[2]int16{0, 0}])
	assert.Equal(t, Black, panel.pix[[2]int16{239, 134}])
}

func TestTFTPrintAdvancesCursor(t *testing.T) {
	panel := newFakePanel()
	tft := NewTFT(panel)
	tft.Fill(Black)

	tft.SetTextColor(Red)
	tft.SetTextSize(SizeMedium)
	tft.SetCursor(40, 60)
	tft.Print("No")
	firstX := tft.x
	tft.Print(" Data")

	minX, maxX, n := panel.bounds(Red)
	require.Positive(t, n)
	assert.GreaterOrEqual(t, minX, int16(40))
	assert.Greater(t, firstX, int16(40))
	assert.Greater(t, tft.x, firstX)
	assert.LessOrEqual(t, maxX, tft.x)
}

func TestTFTDrawRightAligned(t *testing.T) {
	panel := newFakePanel()
	tft := NewTFT(panel)
	tft.Fill(Black)

	tft.SetTextColor(Green)
	tft.SetTextSize(SizeLarge)
	tft.SetCursor(3, 4)
	tft.DrawRightAligned("415", 225, 55)

	minX, maxX, n := panel.bounds(Green)
	require.Positive(t, n)
	assert.Less(t, minX, int16(225))
	assert.LessOrEqual(t, maxX, int16(225))
	assert.Equal(t, int16(3), tft.x, "cursor untouched")
}

func TestTFTDisplayFlushesPanel(t *testing.T) {
	panel := newFakePanel()
	require.NoError(t, NewTFT(panel).Display())
	assert.Equal(t, 1, panel.displays)
}
