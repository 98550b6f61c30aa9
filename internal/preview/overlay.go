package preview

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	recColor = color.RGBA{R: 0xff, G: 0x30, B: 0x30, A: 0xff}
	fpsColor = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

const overlayMargin = 14

// drawOverlay renders the recording indicator (top left) and the measured
// FPS readout (top right) onto the preview image.
func drawOverlay(img *image.RGBA, fps float64, recording bool) {
	if recording {
		drawText(img, "REC", overlayMargin, overlayMargin+basicfont.Face7x13.Ascent, recColor)
	}

	fpsText := "-- FPS"
	if fps > 0 {
		fpsText = fmt.Sprintf("%.0f FPS", fps)
	}
	textWidth := font.MeasureString(basicfont.Face7x13, fpsText).Ceil()
	x := img.Bounds().Dx() - textWidth - overlayMargin
	drawText(img, fpsText, x, overlayMargin+basicfont.Face7x13.Ascent, fpsColor)
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
