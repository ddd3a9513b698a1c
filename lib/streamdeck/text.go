package streamdeck

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextImage renders newline-separated text centred on a size x size key.
func TextImage(size int, bg color.Color, fg color.Color, text string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{bg}, image.Point{}, draw.Src)

	lines := strings.Split(text, "\n")
	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	totalHeight := lineHeight * len(lines)
	startY := (size-totalHeight)/2 + metrics.Ascent.Ceil()

	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		x := (size - width) / 2
		y := startY + i*lineHeight

		d := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{fg},
			Face: face,
			Dot:  fixed.P(x, y),
		}
		d.DrawString(line)
	}

	return img
}
