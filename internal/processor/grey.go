package processor

import (
	"image"

	"golang.org/x/image/draw"
)

// toGrey converts img to 8-bit greyscale.
func toGrey(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	grey := image.NewGray(b)
	draw.Draw(grey, b, img, b.Min, draw.Src)
	return grey
}
