package raster

import (
	"image"
)

// NRGBA copies r into an opaque *image.NRGBA for use with image libraries.
func (r *Raster) NRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < r.Width; x++ {
			red, green, blue := r.RGB(x, y)
			row[x*4] = red
			row[x*4+1] = green
			row[x*4+2] = blue
			row[x*4+3] = 0xff
		}
	}
	return img
}

// FromImage copies any image into an owned RGB8 raster, dropping alpha.
func FromImage(img image.Image) (*Raster, error) {
	b := img.Bounds()
	out, err := NewRGB(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			red, green, blue, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.SetRGB(x, y, uint8(red>>8), uint8(green>>8), uint8(blue>>8))
		}
	}
	return out, nil
}
