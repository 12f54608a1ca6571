package raster

import (
	"errors"
	"fmt"
)

// ErrInvalidRaster is returned when a raster's geometry does not fit its
// sample buffer.
var ErrInvalidRaster = errors.New("invalid raster")

// Raster is a grid of 8-bit pixel samples. A Raster returned by a crop is a
// view into its parent's buffer and must be treated as read-only.
type Raster struct {
	Width  int
	Height int
	Stride int
	Format PixelFormat
	Pix    []byte

	// origin of a view within Pix, in pixels
	x0, y0           int
	rOff, gOff, bOff int
	bpp              int
}

// New wraps pix as a raster. The buffer is borrowed, not copied.
func New(width, height, stride int, format PixelFormat, pix []byte) (*Raster, error) {
	ro, g, b, err := ChannelOffsets(format)
	if err != nil {
		return nil, err
	}
	bpp := format.BytesPerPixel()
	switch {
	case width < 1 || height < 1:
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidRaster, width, height)
	case stride < width*bpp:
		return nil, fmt.Errorf("%w: stride %d < %d", ErrInvalidRaster, stride, width*bpp)
	case len(pix) < stride*height:
		return nil, fmt.Errorf("%w: buffer %d bytes, need %d", ErrInvalidRaster, len(pix), stride*height)
	}
	return &Raster{
		Width:  width,
		Height: height,
		Stride: stride,
		Format: format,
		Pix:    pix,
		rOff:   ro,
		gOff:   g,
		bOff:   b,
		bpp:    bpp,
	}, nil
}

// NewRGB allocates an owned, tightly packed RGB8 raster.
func NewRGB(width, height int) (*Raster, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidRaster, width, height)
	}
	return New(width, height, width*3, FormatRGB8, make([]byte, width*height*3))
}

// RGB returns the canonical red, green and blue samples at (x, y).
func (r *Raster) RGB(x, y int) (uint8, uint8, uint8) {
	i := r.offset(x, y)
	return r.Pix[i+r.rOff], r.Pix[i+r.gOff], r.Pix[i+r.bOff]
}

// SetRGB writes a pixel. Alpha, if the format has one, is set to opaque.
func (r *Raster) SetRGB(x, y int, red, green, blue uint8) {
	i := r.offset(x, y)
	r.Pix[i+r.rOff] = red
	r.Pix[i+r.gOff] = green
	r.Pix[i+r.bOff] = blue
	switch r.Format {
	case FormatRGBA8, FormatBGRA8:
		r.Pix[i+3] = 0xff
	case FormatARGB8:
		r.Pix[i] = 0xff
	}
}

func (r *Raster) offset(x, y int) int {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		panic(fmt.Sprintf("raster: (%d,%d) out of bounds %dx%d", x, y, r.Width, r.Height))
	}
	return (r.y0+y)*r.Stride + (r.x0+x)*r.bpp
}

// Sub returns a view of the w x h region at (x, y). The view shares Pix with r.
func (r *Raster) Sub(x, y, w, h int) (*Raster, error) {
	if x < 0 || y < 0 || w < 1 || h < 1 || x+w > r.Width || y+h > r.Height {
		return nil, fmt.Errorf("%w: region (%d,%d) %dx%d outside %dx%d", ErrInvalidRaster, x, y, w, h, r.Width, r.Height)
	}
	v := *r
	v.Width, v.Height = w, h
	v.x0, v.y0 = r.x0+x, r.y0+y
	return &v, nil
}

// Origin reports where a view starts within the buffer it was cut from.
func (r *Raster) Origin() (x, y int) {
	return r.x0, r.y0
}
