// Package decode turns encoded image bytes into rasters.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	// registered codecs
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/tensor-bridge/internal/raster"
)

// ErrDecode is returned for empty, truncated or unrecognized input.
var ErrDecode = errors.New("decode failed")

// Decoder is the narrow contract the pipeline depends on.
type Decoder interface {
	Decode(data []byte) (*raster.Raster, error)
}

// DefaultMaxPixels bounds the declared width*height of an input before any
// pixel buffer is allocated.
const DefaultMaxPixels = 50_000_000

// Codec decodes through the image package's codec registry. MaxPixels <= 0
// uses DefaultMaxPixels.
type Codec struct {
	MaxPixels int64
}

func (c Codec) Decode(data []byte) (*raster.Raster, error) {
	return DecodeLimited(data, c.MaxPixels)
}

func Decode(data []byte) (*raster.Raster, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited decodes data after checking the header dimensions against
// maxPixels.
func DecodeLimited(data []byte, maxPixels int64) (*raster.Raster, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	container := DetectFormat(data)
	if container == ContainerUnknown {
		return nil, fmt.Errorf("%w: unrecognized container", ErrDecode)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, container, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %s: empty image", ErrDecode, container)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > maxPixels {
		return nil, fmt.Errorf("%w: %s: %dx%d exceeds %d pixels", ErrDecode, container, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, container, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: %s: empty image", ErrDecode, container)
	}
	return toRaster(img)
}

// toRaster borrows the pixel buffer where the layout already matches a
// supported format and converts otherwise. *image.RGBA is premultiplied;
// alpha is dropped without unpremultiplying.
func toRaster(img image.Image) (*raster.Raster, error) {
	b := img.Bounds()
	switch m := img.(type) {
	case *image.NRGBA:
		if r, err := borrow(m.Pix, m.Stride, b, m.PixOffset(b.Min.X, b.Min.Y)); err == nil {
			return r, nil
		}
	case *image.RGBA:
		if r, err := borrow(m.Pix, m.Stride, b, m.PixOffset(b.Min.X, b.Min.Y)); err == nil {
			return r, nil
		}
	case *image.YCbCr:
		return fromYCbCr(m)
	case *image.Gray:
		return fromGray(m)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return raster.New(b.Dx(), b.Dy(), dst.Stride, raster.FormatRGBA8, dst.Pix)
}

func borrow(pix []byte, stride int, b image.Rectangle, off int) (*raster.Raster, error) {
	return raster.New(b.Dx(), b.Dy(), stride, raster.FormatRGBA8, pix[off:])
}

func fromYCbCr(m *image.YCbCr) (*raster.Raster, error) {
	b := m.Bounds()
	out, err := raster.NewRGB(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			yi := m.YOffset(b.Min.X+x, b.Min.Y+y)
			ci := m.COffset(b.Min.X+x, b.Min.Y+y)
			r, g, bl := color.YCbCrToRGB(m.Y[yi], m.Cb[ci], m.Cr[ci])
			out.SetRGB(x, y, r, g, bl)
		}
	}
	return out, nil
}

func fromGray(m *image.Gray) (*raster.Raster, error) {
	b := m.Bounds()
	out, err := raster.NewRGB(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			v := m.Pix[m.PixOffset(b.Min.X+x, b.Min.Y+y)]
			out.SetRGB(x, y, v, v, v)
		}
	}
	return out, nil
}
