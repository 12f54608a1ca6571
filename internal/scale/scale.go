// Package scale resamples rasters to an exact target size.
package scale

import (
	"errors"
	"fmt"
	"math"

	"github.com/Brownie44l1/tensor-bridge/internal/raster"
)

// ErrInvalidDimensions is returned for a non-positive target size.
var ErrInvalidDimensions = errors.New("invalid target dimensions")

// Scaler resamples src to exactly width x height. The result is an owned
// RGB8 raster.
type Scaler interface {
	Scale(src *raster.Raster, width, height int) (*raster.Raster, error)
}

func checkTarget(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	return nil
}

// Bilinear interpolates between the four nearest source samples using
// pixel-centre alignment. Source coordinates are clamped to the raster, so
// edges never read out of bounds.
type Bilinear struct{}

func (Bilinear) Scale(src *raster.Raster, width, height int) (*raster.Raster, error) {
	if err := checkTarget(width, height); err != nil {
		return nil, err
	}
	dst, err := raster.NewRGB(width, height)
	if err != nil {
		return nil, err
	}

	xs := taps(src.Width, width)
	ys := taps(src.Height, height)

	for y, ty := range ys {
		for x, tx := range xs {
			r00, g00, b00 := src.RGB(tx.i0, ty.i0)
			r01, g01, b01 := src.RGB(tx.i1, ty.i0)
			r10, g10, b10 := src.RGB(tx.i0, ty.i1)
			r11, g11, b11 := src.RGB(tx.i1, ty.i1)

			dst.SetRGB(x, y,
				lerp2(r00, r01, r10, r11, tx.frac, ty.frac),
				lerp2(g00, g01, g10, g11, tx.frac, ty.frac),
				lerp2(b00, b01, b10, b11, tx.frac, ty.frac),
			)
		}
	}
	return dst, nil
}

// tap holds the two neighbouring source indices for one output coordinate
// and the weight of the second.
type tap struct {
	i0, i1 int
	frac   float64
}

func taps(srcLen, dstLen int) []tap {
	out := make([]tap, dstLen)
	ratio := float64(srcLen) / float64(dstLen)
	maxIdx := float64(srcLen - 1)

	for i := range out {
		s := (float64(i)+0.5)*ratio - 0.5
		s = math.Max(0, math.Min(s, maxIdx))

		i0 := int(s)
		i1 := min(i0+1, srcLen-1)
		out[i] = tap{i0: i0, i1: i1, frac: s - float64(i0)}
	}
	return out
}

func lerp2(v00, v01, v10, v11 uint8, fx, fy float64) uint8 {
	top := float64(v00)*(1-fx) + float64(v01)*fx
	bottom := float64(v10)*(1-fx) + float64(v11)*fx
	v := top*(1-fy) + bottom*fy
	return uint8(math.Min(255, math.Floor(v+0.5)))
}
