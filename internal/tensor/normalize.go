package tensor

import (
	"fmt"

	"github.com/Brownie44l1/tensor-bridge/internal/raster"
)

// NormalizationParams maps an 8-bit sample s of channel c to
// (s - Mean[c]) / Std[c]. Values are in sample units, not [0,1].
type NormalizationParams struct {
	Mean [3]float32
	Std  [3]float32
}

// Scalar applies the same mean and std to every channel.
func Scalar(mean, std float32) NormalizationParams {
	return NormalizationParams{
		Mean: [3]float32{mean, mean, mean},
		Std:  [3]float32{std, std, std},
	}
}

// UnitRange maps 0..255 onto 0..1.
var UnitRange = Scalar(0, 255)

func (p NormalizationParams) Validate() error {
	for c, s := range p.Std {
		if s == 0 {
			return fmt.Errorf("%w: std of channel %d is zero", ErrDataConversion, c)
		}
	}
	return nil
}

// Apply normalizes one sample of channel c.
func (p NormalizationParams) Apply(c int, sample uint8) float32 {
	return (float32(sample) - p.Mean[c]) / p.Std[c]
}

// Normalize converts r into a [1, H, W, 3] tensor. Alpha is never read.
func Normalize(r *raster.Raster, p NormalizationParams) (*Tensor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	t, err := New(ImageShape(r.Height, r.Width, 3), nil)
	if err != nil {
		return nil, err
	}

	i := 0
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			red, green, blue := r.RGB(x, y)
			t.Data[i] = p.Apply(0, red)
			t.Data[i+1] = p.Apply(1, green)
			t.Data[i+2] = p.Apply(2, blue)
			i += 3
		}
	}
	return t, nil
}
