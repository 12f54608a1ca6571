// Package pipeline composes the preprocessing stages that turn encoded image
// bytes into a model input tensor.
package pipeline

import (
	"fmt"

	"github.com/Brownie44l1/tensor-bridge/internal/decode"
	"github.com/Brownie44l1/tensor-bridge/internal/raster"
	"github.com/Brownie44l1/tensor-bridge/internal/scale"
	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

// DefaultSize is the square input edge of the reference model.
const DefaultSize = 512

// Pipeline is decode, center-square crop, resample and normalize. It holds no
// per-request state and is safe for concurrent use.
type Pipeline struct {
	Decoder decode.Decoder
	Scaler  scale.Scaler
	Width   int
	Height  int
	Params  tensor.NormalizationParams
}

// New returns the reference pipeline: bilinear resample to 512x512 and
// (s-0)/255 normalization.
func New() *Pipeline {
	return &Pipeline{
		Decoder: decode.Codec{},
		Scaler:  scale.Bilinear{},
		Width:   DefaultSize,
		Height:  DefaultSize,
		Params:  tensor.UnitRange,
	}
}

// InputShape is the shape of tensors produced by Preprocess.
func (p *Pipeline) InputShape() tensor.Shape {
	return tensor.ImageShape(p.Height, p.Width, 3)
}

// Decode runs the decoding stage alone.
func (p *Pipeline) Decode(data []byte) (*raster.Raster, error) {
	return p.Decoder.Decode(data)
}

// Prepare crops, resamples and normalizes an already decoded raster.
func (p *Pipeline) Prepare(r *raster.Raster) (*tensor.Tensor, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil raster", tensor.ErrDataConversion)
	}
	square := raster.CenterSquare(r)
	scaled, err := p.Scaler.Scale(square, p.Width, p.Height)
	if err != nil {
		return nil, err
	}
	return tensor.Normalize(scaled, p.Params)
}

// Preprocess is Decode followed by Prepare.
func (p *Pipeline) Preprocess(data []byte) (*tensor.Tensor, error) {
	r, err := p.Decode(data)
	if err != nil {
		return nil, err
	}
	return p.Prepare(r)
}
