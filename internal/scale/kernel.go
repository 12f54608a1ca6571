package scale

import (
	"fmt"
	"strings"

	"github.com/nfnt/resize"

	"github.com/Brownie44l1/tensor-bridge/internal/raster"
)

// Kernel resamples through nfnt/resize. Its filters widen when downsampling,
// so results differ from Bilinear and are not part of the canonical contract.
type Kernel struct {
	Interp resize.InterpolationFunction
}

func (k Kernel) Scale(src *raster.Raster, width, height int) (*raster.Raster, error) {
	if err := checkTarget(width, height); err != nil {
		return nil, err
	}
	img := resize.Resize(uint(width), uint(height), src.NRGBA(), k.Interp)
	return raster.FromImage(img)
}

// ByName returns the scaler for a configured kernel name. "bilinear" selects
// the built-in canonical scaler.
func ByName(name string) (Scaler, error) {
	switch strings.ToLower(name) {
	case "", "bilinear":
		return Bilinear{}, nil
	case "nearest":
		return Kernel{Interp: resize.NearestNeighbor}, nil
	case "bicubic":
		return Kernel{Interp: resize.Bicubic}, nil
	case "mitchell":
		return Kernel{Interp: resize.MitchellNetravali}, nil
	case "lanczos2":
		return Kernel{Interp: resize.Lanczos2}, nil
	case "lanczos3":
		return Kernel{Interp: resize.Lanczos3}, nil
	default:
		return nil, fmt.Errorf("unknown resample kernel %q", name)
	}
}
