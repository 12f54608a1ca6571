package pipeline

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/tensor-bridge/internal/decode"
	"github.com/Brownie44l1/tensor-bridge/internal/scale"
	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
	"github.com/Brownie44l1/tensor-bridge/internal/testutil"
)

func TestPreprocessShape(t *testing.T) {
	p := New()
	for _, size := range [][2]int{{1024, 768}, {768, 1024}, {300, 300}, {17, 5}, {1, 1}} {
		data := testutil.EncodePNG(testutil.Gradient(size[0], size[1]))
		in, err := p.Preprocess(data)
		require.NoError(t, err, "%v", size)
		assert.True(t, in.Shape.Equal(tensor.Shape{1, 512, 512, 3}), "%v: %v", size, in.Shape)
		assert.Len(t, tensor.Pack(in), 4*512*512*3)
	}
}

func TestPreprocessUniformColour(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 128, B: 0, A: 255})
		}
	}
	p := New()
	p.Width, p.Height = 8, 8

	in, err := p.Preprocess(testutil.EncodePNG(img))
	require.NoError(t, err)
	for i := 0; i < len(in.Data); i += 3 {
		assert.Equal(t, float32(1), in.Data[i])
		assert.InDelta(t, 128.0/255.0, in.Data[i+1], 1e-6)
		assert.Equal(t, float32(0), in.Data[i+2])
	}
}

func TestPreprocessCropsCenter(t *testing.T) {
	// left and right thirds are black, the centre square is white
	img := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 30; x++ {
			c := color.NRGBA{A: 255}
			if x >= 10 && x < 20 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	p := New()
	p.Width, p.Height = 10, 10

	in, err := p.Preprocess(testutil.EncodePNG(img))
	require.NoError(t, err)
	for _, v := range in.Data {
		require.Equal(t, float32(1), v)
	}
}

func TestPreprocessErrors(t *testing.T) {
	p := New()

	_, err := p.Preprocess(nil)
	assert.ErrorIs(t, err, decode.ErrDecode)

	_, err = p.Preprocess([]byte("not an image"))
	assert.ErrorIs(t, err, decode.ErrDecode)

	p.Width = 0
	_, err = p.Preprocess(testutil.EncodePNG(testutil.Gradient(4, 4)))
	assert.ErrorIs(t, err, scale.ErrInvalidDimensions)

	p = New()
	p.Params = tensor.Scalar(0, 0)
	_, err = p.Preprocess(testutil.EncodePNG(testutil.Gradient(4, 4)))
	assert.ErrorIs(t, err, tensor.ErrDataConversion)

	_, err = New().Prepare(nil)
	assert.ErrorIs(t, err, tensor.ErrDataConversion)
}

func TestPreprocessAlternateKernel(t *testing.T) {
	k, err := scale.ByName("lanczos3")
	require.NoError(t, err)
	p := New()
	p.Scaler = k

	in, err := p.Preprocess(testutil.EncodeJPEG(testutil.Gradient(640, 480)))
	require.NoError(t, err)
	assert.Equal(t, 512*512*3, len(in.Data))
	for _, v := range in.Data {
		require.False(t, math.IsNaN(float64(v)))
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
	}
}
