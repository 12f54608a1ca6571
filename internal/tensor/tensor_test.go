package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/tensor-bridge/internal/raster"
)

func TestShape(t *testing.T) {
	assert.Equal(t, 786432, ImageShape(512, 512, 3).Size())
	assert.Equal(t, -1, Shape{}.Size())
	assert.Equal(t, -1, Shape{1, 0, 3}.Size())
	assert.Equal(t, "1,512,512,1", Shape{1, 512, 512, 1}.String())

	orig := Shape{1, 2, 2, 1}
	c := orig.Clone()
	c[1] = 8
	assert.Equal(t, Shape{1, 2, 2, 1}, orig)

	s, err := ParseShape("1, 4,4 ,3")
	require.NoError(t, err)
	assert.True(t, s.Equal(Shape{1, 4, 4, 3}))
	assert.False(t, s.Equal(Shape{1, 4, 4}))

	_, err = ParseShape("1,x")
	assert.Error(t, err)
	_, err = ParseShape("1,0")
	assert.Error(t, err)
}

func TestNewChecksLength(t *testing.T) {
	_, err := New(Shape{1, 2, 2, 3}, make([]float32, 11))
	assert.ErrorIs(t, err, ErrDataConversion)

	_, err = New(Shape{1, -2}, nil)
	assert.ErrorIs(t, err, ErrDataConversion)

	tn, err := New(Shape{2, 3}, nil)
	require.NoError(t, err)
	assert.Len(t, tn.Data, 6)
}

func TestNormalizeReferenceParams(t *testing.T) {
	r, err := raster.New(2, 1, 8, raster.FormatRGBA8, []byte{
		255, 128, 0, 17,
		0, 255, 255, 200,
	})
	require.NoError(t, err)

	tn, err := Normalize(r, UnitRange)
	require.NoError(t, err)
	require.True(t, tn.Shape.Equal(Shape{1, 1, 2, 3}))

	assert.Equal(t, float32(1.0), tn.Data[0])
	assert.InDelta(t, 0.50196, tn.Data[1], 1e-5)
	assert.Equal(t, float32(128)/255, tn.Data[1])
	assert.Equal(t, float32(0.0), tn.Data[2])
	assert.Equal(t, []float32{0, 1, 1}, tn.Data[3:])
}

func TestNormalizePerChannel(t *testing.T) {
	r, err := raster.New(1, 1, 4, raster.FormatBGRA8, []byte{30, 20, 10, 0})
	require.NoError(t, err)

	p := NormalizationParams{
		Mean: [3]float32{10, 10, 10},
		Std:  [3]float32{2, 5, 10},
	}
	tn, err := Normalize(r, p)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 2, 2}, tn.Data)
}

func TestNormalizeRejectsZeroStd(t *testing.T) {
	r, err := raster.NewRGB(1, 1)
	require.NoError(t, err)

	_, err = Normalize(r, Scalar(0, 0))
	assert.ErrorIs(t, err, ErrDataConversion)
}

func TestPackLayout(t *testing.T) {
	tn, err := New(Shape{1, 1, 1, 2}, []float32{1.0, -2.5})
	require.NoError(t, err)

	want := []byte{
		0x00, 0x00, 0x80, 0x3f, // 1.0
		0x00, 0x00, 0x20, 0xc0, // -2.5
	}
	assert.Equal(t, want, Pack(tn))
}

func TestPackedLength(t *testing.T) {
	for _, hw := range [][2]int{{1, 1}, {3, 5}, {512, 512}} {
		in, err := New(ImageShape(hw[0], hw[1], 3), nil)
		require.NoError(t, err)
		assert.Len(t, Pack(in), 4*hw[0]*hw[1]*3)

		out, err := New(ImageShape(hw[0], hw[1], 1), nil)
		require.NoError(t, err)
		assert.Len(t, Pack(out), 4*hw[0]*hw[1])
	}
}

func TestRoundTripBitExact(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := make([]float32, 4*6*5*3)
	for i := range data {
		data[i] = math.Float32frombits(rng.Uint32())
	}
	// special values
	data[0] = float32(math.Inf(1))
	data[1] = float32(math.Copysign(0, -1))
	data[2] = math.SmallestNonzeroFloat32

	in, err := New(Shape{4, 6, 5, 3}, data)
	require.NoError(t, err)

	out, err := Unpack(Pack(in), in.Shape)
	require.NoError(t, err)

	bits := func(v []float32) []uint32 {
		b := make([]uint32, len(v))
		for i, f := range v {
			b[i] = math.Float32bits(f)
		}
		return b
	}
	if diff := cmp.Diff(bits(in.Data), bits(out.Data)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, in.Shape.Equal(out.Shape))
}

func TestUnpackLengthMismatch(t *testing.T) {
	_, err := Unpack(make([]byte, 15), Shape{1, 2, 2, 1})
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = UnpackMask(make([]byte, 4*512*512-4), 512, 512)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Unpack(make([]byte, 16), Shape{0})
	assert.ErrorIs(t, err, ErrDataConversion)
}

func TestMask(t *testing.T) {
	src, err := New(Shape{1, 2, 3, 1}, []float32{0.1, 0.4, 0.9, 0, 1, 0.39})
	require.NoError(t, err)

	m, err := UnpackMask(Pack(src), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, float32(0.9), m.At(0, 2))
	assert.Equal(t, float32(1), m.At(1, 1))
	assert.True(t, m.Tensor().Shape.Equal(src.Shape))

	img := m.Threshold(0.4)
	assert.Equal(t, []uint8{0, 255, 255, 0, 255, 0}, img.Pix)
}
