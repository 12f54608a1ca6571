package tensor

import (
	"image"
)

// Mask is a single-channel [H, W] view of a [1, H, W, 1] model output.
type Mask struct {
	Height int
	Width  int
	Data   []float32
}

// UnpackMask decodes a [1, height, width, 1] little-endian buffer.
func UnpackMask(buf []byte, height, width int) (*Mask, error) {
	t, err := Unpack(buf, Shape{1, height, width, 1})
	if err != nil {
		return nil, err
	}
	return &Mask{Height: height, Width: width, Data: t.Data}, nil
}

func (m *Mask) At(y, x int) float32 {
	return m.Data[y*m.Width+x]
}

// Tensor returns the mask in its [1, H, W, 1] model shape, sharing Data.
func (m *Mask) Tensor() *Tensor {
	return &Tensor{Shape: Shape{1, m.Height, m.Width, 1}, Data: m.Data}
}

// Threshold renders the mask as an 8-bit image: 255 where the score is at
// least th, 0 elsewhere.
func (m *Mask) Threshold(th float32) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.At(y, x) >= th {
				img.Pix[y*img.Stride+x] = 0xff
			}
		}
	}
	return img
}
