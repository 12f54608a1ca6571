// Package tensor holds float32 tensors and their canonical byte encoding:
// row-major in shape order, IEEE-754 float32, little-endian.
package tensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrDataConversion is returned when a tensor cannot be built from its
	// inputs, such as a shape that does not match the data.
	ErrDataConversion = errors.New("data conversion failed")

	// ErrLengthMismatch is returned when a byte buffer does not hold exactly
	// the expected number of elements.
	ErrLengthMismatch = errors.New("length mismatch")
)

// Shape lists dimension sizes, outermost first.
type Shape []int

// Size returns the number of elements, or -1 if any dimension is < 1.
func (s Shape) Size() int {
	if len(s) == 0 {
		return -1
	}
	n := 1
	for _, d := range s {
		if d < 1 {
			return -1
		}
		n *= d
	}
	return n
}

// Clone returns a copy that shares no backing array with s.
func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// String renders the shape as comma separated sizes, e.g. "1,512,512,3".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

// ParseShape is the inverse of Shape.String.
func ParseShape(v string) (Shape, error) {
	var s Shape
	for _, p := range strings.Split(v, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("parse shape %q: %w", v, err)
		}
		s = append(s, d)
	}
	if s.Size() < 1 {
		return nil, fmt.Errorf("parse shape %q: dimensions must be positive", v)
	}
	return s, nil
}

// ImageShape is the NHWC shape of a single image.
func ImageShape(height, width, channels int) Shape {
	return Shape{1, height, width, channels}
}

// Tensor is a shaped float32 buffer. len(Data) == Shape.Size() always holds
// for tensors built by New or Unpack.
type Tensor struct {
	Shape Shape
	Data  []float32
}

// New wraps data. If data is nil a zeroed buffer is allocated.
func New(shape Shape, data []float32) (*Tensor, error) {
	n := shape.Size()
	if n < 1 {
		return nil, fmt.Errorf("%w: invalid shape [%s]", ErrDataConversion, shape)
	}
	if data == nil {
		data = make([]float32, n)
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: shape [%s] needs %d elements, got %d", ErrDataConversion, shape, n, len(data))
	}
	return &Tensor{Shape: shape.Clone(), Data: data}, nil
}
