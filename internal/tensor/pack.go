package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Pack serializes t as little-endian float32 in shape order. The result is
// 4 * len(t.Data) bytes regardless of host byte order.
func Pack(t *Tensor) []byte {
	buf := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Unpack decodes buf as a tensor of the given shape.
func Unpack(buf []byte, shape Shape) (*Tensor, error) {
	n := shape.Size()
	if n < 1 {
		return nil, fmt.Errorf("%w: invalid shape [%s]", ErrDataConversion, shape)
	}
	if len(buf) != 4*n {
		return nil, fmt.Errorf("%w: shape [%s] needs %d bytes, got %d", ErrLengthMismatch, shape, 4*n, len(buf))
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return &Tensor{Shape: shape.Clone(), Data: data}, nil
}
