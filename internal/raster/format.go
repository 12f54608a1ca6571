package raster

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned for a pixel format tag outside the
// supported set.
var ErrUnsupportedFormat = errors.New("unsupported pixel format")

// PixelFormat describes channel order and channel count of 8-bit samples.
type PixelFormat uint8

const (
	FormatUnknown PixelFormat = iota
	FormatRGBA8
	FormatBGRA8
	FormatARGB8
	FormatRGB8
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatARGB8:
		return "ARGB8"
	case FormatRGB8:
		return "RGB8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// BytesPerPixel returns 0 for unsupported formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA8, FormatBGRA8, FormatARGB8:
		return 4
	case FormatRGB8:
		return 3
	default:
		return 0
	}
}

// ChannelOffsets returns the byte offsets of red, green and blue within one
// pixel of the given format. Alpha has no offset: it is never read.
func ChannelOffsets(f PixelFormat) (r, g, b int, err error) {
	switch f {
	case FormatRGBA8, FormatRGB8:
		return 0, 1, 2, nil
	case FormatBGRA8:
		return 2, 1, 0, nil
	case FormatARGB8:
		return 1, 2, 3, nil
	default:
		return 0, 0, 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}
