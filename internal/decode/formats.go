package decode

import (
	"bytes"
)

// Container identifies an encoded image container by its magic bytes.
type Container string

const (
	ContainerJPEG    Container = "jpeg"
	ContainerPNG     Container = "png"
	ContainerGIF     Container = "gif"
	ContainerWebP    Container = "webp"
	ContainerBMP     Container = "bmp"
	ContainerTIFF    Container = "tiff"
	ContainerUnknown Container = "unknown"
)

var signatures = []struct {
	c     Container
	magic []byte
}{
	{ContainerJPEG, []byte{0xFF, 0xD8, 0xFF}},
	{ContainerPNG, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	{ContainerGIF, []byte("GIF8")},
	{ContainerBMP, []byte("BM")},
	{ContainerTIFF, []byte{'I', 'I', 0x2A, 0x00}},
	{ContainerTIFF, []byte{'M', 'M', 0x00, 0x2A}},
}

// DetectFormat sniffs the container from the leading bytes of data.
func DetectFormat(data []byte) Container {
	for _, s := range signatures {
		if bytes.HasPrefix(data, s.magic) {
			return s.c
		}
	}
	// RIFF....WEBP
	if len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return ContainerWebP
	}
	return ContainerUnknown
}

func (c Container) MimeType() string {
	switch c {
	case ContainerUnknown:
		return "application/octet-stream"
	default:
		return "image/" + string(c)
	}
}
