// Package testutil provides fakes and fixtures shared by package tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

// FakeInterpreter checks the input length, then returns a constant output
// tensor. It records concurrent use so tests can assert serialization.
type FakeInterpreter struct {
	InputShape  tensor.Shape
	OutputShape tensor.Shape
	Fill        float32
	Delay       time.Duration
	Err         error
	// Output, if set, is returned verbatim instead of a packed tensor.
	Output []byte

	calls      atomic.Int64
	active     atomic.Int32
	maxActive  atomic.Int32
	closeCalls atomic.Int32
	lastInput  []byte
	mu         sync.Mutex
}

// NewFakeInterpreter emits a [1,512,512,1] mask for a [1,512,512,3] input.
func NewFakeInterpreter() *FakeInterpreter {
	return &FakeInterpreter{
		InputShape:  tensor.ImageShape(512, 512, 3),
		OutputShape: tensor.ImageShape(512, 512, 1),
		Fill:        0.5,
	}
}

func (f *FakeInterpreter) Invoke(ctx context.Context, input []byte) ([]byte, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if want := 4 * f.InputShape.Size(); len(input) != want {
		return nil, fmt.Errorf("fake interpreter: input %d bytes, want %d", len(input), want)
	}

	f.mu.Lock()
	f.lastInput = input
	f.mu.Unlock()

	if f.Output != nil {
		return f.Output, nil
	}
	out, err := tensor.New(f.OutputShape, nil)
	if err != nil {
		return nil, err
	}
	for i := range out.Data {
		out.Data[i] = f.Fill
	}
	return tensor.Pack(out), nil
}

func (f *FakeInterpreter) Close() error {
	f.closeCalls.Add(1)
	return nil
}

func (f *FakeInterpreter) Calls() int64      { return f.calls.Load() }
func (f *FakeInterpreter) MaxActive() int32  { return f.maxActive.Load() }
func (f *FakeInterpreter) CloseCalls() int32 { return f.closeCalls.Load() }

func (f *FakeInterpreter) LastInput() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastInput
}

// ErrFakeLoad is returned by a FakeLoader configured to fail.
var ErrFakeLoad = errors.New("fake load failure")

// FakeLoader hands out FakeInterpreters built by New.
type FakeLoader struct {
	New     func() *FakeInterpreter
	FailAt  int // 1-based load number that fails; 0 never fails
	LoadErr error
	Loaded  []*FakeInterpreter

	mu    sync.Mutex
	loads int
}

// Load returns *FakeInterpreter; wrap it with model.LoaderFunc to satisfy
// model.Loader.
func (l *FakeLoader) Load(context.Context) (*FakeInterpreter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads++
	if l.FailAt != 0 && l.loads == l.FailAt {
		if l.LoadErr != nil {
			return nil, l.LoadErr
		}
		return nil, ErrFakeLoad
	}
	f := NewFakeInterpreter()
	if l.New != nil {
		f = l.New()
	}
	l.Loaded = append(l.Loaded, f)
	return f, nil
}

// Gradient returns a w x h image whose red channel grows left to right and
// green top to bottom.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// EncodeJPEG panics on error; inputs are built in memory.
func EncodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func EncodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
