package main

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/tensor-bridge/internal/bridge"
	"github.com/Brownie44l1/tensor-bridge/internal/config"
	"github.com/Brownie44l1/tensor-bridge/internal/decode"
	"github.com/Brownie44l1/tensor-bridge/internal/pipeline"
	"github.com/Brownie44l1/tensor-bridge/internal/testutil"
)

func TestDetectFileWritesTensorAndMask(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "frame_01.jpg")
	require.NoError(t, os.WriteFile(in, testutil.EncodeJPEG(testutil.Gradient(1024, 768)), 0o644))

	fake := testutil.NewFakeInterpreter()
	fake.Fill = 0.6
	b := bridge.NewHandler(fake, pipeline.New())

	opts := detectOptions{OutDir: filepath.Join(dir, "out"), MaskPNG: true, Threshold: 0.4}
	require.NoError(t, os.MkdirAll(opts.OutDir, 0o755))
	require.NoError(t, detectFile(context.Background(), b, in, opts))

	bin, err := os.ReadFile(filepath.Join(opts.OutDir, "frame_01.bin"))
	require.NoError(t, err)
	assert.Len(t, bin, 1_048_576)

	f, err := os.Open(filepath.Join(opts.OutDir, "frame_01_mask.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())
	gray, ok := img.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, uint8(0xff), gray.GrayAt(10, 10).Y)
}

func TestDetectFileErrors(t *testing.T) {
	dir := t.TempDir()
	b := bridge.NewHandler(testutil.NewFakeInterpreter(), pipeline.New())
	opts := detectOptions{OutDir: dir}

	err := detectFile(context.Background(), b, filepath.Join(dir, "missing.png"), opts)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	err = detectFile(context.Background(), b, bad, opts)
	var be *bridge.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, bridge.CodeDecode, be.Code)
}

func TestWriteMaskRejectsMultiChannel(t *testing.T) {
	resp := bridge.Response{Data: make([]byte, 4*2*2*3), Shape: []int{1, 2, 2, 3}}
	err := writeMask(filepath.Join(t.TempDir(), "m.png"), resp, 0.4)
	assert.Error(t, err)
}

func TestTripleValue(t *testing.T) {
	var v [3]float32
	tv := newTripleValue(&v)

	require.NoError(t, tv.Set("255"))
	assert.Equal(t, "255", tv.String())
	require.NoError(t, tv.Set("1,2,3"))
	assert.Equal(t, [3]float32{1, 2, 3}, v)
	assert.Equal(t, "1,2,3", tv.String())
	assert.Error(t, tv.Set("1,2"))
}

func TestLoadMetadataFallsBackToConfig(t *testing.T) {
	c := config.Default()
	c.MetadataPath = filepath.Join(t.TempDir(), "absent.json")
	c.TargetSize = 320
	c.Mean = [3]float32{127.5, 127.5, 127.5}

	md, err := loadMetadata(c, logger)
	require.NoError(t, err)
	h, w := md.InputSize()
	assert.Equal(t, 320, h)
	assert.Equal(t, 320, w)
	assert.Equal(t, c.Mean, md.Mean)

	p, err := newPipeline(c, md)
	require.NoError(t, err)
	assert.Equal(t, "1,320,320,3", p.InputShape().String())
	assert.Equal(t, decode.Codec{MaxPixels: c.MaxPixels}, p.Decoder)
}

func TestLoadMetadataRejectsBrokenSidecar(t *testing.T) {
	c := config.Default()
	c.MetadataPath = filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(c.MetadataPath, []byte("{"), 0o644))

	_, err := loadMetadata(c, logger)
	assert.Error(t, err)
}
