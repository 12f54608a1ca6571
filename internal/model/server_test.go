//go:build cgo

package model

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

// Runs only when a real model and runtime are available:
//
//	TENSOR_BRIDGE_TEST_MODEL=models/model_embedded.onnx \
//	TENSOR_BRIDGE_TEST_ORT_LIB=/usr/lib/libonnxruntime.so go test ./internal/model
func TestONNXServerInvoke(t *testing.T) {
	modelPath := os.Getenv("TENSOR_BRIDGE_TEST_MODEL")
	if modelPath == "" {
		t.Skip("TENSOR_BRIDGE_TEST_MODEL not set")
	}

	loader := ONNXLoader{
		ModelPath:   modelPath,
		LibraryPath: os.Getenv("TENSOR_BRIDGE_TEST_ORT_LIB"),
		Metadata:    DefaultMetadata(),
		Threads:     1,
	}
	interp, err := loader.Load(context.Background())
	require.NoError(t, err)
	defer interp.Close()

	in, err := tensor.New(loader.Metadata.InputTensorShape(), nil)
	require.NoError(t, err)

	out, err := interp.Invoke(context.Background(), tensor.Pack(in))
	require.NoError(t, err)
	assert.Len(t, out, 4*loader.Metadata.OutputTensorShape().Size())

	_, err = interp.Invoke(context.Background(), []byte{1, 2, 3})
	assert.ErrorIs(t, err, tensor.ErrLengthMismatch)
}
