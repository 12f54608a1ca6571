//go:build !cgo

package model

import (
	"context"
	"errors"
)

// ErrCGORequired is returned by every ONNX operation in builds without cgo.
var ErrCGORequired = errors.New("onnx runtime requires cgo")

type ONNXLoader struct {
	ModelPath   string
	LibraryPath string
	Metadata    Metadata
	Threads     int
}

func (l ONNXLoader) Load(context.Context) (Interpreter, error) {
	return nil, wrap("load", l.ModelPath, ErrInterpreter, ErrCGORequired)
}

func DestroyEnvironment() error {
	return nil
}
