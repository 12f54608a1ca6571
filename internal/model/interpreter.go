// Package model runs the vision model. Callers exchange canonical
// little-endian tensor bytes with an Interpreter and never see engine types.
package model

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInterpreter is returned when an interpreter cannot be loaded or has
	// been closed.
	ErrInterpreter = errors.New("interpreter unavailable")

	// ErrPrediction is returned when an invocation fails.
	ErrPrediction = errors.New("prediction failed")
)

// Interpreter executes the model on one packed input tensor. Implementations
// document whether Invoke may be called concurrently.
type Interpreter interface {
	Invoke(ctx context.Context, input []byte) ([]byte, error)
	Close() error
}

// Loader creates interpreters from the configured model artifact.
type Loader interface {
	Load(ctx context.Context) (Interpreter, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (Interpreter, error)

func (f LoaderFunc) Load(ctx context.Context) (Interpreter, error) {
	return f(ctx)
}

// EngineError records which engine operation failed on which model.
type EngineError struct {
	Op    string
	Model string
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("model %s: %s: %v", e.Model, e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func wrap(op, model string, kind, err error) error {
	return &EngineError{Op: op, Model: model, Err: fmt.Errorf("%w: %w", kind, err)}
}
