// Package bridge exposes the image-to-tensor pipeline and the model behind a
// transport independent request/response contract.
package bridge

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/tensor-bridge/internal/decode"
	"github.com/Brownie44l1/tensor-bridge/internal/model"
	"github.com/Brownie44l1/tensor-bridge/internal/raster"
	"github.com/Brownie44l1/tensor-bridge/internal/scale"
	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

const (
	MethodGameDetect = "game_detect"
	ArgImage         = "image"
)

// Code tags an error response. Values are stable across transports.
type Code string

const (
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeDecode            Code = "DECODE_ERROR"
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	CodeInvalidDimensions Code = "INVALID_DIMENSIONS"
	CodeDataConversion    Code = "DATA_CONVERSION_ERROR"
	CodeInterpreter       Code = "INTERPRETER_ERROR"
	CodePrediction        Code = "PREDICTION_ERROR"
	CodeLengthMismatch    Code = "LENGTH_MISMATCH"
)

// ErrInvalidArgument is returned when a required argument is missing or has
// the wrong type.
var ErrInvalidArgument = errors.New("invalid argument")

// Classify maps an error from any stage to its response code. Errors that
// match no stage sentinel are reported as data conversion failures.
func Classify(err error) Code {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, tensor.ErrLengthMismatch):
		return CodeLengthMismatch
	case errors.Is(err, decode.ErrDecode):
		return CodeDecode
	case errors.Is(err, raster.ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, scale.ErrInvalidDimensions):
		return CodeInvalidDimensions
	case errors.Is(err, model.ErrPrediction):
		return CodePrediction
	case errors.Is(err, model.ErrInterpreter):
		return CodeInterpreter
	default:
		return CodeDataConversion
	}
}

// Request is one call across the bridge.
type Request struct {
	Method string
	Args   map[string]any
}

// Error is the tagged failure carried by a Response.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Response holds exactly one of Data, Err or NotImplemented.
type Response struct {
	Data           []byte
	Shape          tensor.Shape
	Err            *Error
	NotImplemented bool
}

func (r Response) OK() bool {
	return r.Err == nil && !r.NotImplemented
}

func success(data []byte, shape tensor.Shape) Response {
	return Response{Data: data, Shape: shape.Clone()}
}

func failure(err error) Response {
	return Response{Err: &Error{Code: Classify(err), Message: err.Error()}}
}

func notImplemented() Response {
	return Response{NotImplemented: true}
}

// imageArg extracts the "image" argument as bytes.
func imageArg(args map[string]any) ([]byte, error) {
	v, ok := args[ArgImage]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrInvalidArgument, ArgImage)
	}
	switch b := v.(type) {
	case []byte:
		return b, nil
	case nil:
		return nil, fmt.Errorf("%w: %q is null", ErrInvalidArgument, ArgImage)
	default:
		return nil, fmt.Errorf("%w: %q must be bytes, got %T", ErrInvalidArgument, ArgImage, v)
	}
}
