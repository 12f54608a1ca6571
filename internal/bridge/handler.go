package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/tensor-bridge/internal/model"
	"github.com/Brownie44l1/tensor-bridge/internal/pipeline"
	"github.com/Brownie44l1/tensor-bridge/internal/raster"
	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

// State is a step of a game_detect request.
type State int

const (
	StateIdle State = iota
	StateDecoding
	StateProcessing
	StateInvoking
	StatePacking
	StateResponding
)

var stateNames = [...]string{"idle", "decoding", "processing", "invoking", "packing", "responding"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Observer receives timings. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	ObserveResponse(method, result string, d time.Duration)
}

type requestIDKey struct{}

// WithRequestID attaches a request id that Handle will log instead of
// generating its own.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Handler serves bridge requests. It keeps no per-request state and may be
// called concurrently if the injected interpreter allows it.
type Handler struct {
	interp      model.Interpreter
	pipeline    *pipeline.Pipeline
	inputShape  tensor.Shape
	outputShape tensor.Shape
	logger      *zap.Logger
	observer    Observer
}

type Option func(*Handler)

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

func WithObserver(o Observer) Option {
	return func(h *Handler) { h.observer = o }
}

// WithInputShape sets the shape the interpreter accepts. It defaults to the
// shape the pipeline produces.
func WithInputShape(s tensor.Shape) Option {
	return func(h *Handler) { h.inputShape = s.Clone() }
}

// WithOutputShape sets the expected model output shape. The default is a
// single channel mask at the pipeline's resolution.
func WithOutputShape(s tensor.Shape) Option {
	return func(h *Handler) { h.outputShape = s.Clone() }
}

func NewHandler(interp model.Interpreter, p *pipeline.Pipeline, opts ...Option) *Handler {
	if p == nil {
		p = pipeline.New()
	}
	h := &Handler{
		interp:      interp,
		pipeline:    p,
		inputShape:  p.InputShape(),
		outputShape: tensor.ImageShape(p.Height, p.Width, 1),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) InputShape() tensor.Shape {
	return h.inputShape.Clone()
}

func (h *Handler) OutputShape() tensor.Shape {
	return h.outputShape.Clone()
}

// Predict runs an already normalized input tensor through the interpreter,
// skipping decoding and preprocessing.
func (h *Handler) Predict(ctx context.Context, input *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := h.invoke(ctx, input)
	if err != nil {
		return nil, err
	}
	return tensor.Unpack(out, h.outputShape)
}

// Handle dispatches req by method. It never panics and never returns a
// partial result.
func (h *Handler) Handle(ctx context.Context, req Request) (resp Response) {
	start := time.Now()
	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	logger := h.logger.With(zap.String("request_id", id), zap.String("method", req.Method))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered panic", zap.Any("panic", r), zap.Stack("stack"))
			resp = failure(fmt.Errorf("%w: internal failure: %v", tensor.ErrDataConversion, r))
		}
		h.finish(logger, req.Method, resp, start)
	}()

	switch req.Method {
	case MethodGameDetect:
		return h.gameDetect(ctx, logger, req.Args)
	default:
		return notImplemented()
	}
}

func (h *Handler) gameDetect(ctx context.Context, logger *zap.Logger, args map[string]any) Response {
	logger.Debug("state", zap.Stringer("state", StateIdle))

	data, err := imageArg(args)
	if err != nil {
		return failure(err)
	}

	var (
		img   *raster.Raster
		input *tensor.Tensor
		out   []byte
	)
	err = h.stage(logger, StateDecoding, func() error {
		img, err = h.pipeline.Decode(data)
		return err
	})
	if err != nil {
		return failure(err)
	}
	logger.Debug("decoded", zap.Int("width", img.Width), zap.Int("height", img.Height),
		zap.Stringer("format", img.Format))

	err = h.stage(logger, StateProcessing, func() error {
		input, err = h.pipeline.Prepare(img)
		return err
	})
	if err != nil {
		return failure(err)
	}

	err = h.stage(logger, StateInvoking, func() error {
		out, err = h.invoke(ctx, input)
		return err
	})
	if err != nil {
		return failure(err)
	}

	var packed []byte
	err = h.stage(logger, StatePacking, func() error {
		result, err := tensor.Unpack(out, h.outputShape)
		if err != nil {
			return err
		}
		packed = tensor.Pack(result)
		return nil
	})
	if err != nil {
		return failure(err)
	}

	logger.Debug("state", zap.Stringer("state", StateResponding), zap.Int("bytes", len(packed)))
	return success(packed, h.outputShape)
}

func (h *Handler) invoke(ctx context.Context, input *tensor.Tensor) ([]byte, error) {
	if h.interp == nil {
		return nil, fmt.Errorf("%w: no interpreter configured", model.ErrInterpreter)
	}
	if !input.Shape.Equal(h.inputShape) {
		return nil, fmt.Errorf("%w: input shape %v, interpreter expects %v", tensor.ErrDataConversion, input.Shape, h.inputShape)
	}
	out, err := h.interp.Invoke(ctx, tensor.Pack(input))
	if err != nil {
		if errors.Is(err, model.ErrInterpreter) || errors.Is(err, model.ErrPrediction) || errors.Is(err, tensor.ErrLengthMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", model.ErrPrediction, err)
	}
	return out, nil
}

func (h *Handler) stage(logger *zap.Logger, s State, fn func() error) error {
	logger.Debug("state", zap.Stringer("state", s))
	start := time.Now()
	err := fn()
	if h.observer != nil {
		h.observer.ObserveStage(s.String(), time.Since(start))
	}
	return err
}

func (h *Handler) finish(logger *zap.Logger, method string, resp Response, start time.Time) {
	result := "OK"
	switch {
	case resp.NotImplemented:
		result = "NOT_IMPLEMENTED"
		logger.Debug("method not implemented")
	case resp.Err != nil:
		result = string(resp.Err.Code)
		logger.Warn("request failed", zap.String("code", result), zap.String("error", resp.Err.Message))
	default:
		logger.Debug("request complete", zap.Duration("elapsed", time.Since(start)))
	}
	if h.observer != nil {
		h.observer.ObserveResponse(method, result, time.Since(start))
	}
}
