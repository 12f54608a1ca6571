// Package handlers exposes the bridge over HTTP and websockets.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/tensor-bridge/internal/bridge"
	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

const (
	HeaderRequestID   = "X-Request-ID"
	HeaderTensorShape = "X-Tensor-Shape"
	formField         = "image"
)

// Options describe the serving environment reported by Health and the limits
// applied to uploads.
type Options struct {
	MaxUploadBytes int64
	PoolSize       int
	LoaderMode     string
}

type Handler struct {
	bridge  *bridge.Handler
	logger  *zap.Logger
	opts    Options
	started time.Time
}

func NewHandler(b *bridge.Handler, logger *zap.Logger, opts Options) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	return &Handler{
		bridge:  b,
		logger:  logger,
		opts:    opts,
		started: time.Now(),
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"pool_size":    h.opts.PoolSize,
		"loader_mode":  h.opts.LoaderMode,
		"input_shape":  h.bridge.InputShape(),
		"output_shape": h.bridge.OutputShape(),
		"uptime":       time.Since(h.started).Round(time.Second).String(),
	})
}

// Channel dispatches POST /channel/:method. The image is read from the
// multipart field "image" or, for any other content type, the raw body.
func (h *Handler) Channel(c *gin.Context) {
	h.serve(c, c.Param("method"))
}

// PredictFromImage is POST /predict/image, an alias for game_detect.
func (h *Handler) PredictFromImage(c *gin.Context) {
	h.serve(c, bridge.MethodGameDetect)
}

func (h *Handler) serve(c *gin.Context, method string) {
	args, err := h.readArgs(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, bridge.Error{
				Code:    bridge.CodeInvalidArgument,
				Message: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, bridge.Error{Code: bridge.CodeInvalidArgument, Message: err.Error()})
		return
	}

	resp := h.bridge.Handle(c.Request.Context(), bridge.Request{Method: method, Args: args})
	writeResponse(c, method, resp)
}

func (h *Handler) readArgs(c *gin.Context) (map[string]any, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile(formField)
		if errors.Is(err, http.ErrMissingFile) {
			return map[string]any{}, nil
		}
		if err != nil {
			return nil, err
		}
		data, err := readFormFile(fh)
		if err != nil {
			return nil, err
		}
		return map[string]any{bridge.ArgImage: data}, nil
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	return map[string]any{bridge.ArgImage: data}, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func writeResponse(c *gin.Context, method string, resp bridge.Response) {
	switch {
	case resp.NotImplemented:
		c.JSON(http.StatusNotImplemented, gin.H{"not_implemented": true, "method": method})
	case resp.Err != nil:
		c.JSON(StatusFor(resp.Err.Code), resp.Err)
	default:
		c.Header(HeaderTensorShape, resp.Shape.String())
		c.Data(http.StatusOK, "application/octet-stream", resp.Data)
	}
}

// StatusFor maps a bridge error code to an HTTP status.
func StatusFor(code bridge.Code) int {
	switch code {
	case bridge.CodeInvalidArgument, bridge.CodeDecode, bridge.CodeUnsupportedFormat:
		return http.StatusBadRequest
	case bridge.CodeInvalidDimensions, bridge.CodeDataConversion, bridge.CodeLengthMismatch:
		return http.StatusUnprocessableEntity
	case bridge.CodeInterpreter:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PredictionRequest carries an already normalized NHWC input tensor.
type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	Shape  tensor.Shape `json:"shape"`
	Output []float32    `json:"output"`
}

// Predict is POST /predict: run a raw float tensor through the model without
// image preprocessing.
func (h *Handler) Predict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)

	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, bridge.Error{Code: bridge.CodeInvalidArgument, Message: "Invalid JSON"})
		return
	}

	shape := h.bridge.InputShape()
	in, err := tensor.New(shape, req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, bridge.Error{
			Code:    bridge.CodeInvalidArgument,
			Message: fmt.Sprintf("Expected %d values, got %d", shape.Size(), len(req.Image)),
		})
		return
	}

	out, err := h.bridge.Predict(c.Request.Context(), in)
	if err != nil {
		code := bridge.Classify(err)
		h.logger.Warn("prediction error", zap.String("code", string(code)), zap.Error(err))
		c.JSON(StatusFor(code), bridge.Error{Code: code, Message: err.Error()})
		return
	}
	// JSON has no encoding for NaN or Inf
	for i, v := range out.Data {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			h.logger.Warn("prediction error", zap.String("code", string(bridge.CodePrediction)), zap.Int("index", i))
			c.JSON(StatusFor(bridge.CodePrediction), bridge.Error{
				Code:    bridge.CodePrediction,
				Message: fmt.Sprintf("model produced non-finite output at index %d", i),
			})
			return
		}
	}
	c.JSON(http.StatusOK, PredictionResponse{Shape: out.Shape, Output: out.Data})
}

// RequestID tags each request with an id taken from X-Request-ID or freshly
// generated, and makes it visible to the bridge logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Set("request_id", id)
		c.Request = c.Request.WithContext(bridge.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// AccessLog logs one line per request.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
