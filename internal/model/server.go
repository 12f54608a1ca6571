//go:build cgo

package model

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment initializes the ONNX runtime once per process. An empty
// libraryPath keeps the onnxruntime_go default.
func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if !ort.IsInitialized() {
			envErr = ort.InitializeEnvironment()
		}
	})
	return envErr
}

// DestroyEnvironment releases the ONNX runtime. Call once at shutdown.
func DestroyEnvironment() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ONNXLoader loads ONNX sessions for a model file.
type ONNXLoader struct {
	ModelPath   string
	LibraryPath string
	Metadata    Metadata
	Threads     int
}

func (l ONNXLoader) Load(ctx context.Context) (Interpreter, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("load", l.ModelPath, ErrInterpreter, err)
	}
	s, err := NewServer(l.ModelPath, l.LibraryPath, l.Metadata, l.Threads)
	if err != nil {
		return nil, wrap("load", l.ModelPath, ErrInterpreter, err)
	}
	return s, nil
}

// Server is one ONNX session with preallocated input and output tensors.
// Invoke is not safe for concurrent use; share a Server through a Pool.
type Server struct {
	modelPath    string
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputShape   tensor.Shape
	outputShape  tensor.Shape
}

func NewServer(modelPath, libraryPath string, metadata Metadata, threads int) (*Server, error) {
	if err := initEnvironment(libraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputShape := ort.NewShape(metadata.InputShape...)
	outputShape := ort.NewShape(metadata.OutputShape...)

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if threads > 0 {
		if err := options.SetIntraOpNumThreads(threads); err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Server{
		modelPath:    modelPath,
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputShape:   metadata.InputTensorShape(),
		outputShape:  metadata.OutputTensorShape(),
	}, nil
}

// Invoke decodes the canonical input bytes into the session's input tensor,
// runs the model and returns the output tensor in canonical byte order.
func (s *Server) Invoke(ctx context.Context, input []byte) ([]byte, error) {
	if s.session == nil {
		return nil, wrap("invoke", s.modelPath, ErrInterpreter, fmt.Errorf("session closed"))
	}
	if err := ctx.Err(); err != nil {
		return nil, wrap("invoke", s.modelPath, ErrPrediction, err)
	}

	in, err := tensor.Unpack(input, s.inputShape)
	if err != nil {
		return nil, err
	}
	copy(s.inputTensor.GetData(), in.Data)

	if err := s.session.Run(); err != nil {
		return nil, wrap("invoke", s.modelPath, ErrPrediction, fmt.Errorf("inference failed: %w", err))
	}

	out, err := tensor.New(s.outputShape, s.outputTensor.GetData())
	if err != nil {
		return nil, wrap("invoke", s.modelPath, ErrPrediction, err)
	}
	return tensor.Pack(out), nil
}

func (s *Server) Close() error {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
		s.outputTensor = nil
	}
	if s.session != nil {
		err := s.session.Destroy()
		s.session = nil
		return err
	}
	return nil
}
