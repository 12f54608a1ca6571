package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/Brownie44l1/tensor-bridge/internal/bridge"
	"github.com/Brownie44l1/tensor-bridge/internal/config"
	"github.com/Brownie44l1/tensor-bridge/internal/decode"
	"github.com/Brownie44l1/tensor-bridge/internal/model"
	"github.com/Brownie44l1/tensor-bridge/internal/pipeline"
	"github.com/Brownie44l1/tensor-bridge/internal/scale"
	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

// engine is the loaded model plus the bridge in front of it.
type engine struct {
	bridge   *bridge.Handler
	interp   model.Interpreter
	metadata model.Metadata
	poolSize int
}

func (e *engine) Close() error {
	return errors.Join(e.interp.Close(), model.DestroyEnvironment())
}

// loadMetadata reads the sidecar. A missing sidecar falls back to the
// configured target size and normalization.
func loadMetadata(c config.Config, logger *zap.Logger) (model.Metadata, error) {
	md, err := model.LoadMetadata(c.MetadataPath)
	if err == nil {
		logger.Info("loaded model metadata", zap.String("path", c.MetadataPath),
			zap.Int64s("input_shape", md.InputShape), zap.Int64s("output_shape", md.OutputShape))
		return md, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return md, err
	}

	logger.Info("no metadata sidecar, using configured defaults", zap.String("path", c.MetadataPath))
	md = model.DefaultMetadata()
	size := int64(c.TargetSize)
	md.InputShape = []int64{1, size, size, 3}
	md.OutputShape = []int64{1, size, size, 1}
	md.ImageSize = c.TargetSize
	md.Mean, md.Std = c.Mean, c.Std
	return md, md.Validate()
}

func newPipeline(c config.Config, md model.Metadata) (*pipeline.Pipeline, error) {
	scaler, err := scale.ByName(c.Kernel)
	if err != nil {
		return nil, err
	}
	h, w := md.InputSize()
	return &pipeline.Pipeline{
		Decoder: decode.Codec{MaxPixels: c.MaxPixels},
		Scaler:  scaler,
		Width:   w,
		Height:  h,
		Params:  tensor.NormalizationParams{Mean: md.Mean, Std: md.Std},
	}, nil
}

func newEngine(ctx context.Context, c config.Config, logger *zap.Logger, observer bridge.Observer) (*engine, error) {
	md, err := loadMetadata(c, logger)
	if err != nil {
		return nil, err
	}
	p, err := newPipeline(c, md)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(c.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	loader := model.ONNXLoader{
		ModelPath:   c.ModelPath,
		LibraryPath: c.LibraryPath,
		Metadata:    md,
		Threads:     c.Threads,
	}
	logger.Info("loading model", zap.String("path", c.ModelPath), zap.String("loader_mode", string(c.LoaderMode)))

	var (
		interp   model.Interpreter
		poolSize int
	)
	switch c.LoaderMode {
	case config.LoaderPerRequest:
		// fail fast on a broken artifact instead of on the first request
		probe, err := loader.Load(ctx)
		if err != nil {
			return nil, err
		}
		_ = probe.Close()
		interp = model.PerRequest{Loader: loader}
	default:
		pool, err := model.NewPool(ctx, loader, c.PoolSize, logger)
		if err != nil {
			return nil, err
		}
		interp, poolSize = pool, pool.Size()
	}

	opts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithInputShape(md.InputTensorShape()),
		bridge.WithOutputShape(md.OutputTensorShape()),
	}
	if observer != nil {
		opts = append(opts, bridge.WithObserver(observer))
	}
	return &engine{
		bridge:   bridge.NewHandler(interp, p, opts...),
		interp:   interp,
		metadata: md,
		poolSize: poolSize,
	}, nil
}
