package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Brownie44l1/tensor-bridge/internal/bridge"
	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

type detectOptions struct {
	OutDir    string
	Workers   int
	MaskPNG   bool
	Threshold float64
	Quiet     bool
}

var detectOpts detectOptions

var detectCmd = &cobra.Command{
	Use:   "detect [images...]",
	Short: "Run game_detect on image files and write the output tensors",
	Long: `Runs every image through the same bridge the server uses and writes
<name>.bin (little-endian float32, model output shape) to the output
directory. With --mask-png a thresholded <name>_mask.png is written too.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDetect(cmd.Context(), args, detectOpts)
	},
}

func init() {
	detectCmd.Flags().StringVarP(&detectOpts.OutDir, "out", "o", "out", "Output directory")
	detectCmd.Flags().IntVarP(&detectOpts.Workers, "workers", "w", 2, "Images processed concurrently")
	detectCmd.Flags().BoolVar(&detectOpts.MaskPNG, "mask-png", false, "Also write a thresholded mask PNG")
	detectCmd.Flags().Float64VarP(&detectOpts.Threshold, "threshold", "t", 0.4, "Mask threshold for --mask-png")
	detectCmd.Flags().BoolVarP(&detectOpts.Quiet, "quiet", "q", false, "Hide the progress bar")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(ctx context.Context, files []string, opts detectOptions) error {
	if opts.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", opts.Workers)
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	eng, err := newEngine(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("game_detect"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(!opts.Quiet),
	)

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for _, file := range files {
		file := file
		g.Go(func() error {
			defer bar.Add(1)
			if err := detectFile(gctx, eng.bridge, file, opts); err != nil {
				failed.Add(1)
				logger.Error("detect failed", zap.String("file", file), zap.Error(err))
			}
			// per-file failures do not cancel the batch
			return gctx.Err()
		})
	}
	err = g.Wait()
	_ = bar.Finish()
	if err != nil {
		return err
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d images failed", n, len(files))
	}
	return nil
}

func detectFile(ctx context.Context, b *bridge.Handler, path string, opts detectOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ctx = bridge.WithRequestID(ctx, filepath.Base(path))
	resp := b.Handle(ctx, bridge.Request{
		Method: bridge.MethodGameDetect,
		Args:   map[string]any{bridge.ArgImage: data},
	})
	if resp.Err != nil {
		return resp.Err
	}

	base := filepath.Join(opts.OutDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err := os.WriteFile(base+".bin", resp.Data, 0o644); err != nil {
		return err
	}
	if !opts.MaskPNG {
		return nil
	}
	return writeMask(base+"_mask.png", resp, float32(opts.Threshold))
}

func writeMask(path string, resp bridge.Response, threshold float32) error {
	shape := resp.Shape
	if len(shape) != 4 || shape[3] != 1 {
		return fmt.Errorf("mask output needs shape [1,H,W,1], got %v", shape)
	}
	mask, err := tensor.UnpackMask(resp.Data, shape[1], shape[2])
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, mask.Threshold(threshold)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
