package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Brownie44l1/tensor-bridge/internal/config"
	"github.com/Brownie44l1/tensor-bridge/internal/logging"
)

const Version = "0.1.0"

var (
	// cfg starts from defaults plus environment; flags write into it, so
	// flags win.
	cfg, envErr = config.Load()
	logger      = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "tensor-bridge",
	Short:         "Image to tensor bridge for the game_detect segmentation model",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envErr != nil {
			return fmt.Errorf("invalid environment: %w", envErr)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		l, err := logging.New(cfg.Log)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	// no subcommand serves, as the original binary did
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "Path to the ONNX model")
	f.StringVar(&cfg.MetadataPath, "metadata", cfg.MetadataPath, "Path to the model metadata JSON sidecar")
	f.StringVar(&cfg.LibraryPath, "ort-lib", cfg.LibraryPath, "Path to the onnxruntime shared library")
	f.IntVar(&cfg.PoolSize, "pool-size", cfg.PoolSize, "Number of interpreters kept loaded")
	f.StringVar((*string)(&cfg.LoaderMode), "loader-mode", string(cfg.LoaderMode), "Interpreter lifecycle: pooled or per_request")
	f.IntVar(&cfg.Threads, "threads", cfg.Threads, "Intra-op threads per interpreter (0 lets the runtime decide)")
	f.IntVar(&cfg.TargetSize, "target-size", cfg.TargetSize, "Model input edge when no metadata sidecar is present")
	f.Var(newTripleValue(&cfg.Mean), "mean", "Per-channel mean, one value or r,g,b")
	f.Var(newTripleValue(&cfg.Std), "std", "Per-channel std, one value or r,g,b")
	f.Int64Var(&cfg.MaxPixels, "max-pixels", cfg.MaxPixels, "Largest declared image width*height accepted for decoding")
	f.StringVar(&cfg.Kernel, "kernel", cfg.Kernel, "Resampling kernel: bilinear, nearest, bicubic, mitchell, lanczos2, lanczos3")
	f.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "Log level: debug, info, warn, error")
	f.StringVar(&cfg.Log.FilePath, "log-file", cfg.Log.FilePath, "Also write JSON logs to this rotated file")
	f.BoolVar(&cfg.Log.JSON, "log-json", cfg.Log.JSON, "Write console logs as JSON")

	rootCmd.Flags().AddFlagSet(serveFlags())
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// tripleValue adapts a [3]float32 to pflag.Value.
type tripleValue struct{ dst *[3]float32 }

var _ pflag.Value = tripleValue{}

func newTripleValue(dst *[3]float32) tripleValue { return tripleValue{dst: dst} }

func (v tripleValue) String() string {
	if v.dst == nil {
		return ""
	}
	d := *v.dst
	if d[0] == d[1] && d[1] == d[2] {
		return fmt.Sprintf("%g", d[0])
	}
	return fmt.Sprintf("%g,%g,%g", d[0], d[1], d[2])
}

func (v tripleValue) Set(s string) error {
	t, err := config.ParseTriple(s)
	if err != nil {
		return err
	}
	*v.dst = t
	return nil
}

func (tripleValue) Type() string { return "floats" }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
