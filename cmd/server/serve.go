package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Brownie44l1/tensor-bridge/internal/handlers"
	"github.com/Brownie44l1/tensor-bridge/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve game_detect over HTTP and websockets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().AddFlagSet(serveFlags())
	rootCmd.AddCommand(serveCmd)
}

func serveFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	f.StringVar(&cfg.Listen, "listen", cfg.Listen, "Address to listen on")
	f.Int64Var(&cfg.MaxUploadBytes, "max-upload-bytes", cfg.MaxUploadBytes, "Largest accepted image upload")
	f.StringSliceVar(&cfg.CORSOrigins, "origins", cfg.CORSOrigins, "Allowed CORS and websocket origins")
	return f
}

func runServe(ctx context.Context) error {
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New(logger)
	eng, err := newEngine(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			logger.Warn("closing engine", zap.Error(err))
		}
	}()
	m.SetPoolSize(eng.poolSize)

	h := handlers.NewHandler(eng.bridge, logger, handlers.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		PoolSize:       eng.poolSize,
		LoaderMode:     string(cfg.LoaderMode),
	})
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           h.Routes(cfg.CORSOrigins, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("listen", cfg.Listen),
			zap.String("model", cfg.ModelPath),
			zap.Strings("endpoints", []string{
				"GET /health",
				"GET /metrics",
				"POST /predict",
				"POST /predict/image",
				"POST /channel/:method",
				"GET /channel/ws",
			}))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
