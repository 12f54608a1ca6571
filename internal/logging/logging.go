// Package logging builds the process logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures console and rotated file output.
type Options struct {
	Level     string // debug, info, warn, error
	JSON      bool   // JSON console encoding instead of human readable
	ToConsole bool
	FilePath  string // empty disables file output

	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

func DefaultOptions() Options {
	return Options{
		Level:      "info",
		ToConsole:  true,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
	}
}

// New returns a logger writing to stderr and, when FilePath is set, to a
// rotated file. File output is always JSON.
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	enabler := zap.NewAtomicLevelAt(level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "time"

	var cores []zapcore.Core
	if opts.ToConsole {
		consoleCfg := encCfg
		var enc zapcore.Encoder
		if opts.JSON {
			enc = zapcore.NewJSONEncoder(consoleCfg)
		} else {
			consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
			enc = zapcore.NewConsoleEncoder(consoleCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), enabler))
	}
	if opts.FilePath != "" {
		w, err := fileWriter(opts)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, enabler))
	}
	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func fileWriter(opts Options) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAge,
		Compress:   opts.Compress,
	}), nil
}
