// Package config holds server and pipeline settings. Values come from
// defaults, then TENSOR_BRIDGE_* environment variables, then command line
// flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Brownie44l1/tensor-bridge/internal/decode"
	"github.com/Brownie44l1/tensor-bridge/internal/logging"
	"github.com/Brownie44l1/tensor-bridge/internal/scale"
)

// LoaderMode selects how interpreters are created.
type LoaderMode string

const (
	// LoaderPooled keeps PoolSize interpreters loaded for the process lifetime.
	LoaderPooled LoaderMode = "pooled"
	// LoaderPerRequest loads and closes an interpreter for every request.
	LoaderPerRequest LoaderMode = "per_request"
)

type Config struct {
	Listen       string
	ModelPath    string
	MetadataPath string
	LibraryPath  string // onnxruntime shared library; empty uses the default

	PoolSize   int
	LoaderMode LoaderMode
	Threads    int

	TargetSize int
	Mean       [3]float32
	Std        [3]float32
	Kernel     string

	MaxUploadBytes int64
	MaxPixels      int64 // declared width*height accepted by the decoder
	CORSOrigins    []string

	Log logging.Options
}

func Default() Config {
	return Config{
		Listen:         ":8080",
		ModelPath:      "models/model_embedded.onnx",
		MetadataPath:   "models/model_metadata.json",
		PoolSize:       2,
		LoaderMode:     LoaderPooled,
		Threads:        5,
		TargetSize:     512,
		Mean:           [3]float32{0, 0, 0},
		Std:            [3]float32{255, 255, 255},
		Kernel:         "bilinear",
		MaxUploadBytes: 32 << 20,
		MaxPixels:      decode.DefaultMaxPixels,
		CORSOrigins:    []string{"*"},
		Log:            logging.DefaultOptions(),
	}
}

// Load returns Default with environment overrides applied.
func Load() (Config, error) {
	c := Default()
	if err := c.ApplyEnv(); err != nil {
		return c, err
	}
	return c, nil
}

// Var returns the trimmed value of an environment variable with surrounding
// quotes removed.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// ApplyEnv overrides fields from the environment. PORT is honoured for
// compatibility; TENSOR_BRIDGE_LISTEN wins when both are set.
func (c *Config) ApplyEnv() error {
	var errs []error
	if s := Var("PORT"); s != "" {
		c.Listen = ":" + s
	}
	setString(&c.Listen, "TENSOR_BRIDGE_LISTEN")
	setString(&c.ModelPath, "TENSOR_BRIDGE_MODEL")
	setString(&c.MetadataPath, "TENSOR_BRIDGE_METADATA")
	setString(&c.LibraryPath, "TENSOR_BRIDGE_ORT_LIB")
	setString(&c.Kernel, "TENSOR_BRIDGE_KERNEL")
	if s := Var("TENSOR_BRIDGE_LOADER_MODE"); s != "" {
		c.LoaderMode = LoaderMode(s)
	}

	errs = append(errs,
		setInt(&c.PoolSize, "TENSOR_BRIDGE_POOL_SIZE"),
		setInt(&c.Threads, "TENSOR_BRIDGE_THREADS"),
		setInt(&c.TargetSize, "TENSOR_BRIDGE_TARGET_SIZE"),
		setInt64(&c.MaxUploadBytes, "TENSOR_BRIDGE_MAX_UPLOAD_BYTES"),
		setInt64(&c.MaxPixels, "TENSOR_BRIDGE_MAX_PIXELS"),
		setTriple(&c.Mean, "TENSOR_BRIDGE_MEAN"),
		setTriple(&c.Std, "TENSOR_BRIDGE_STD"),
	)

	if s := Var("TENSOR_BRIDGE_ORIGINS"); s != "" {
		c.CORSOrigins = splitList(s)
	}

	setString(&c.Log.Level, "TENSOR_BRIDGE_LOG_LEVEL")
	setString(&c.Log.FilePath, "TENSOR_BRIDGE_LOG_FILE")
	errs = append(errs, setBool(&c.Log.JSON, "TENSOR_BRIDGE_LOG_JSON"))
	if s := Var("TENSOR_BRIDGE_DEBUG"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil && b {
			c.Log.Level = "debug"
		}
	}
	return errors.Join(errs...)
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.ModelPath == "" {
		errs = append(errs, errors.New("model path is empty"))
	}
	if c.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("pool size must be positive, got %d", c.PoolSize))
	}
	switch c.LoaderMode {
	case LoaderPooled, LoaderPerRequest:
	default:
		errs = append(errs, fmt.Errorf("unknown loader mode %q", c.LoaderMode))
	}
	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must not be negative, got %d", c.Threads))
	}
	if c.TargetSize < 1 {
		errs = append(errs, fmt.Errorf("target size must be positive, got %d", c.TargetSize))
	}
	for i, s := range c.Std {
		if s == 0 {
			errs = append(errs, fmt.Errorf("std of channel %d is zero", i))
		}
	}
	if _, err := scale.ByName(c.Kernel); err != nil {
		errs = append(errs, err)
	}
	if c.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if c.MaxPixels < 1 {
		errs = append(errs, fmt.Errorf("max pixels must be positive, got %d", c.MaxPixels))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if s := Var(key); s != "" {
		*dst = s
	}
}

func setInt(dst *int, key string) error {
	s := Var(key)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	s := Var(key)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	s := Var(key)
	if s == "" {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setTriple(dst *[3]float32, key string) error {
	s := Var(key)
	if s == "" {
		return nil
	}
	v, err := ParseTriple(s)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

// ParseTriple parses "v" or "r,g,b". A single value applies to every channel.
func ParseTriple(s string) ([3]float32, error) {
	var out [3]float32
	parts := splitList(s)
	if len(parts) != 1 && len(parts) != 3 {
		return out, fmt.Errorf("want 1 or 3 values, got %d", len(parts))
	}
	for i := range out {
		p := parts[0]
		if len(parts) == 3 {
			p = parts[i]
		}
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return out, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
