package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Brownie44l1/tensor-bridge/internal/tensor"
)

// Metadata describes the model artifact. It is read from an optional JSON
// sidecar next to the model file.
type Metadata struct {
	InputShape  []int64    `json:"input_shape"`
	OutputShape []int64    `json:"output_shape"`
	InputName   string     `json:"input_name"`
	OutputName  string     `json:"output_name"`
	ImageSize   int        `json:"image_size"`
	Mean        [3]float32 `json:"mean"`
	Std         [3]float32 `json:"std"`
}

// DefaultMetadata matches the reference 512x512 segmentation model.
func DefaultMetadata() Metadata {
	return Metadata{
		InputShape:  []int64{1, 512, 512, 3},
		OutputShape: []int64{1, 512, 512, 1},
		InputName:   "input_1",
		OutputName:  "output_1",
		ImageSize:   512,
		Mean:        [3]float32{0, 0, 0},
		Std:         [3]float32{255, 255, 255},
	}
}

// LoadMetadata reads the sidecar at path. Missing fields keep their defaults.
func LoadMetadata(path string) (Metadata, error) {
	metadata := DefaultMetadata()

	metaFile, err := os.ReadFile(path)
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := metadata.Validate(); err != nil {
		return metadata, err
	}
	return metadata, nil
}

// UnmarshalJSON accepts mean and std either as one number applied to every
// channel or as a three element array.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	type plain Metadata
	aux := struct {
		*plain
		Mean json.RawMessage `json:"mean"`
		Std  json.RawMessage `json:"std"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := decodeTriple(aux.Mean, &m.Mean); err != nil {
		return fmt.Errorf("mean: %w", err)
	}
	if err := decodeTriple(aux.Std, &m.Std); err != nil {
		return fmt.Errorf("std: %w", err)
	}
	return nil
}

func decodeTriple(raw json.RawMessage, dst *[3]float32) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v float32
	if err := json.Unmarshal(raw, &v); err == nil {
		*dst = [3]float32{v, v, v}
		return nil
	}
	var vs []float32
	if err := json.Unmarshal(raw, &vs); err != nil {
		return fmt.Errorf("want a number or an array of 3 numbers: %w", err)
	}
	if len(vs) != 3 {
		return fmt.Errorf("want 3 values, got %d", len(vs))
	}
	*dst = [3]float32(vs)
	return nil
}

func (m Metadata) Validate() error {
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 || m.InputShape[3] != 3 {
		return fmt.Errorf("input_shape must be [1,H,W,3], got %v", m.InputShape)
	}
	if len(m.OutputShape) != 4 || m.OutputShape[0] != 1 {
		return fmt.Errorf("output_shape must be [1,H,W,C], got %v", m.OutputShape)
	}
	for _, d := range append(append([]int64{}, m.InputShape...), m.OutputShape...) {
		if d < 1 {
			return fmt.Errorf("shape dimensions must be positive: in %v out %v", m.InputShape, m.OutputShape)
		}
	}
	if m.InputName == "" || m.OutputName == "" {
		return fmt.Errorf("input_name and output_name are required")
	}
	for c, s := range m.Std {
		if s == 0 {
			return fmt.Errorf("std of channel %d is zero", c)
		}
	}
	return nil
}

// InputSize returns the model's input height and width.
func (m Metadata) InputSize() (height, width int) {
	return int(m.InputShape[1]), int(m.InputShape[2])
}

func (m Metadata) InputTensorShape() tensor.Shape {
	return toShape(m.InputShape)
}

func (m Metadata) OutputTensorShape() tensor.Shape {
	return toShape(m.OutputShape)
}

func toShape(dims []int64) tensor.Shape {
	s := make(tensor.Shape, len(dims))
	for i, d := range dims {
		s[i] = int(d)
	}
	return s
}
