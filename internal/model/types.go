package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata describes the bundled model. It is usually shipped as JSON next
// to the .onnx file; without one, DefaultMetadata is used.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// DefaultMetadata is the (1,3,size,size) -> (1,classCount) layout.
func DefaultMetadata(size, classCount int, target string) Metadata {
	classes := []string{target, "Not " + target}
	for i := len(classes); i < classCount; i++ {
		classes = append(classes, fmt.Sprintf("class_%d", i))
	}
	return Metadata{
		InputShape:  []int64{1, 3, int64(size), int64(size)},
		OutputShape: []int64{1, int64(classCount)},
		Classes:     classes[:classCount],
		ImageSize:   size,
	}
}

// LoadMetadata reads and validates a metadata file.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if err := metadata.Validate(); err != nil {
		return Metadata{}, err
	}
	return metadata, nil
}

// Validate checks that the shapes are a single NCHW RGB square image in and
// one row of class scores out.
func (m Metadata) Validate() error {
	if len(m.InputShape) != 4 || m.InputShape[0] != 1 || m.InputShape[1] != 3 {
		return fmt.Errorf("input shape must be (1,3,H,W), got %v", m.InputShape)
	}
	if m.InputShape[2] != m.InputShape[3] || m.InputShape[2] <= 0 {
		return fmt.Errorf("input must be a positive square, got %v", m.InputShape)
	}
	if m.ImageSize != 0 && int64(m.ImageSize) != m.InputShape[2] {
		return fmt.Errorf("image_size %d does not match input shape %v", m.ImageSize, m.InputShape)
	}
	if len(m.OutputShape) != 2 || m.OutputShape[0] != 1 || m.OutputShape[1] < 2 {
		return fmt.Errorf("output shape must be (1,C) with C >= 2, got %v", m.OutputShape)
	}
	return nil
}

// Size is the square input resolution.
func (m Metadata) Size() int {
	return int(m.InputShape[2])
}

// ClassCount is the number of output scores.
func (m Metadata) ClassCount() int {
	return int(m.OutputShape[1])
}

// ShapeLen is the element count of a tensor shape.
func ShapeLen(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, dim := range shape {
		n *= int(dim)
	}
	return n
}
