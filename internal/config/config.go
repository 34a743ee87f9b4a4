// Package config loads settings from an optional .env file and the
// environment. Command-line flags are layered on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Brownie44l1/lizzycam/internal/decision"
	"github.com/Brownie44l1/lizzycam/internal/frame"
	"github.com/Brownie44l1/lizzycam/internal/tensor"
)

type Config struct {
	Port string

	ModelPath         string
	MetadataPath      string
	SharedLibraryPath string
	InputName         string
	OutputName        string

	ImageSize  int
	ClassCount int
	Threshold  float64
	Target     string

	Resampler   string
	DecodeMode  string
	FrameLayout string

	InferenceTimeout time.Duration
	Debug            bool
}

// Default returns the configuration the app ships with.
func Default() *Config {
	return &Config{
		Port:             "8080",
		ModelPath:        "models/is_lizzy.onnx",
		InputName:        "input",
		OutputName:       "output",
		ImageSize:        tensor.DefaultSize,
		ClassCount:       decision.DefaultClassCount,
		Threshold:        decision.DefaultThreshold,
		Target:           decision.DefaultTarget,
		Resampler:        "imaging",
		DecodeMode:       "direct",
		FrameLayout:      "nv21",
		InferenceTimeout: 5 * time.Second,
	}
}

// Load reads .env (if present) and then the environment over Default().
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load .env file: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := Default()
	var err error

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.ModelPath = getEnv("MODEL_PATH", cfg.ModelPath)
	cfg.MetadataPath = getEnv("METADATA_PATH", cfg.MetadataPath)
	cfg.SharedLibraryPath = getEnv("ONNXRUNTIME_LIB", cfg.SharedLibraryPath)
	cfg.InputName = getEnv("INPUT_NAME", cfg.InputName)
	cfg.OutputName = getEnv("OUTPUT_NAME", cfg.OutputName)
	cfg.Target = getEnv("TARGET_LABEL", cfg.Target)
	cfg.Resampler = getEnv("RESAMPLER", cfg.Resampler)
	cfg.DecodeMode = getEnv("DECODE_MODE", cfg.DecodeMode)
	cfg.FrameLayout = getEnv("FRAME_LAYOUT", cfg.FrameLayout)

	if cfg.ImageSize, err = getInt("IMAGE_SIZE", cfg.ImageSize); err != nil {
		return nil, err
	}
	if cfg.ClassCount, err = getInt("CLASS_COUNT", cfg.ClassCount); err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv("CONFIDENCE_THRESHOLD"); ok {
		if cfg.Threshold, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid CONFIDENCE_THRESHOLD %q: %w", v, err)
		}
	}
	if v, ok := os.LookupEnv("INFERENCE_TIMEOUT"); ok {
		if cfg.InferenceTimeout, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid INFERENCE_TIMEOUT %q: %w", v, err)
		}
	}
	cfg.Debug = os.Getenv("DEBUG") == "true"

	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("image size must be positive, got %d", c.ImageSize)
	}
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	if _, err := tensor.ParseResampler(c.Resampler); err != nil {
		return err
	}
	if _, err := frame.ParseMode(c.DecodeMode); err != nil {
		return err
	}
	if _, err := frame.ParseLayout(c.FrameLayout); err != nil {
		return err
	}
	if c.InferenceTimeout < 0 {
		return fmt.Errorf("inference timeout must not be negative, got %v", c.InferenceTimeout)
	}
	return nil
}

// Policy is the decision policy described by the config.
func (c *Config) Policy() decision.Policy {
	return decision.Policy{
		Threshold:  float32(c.Threshold),
		ClassCount: c.ClassCount,
		Target:     c.Target,
	}
}

// Decoder is the frame decoder described by the config. Call Validate first.
func (c *Config) Decoder() frame.Decoder {
	mode, _ := frame.ParseMode(c.DecodeMode)
	layout, _ := frame.ParseLayout(c.FrameLayout)
	return frame.Decoder{Mode: mode, Layout: layout}
}

// Builder is the tensor builder described by the config. Call Validate first.
func (c *Config) Builder() tensor.Builder {
	r, _ := tensor.ParseResampler(c.Resampler)
	return tensor.NewBuilder(c.ImageSize, r)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
