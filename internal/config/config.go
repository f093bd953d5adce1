package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/portrait-studio/pkg/enhance"
	"github.com/menta2k/portrait-studio/pkg/onnx"
)

// Detector backends.
const (
	DetectorONNX     = "onnx"
	DetectorOllama   = "ollama"
	DetectorLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Pipeline enhance.Config `json:"pipeline"`
	Models   onnx.Config    `json:"models"`
	Vision   VisionConfig   `json:"vision"`
	Output   OutputConfig   `json:"output"`
}

// VisionConfig selects the face detector backend. The ollama and llamacpp
// backends ask a multimodal model for face boxes instead of running the
// onnx detector; restoration and segmentation always use onnx.
type VisionConfig struct {
	Detector string `json:"detector"`
	URL      string `json:"url"`
	Model    string `json:"model"`
	// Prompt replaces the built-in face detection prompt when set.
	Prompt string `json:"prompt,omitempty"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Quality  int  `json:"quality"`
	Lossless bool `json:"lossless"`
	Debug    bool `json:"debug"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Pipeline: enhance.DefaultConfig(),
		Models:   onnx.DefaultConfig(),
		Vision: VisionConfig{
			Detector: DetectorONNX,
			URL:      "http://localhost:11434",
			Model:    "llava:7b",
		},
		Output: OutputConfig{
			Quality: 95,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch strings.ToLower(c.Vision.Detector) {
	case DetectorONNX:
	case DetectorOllama, DetectorLlamaCpp:
		if c.Vision.URL == "" {
			return fmt.Errorf("vision.url is required for the %s detector", c.Vision.Detector)
		}
		if c.Vision.Model == "" && strings.EqualFold(c.Vision.Detector, DetectorOllama) {
			return fmt.Errorf("vision.model is required for the ollama detector")
		}
	default:
		return fmt.Errorf("vision.detector must be one of onnx, ollama, llamacpp (got %q)", c.Vision.Detector)
	}

	if c.Models.Restorer.File == "" || c.Models.Segmenter.File == "" || c.Models.Detector.File == "" {
		return fmt.Errorf("models: every model needs a file name")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "portrait-studio", "config.json")
}
