package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCGORequired is returned when a model is used in a build without CGO.
var ErrCGORequired = errors.New("onnx models require CGO support; rebuild with CGO_ENABLED=1")

// ModelOptions describes how to feed one model.
type ModelOptions struct {
	// File is the model file name, resolved against Config.WeightsDir unless absolute.
	File string `json:"file"`

	// Input and output tensor names. When empty, the model's first input and
	// outputs are used.
	InputName   string   `json:"input_name,omitempty"`
	OutputNames []string `json:"output_names,omitempty"`

	InputWidth  int `json:"input_width"`
	InputHeight int `json:"input_height"`

	// Mean and Std normalize samples scaled to [0,1], listed in ColorOrder.
	Mean [3]float32 `json:"mean"`
	Std  [3]float32 `json:"std"`

	// ColorOrder is "RGB" or "BGR".
	ColorOrder string `json:"color_order"`

	// Interpolation used to scale inputs: "bicubic" or "bilinear".
	Interpolation string `json:"interpolation"`
}

// DetectorOptions configures the face detector (UltraFace layout: scores
// [1,N,2] and corner boxes [1,N,4] normalized to [0,1]).
type DetectorOptions struct {
	ModelOptions
	Anchors        int     `json:"anchors"`
	ScoreThreshold float64 `json:"score_threshold"`
	IOUThreshold   float64 `json:"iou_threshold"`
}

// Config locates the models and the onnxruntime shared library.
type Config struct {
	WeightsDir string `json:"weights_dir"`
	// SharedLibraryPath points at onnxruntime (.so/.dylib/.dll). If empty,
	// ONNXRUNTIME_SHARED_LIBRARY_PATH is used, then the system default.
	SharedLibraryPath string `json:"shared_library_path,omitempty"`

	Detector  DetectorOptions `json:"detector"`
	Restorer  ModelOptions    `json:"restorer"`
	Segmenter ModelOptions    `json:"segmenter"`
}

// DefaultConfig returns settings for UltraFace RFB-320, GFPGAN v1.4 and
// U2Net exports stored under ./weights.
func DefaultConfig() Config {
	return Config{
		WeightsDir: "weights",
		Detector: DetectorOptions{
			ModelOptions: ModelOptions{
				File:          "version-RFB-320.onnx",
				InputName:     "input",
				OutputNames:   []string{"scores", "boxes"},
				InputWidth:    320,
				InputHeight:   240,
				Mean:          [3]float32{127.0 / 255, 127.0 / 255, 127.0 / 255},
				Std:           [3]float32{128.0 / 255, 128.0 / 255, 128.0 / 255},
				ColorOrder:    "RGB",
				Interpolation: "bilinear",
			},
			Anchors:        4420,
			ScoreThreshold: 0.7,
			IOUThreshold:   0.3,
		},
		Restorer: ModelOptions{
			File:          "GFPGANv1.4.onnx",
			InputName:     "input",
			OutputNames:   []string{"output"},
			InputWidth:    512,
			InputHeight:   512,
			Mean:          [3]float32{0.5, 0.5, 0.5},
			Std:           [3]float32{0.5, 0.5, 0.5},
			ColorOrder:    "RGB",
			Interpolation: "bicubic",
		},
		Segmenter: ModelOptions{
			File:          "u2net.onnx",
			InputWidth:    320,
			InputHeight:   320,
			Mean:          [3]float32{0.485, 0.456, 0.406},
			Std:           [3]float32{0.229, 0.224, 0.225},
			ColorOrder:    "RGB",
			Interpolation: "bicubic",
		},
	}
}

// MissingModelError reports a model weights file that could not be found.
type MissingModelError struct {
	Kind string
	Path string
}

func (e *MissingModelError) Error() string {
	return fmt.Sprintf("%s model not found at %s. Please place %s inside the %s folder (or point --weights at the folder that holds it)",
		e.Kind, e.Path, filepath.Base(e.Path), filepath.Dir(e.Path))
}

// modelPath resolves a model file against the weights directory.
func (c Config) modelPath(file string) string {
	if filepath.IsAbs(file) || c.WeightsDir == "" {
		return file
	}
	return filepath.Join(c.WeightsDir, file)
}

// checkWeights fails fast when a weights file is missing.
func checkWeights(kind, path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return &MissingModelError{Kind: kind, Path: path}
	}
	return nil
}

// sharedLibraryPath picks the onnxruntime library location.
func (c Config) sharedLibraryPath() string {
	if c.SharedLibraryPath != "" {
		return c.SharedLibraryPath
	}
	return os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")
}
