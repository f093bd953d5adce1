// Package portraitstudio enhances portrait photographs with a fixed
// pipeline: downscale, light non-local-means denoising, CLAHE on lightness,
// generative face restoration blended at a chosen strength, segmentation
// driven background blur (bokeh) and a final unsharp mask.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		"github.com/rs/zerolog"
//
//		portraitstudio "github.com/menta2k/portrait-studio"
//	)
//
//	func main() {
//		cfg := portraitstudio.DefaultConfig()
//		cfg.Pipeline.FaceStrength = 0.6
//
//		studio, err := portraitstudio.New(cfg, zerolog.New(os.Stderr))
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer studio.Close()
//
//		if _, err := studio.EnhanceFile(context.Background(), "portrait.jpg", "portrait_enhanced.jpg"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
//  1. Stages (pkg/denoise, pkg/tone, pkg/facerestore, pkg/bokeh, pkg/sharpen)
//  2. Orchestration (pkg/enhance): runs the stages in order
//  3. Models (pkg/onnx): face detector, face restorer and segmenter on onnxruntime
//  4. Vision detection (pkg/detection): optional face detection through Ollama or llama.cpp
//  5. I/O (pkg/processing): loading, saving and debug overlays
//
// Model weights are looked up under Config.Models.WeightsDir ("weights" by
// default) on first use; a missing file fails with *onnx.MissingModelError.
package portraitstudio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/rs/zerolog"

	"github.com/menta2k/portrait-studio/internal/config"
	"github.com/menta2k/portrait-studio/internal/utils"
	"github.com/menta2k/portrait-studio/pkg/client"
	"github.com/menta2k/portrait-studio/pkg/detection"
	"github.com/menta2k/portrait-studio/pkg/enhance"
	"github.com/menta2k/portrait-studio/pkg/facerestore"
	"github.com/menta2k/portrait-studio/pkg/llamacpp"
	"github.com/menta2k/portrait-studio/pkg/ollama"
	"github.com/menta2k/portrait-studio/pkg/onnx"
	"github.com/menta2k/portrait-studio/pkg/processing"
	"github.com/menta2k/portrait-studio/pkg/types"
)

// Version of the portrait studio library
const Version = "1.0.0"

// Config is the full application configuration.
type Config = config.Config

// DefaultConfig returns the standard configuration.
func DefaultConfig() *Config {
	return config.Default()
}

// Studio loads, enhances and saves portraits.
type Studio struct {
	cfg       Config
	pipeline  *enhance.Pipeline
	processor *processing.Processor
	models    *onnx.Models
	vision    *detection.Detector
	log       zerolog.Logger
}

// New creates a Studio whose collaborators are built from cfg: onnx models
// for restoration and segmentation, and the configured face detector.
// Models are loaded lazily, so New itself does not touch the weights.
func New(cfg *Config, logger zerolog.Logger) (*Studio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	models := onnx.NewModels(cfg.Models, logger)
	var detector facerestore.FaceDetector = models.Detector()
	vision, err := newVisionDetector(cfg.Vision)
	if err != nil {
		return nil, err
	}
	if vision != nil {
		detector = vision
	}

	s, err := NewWithCollaborators(cfg, enhance.Collaborators{
		Detector:  detector,
		Restorer:  models.Restorer(),
		Segmenter: models.Segmenter(),
	}, logger)
	if err != nil {
		return nil, err
	}
	s.models = models
	s.vision = vision
	return s, nil
}

// NewWithCollaborators creates a Studio around caller-supplied models.
func NewWithCollaborators(cfg *Config, c enhance.Collaborators, logger zerolog.Logger) (*Studio, error) {
	pipeline, err := enhance.New(cfg.Pipeline, c, logger)
	if err != nil {
		return nil, err
	}
	return &Studio{
		cfg:       *cfg,
		pipeline:  pipeline,
		processor: processing.NewProcessor(),
		log:       logger,
	}, nil
}

// newVisionDetector returns nil when the onnx detector is selected.
func newVisionDetector(v config.VisionConfig) (*detection.Detector, error) {
	var vc client.VisionClient
	var err error
	switch strings.ToLower(v.Detector) {
	case config.DetectorONNX, "":
		return nil, nil
	case config.DetectorOllama:
		vc, err = ollama.NewClient(v.URL)
	case config.DetectorLlamaCpp:
		vc, err = llamacpp.NewClient(v.URL)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", v.Detector)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", v.Detector, err)
	}
	d := detection.NewDetector(vc, v.Model)
	if v.Prompt != "" {
		d = d.WithPrompt(v.Prompt)
	}
	return d, nil
}

// ErrNoVisionDetector is returned by CheckVision when faces are detected
// with the onnx model.
var ErrNoVisionDetector = errors.New("vision check needs the ollama or llamacpp detector")

// CheckVision sends input to the vision model with a plain description
// prompt and returns the reply, to confirm the model can see images before
// a long batch.
func (s *Studio) CheckVision(ctx context.Context, input string) (string, error) {
	if s.vision == nil {
		return "", ErrNoVisionDetector
	}
	img, err := s.processor.LoadImage(input)
	if err != nil {
		return "", fmt.Errorf("failed to load image: %w", err)
	}
	reply, err := s.vision.TestVision(ctx, img)
	if err != nil {
		return "", fmt.Errorf("vision check failed: %w", err)
	}
	return reply, nil
}

// Close releases any loaded models.
func (s *Studio) Close() error {
	if s.models == nil {
		return nil
	}
	return s.models.Close()
}

// Enhance runs the pipeline on an in-memory image.
func (s *Studio) Enhance(ctx context.Context, img image.Image) (*enhance.Result, error) {
	return s.pipeline.Enhance(ctx, img)
}

// EnhanceFile loads input, enhances it and writes the result to output,
// creating parent directories as needed. With Output.Debug set, an overlay
// of the restored faces and the bokeh mask is written next to the output.
func (s *Studio) EnhanceFile(ctx context.Context, input, output string) (*enhance.Result, error) {
	img, err := s.processor.LoadImage(input)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}

	res, err := s.pipeline.Enhance(ctx, img)
	if err != nil {
		return nil, err
	}

	opts := types.SaveOptions{
		Quality:  s.cfg.Output.Quality,
		Lossless: s.cfg.Output.Lossless,
		Debug:    s.cfg.Output.Debug,
	}
	if err := s.processor.SaveImage(res.Image, output, opts); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", output, err)
	}

	if opts.Debug {
		overlay := s.processor.CreateDebugOverlay(res.Image, res.Faces, res.Mask)
		dbgPath := processing.DebugPath(output)
		if err := s.processor.SaveImage(overlay, dbgPath, opts); err != nil {
			s.log.Warn().Err(err).Str("path", dbgPath).Msg("debug overlay save failed")
		}
	}
	return res, nil
}

// BatchOptions controls ProcessBatch.
type BatchOptions struct {
	// KeepGoing records a failing image and moves on instead of stopping.
	KeepGoing bool
	// Progress, if set, is called after each image with the number done.
	Progress func(done, total int, input string)
}

// ImageFailure is one image that could not be enhanced.
type ImageFailure struct {
	Input string
	Err   error
}

// BatchReport summarizes a ProcessBatch run.
type BatchReport struct {
	Plan      utils.OutputPlan
	Processed int
	Failures  []ImageFailure
}

// ErrBatchIncomplete is returned when KeepGoing is set and some images failed.
var ErrBatchIncomplete = errors.New("some images could not be processed")

// ProcessBatch resolves inputs (files or directories), plans the outputs
// and enhances each image in turn. Input errors abort before any image is
// processed. Unless opts.KeepGoing is set, the first failing image stops the
// run; images already written stay on disk.
func (s *Studio) ProcessBatch(ctx context.Context, inputs []string, output string, opts BatchOptions) (*BatchReport, error) {
	images, err := utils.CollectImages(inputs)
	if err != nil {
		return nil, err
	}

	plan := utils.PlanOutputs(images, output)
	report := &BatchReport{Plan: plan}
	if !plan.Single {
		if err := utils.EnsureDir(plan.Dir); err != nil {
			return report, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	for i, input := range images {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		log := s.log.With().Str("input", input).Logger()
		res, err := s.EnhanceFile(ctx, input, plan.Targets[i])
		if err != nil {
			if !opts.KeepGoing || errors.Is(err, context.Canceled) {
				return report, fmt.Errorf("%s: %w", input, err)
			}
			log.Error().Err(err).Msg("image failed")
			report.Failures = append(report.Failures, ImageFailure{Input: input, Err: err})
		} else {
			report.Processed++
			log.Info().
				Str("output", plan.Targets[i]).
				Int("faces", len(res.Faces)).
				Int("failed_faces", res.FailedFaces()).
				Msg("enhanced")
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(images), input)
		}
	}

	if len(report.Failures) > 0 {
		return report, fmt.Errorf("%w: %d of %d failed", ErrBatchIncomplete, len(report.Failures), len(images))
	}
	return report, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
