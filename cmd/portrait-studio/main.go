package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	portraitstudio "github.com/menta2k/portrait-studio"
	"github.com/menta2k/portrait-studio/internal/config"
	"github.com/menta2k/portrait-studio/internal/logging"
	"github.com/menta2k/portrait-studio/internal/utils"
)

// options holds the command line flags.
type options struct {
	inputs        []string
	output        string
	faceStrength  float64
	bokehStrength float64
	maxDim        int
	configPath    string
	saveConfig    string
	detector      string
	visionURL     string
	visionModel   string
	weights       string
	quality       int
	lossless      bool
	checkVision   bool
	keepGoing     bool
	debug         bool
	verbose       bool
}

// newStudio builds the studio for a run; tests swap in fake models.
var newStudio = portraitstudio.New

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:           "portrait-studio [flags] [input...]",
		Short:         "Enhance portrait photos: denoise, tone, face restoration, bokeh and sharpening",
		Version:       portraitstudio.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.inputs = append(opts.inputs, args...)
			return run(cmd, opts, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	f := cmd.Flags()
	f.StringSliceVarP(&opts.inputs, "input", "i", nil, "Input image files or directories (repeatable, also positional)")
	f.StringVarP(&opts.output, "output", "o", "", "Output file (single input) or directory")
	f.Float64Var(&opts.faceStrength, "face_restore_strength", defaults.Pipeline.FaceStrength, "Blend strength of restored faces, 0..1")
	f.Float64Var(&opts.bokehStrength, "bokeh_strength", defaults.Pipeline.BokehStrength, "Background blur strength (kernel radius)")
	f.IntVar(&opts.maxDim, "max-dim", defaults.Pipeline.MaxDim, "Longest side of the working image in pixels")
	f.StringVar(&opts.configPath, "config", "", "JSON config file, default "+config.GetConfigPath()+" when present (flags set explicitly override it)")
	f.StringVar(&opts.saveConfig, "save-config", "", "Write the effective configuration to this JSON file before processing")
	f.StringVar(&opts.detector, "detector", defaults.Vision.Detector, "Face detector backend: onnx, ollama or llamacpp")
	f.StringVar(&opts.visionURL, "vision-url", defaults.Vision.URL, "Server URL for the ollama/llamacpp detector")
	f.StringVar(&opts.visionModel, "vision-model", defaults.Vision.Model, "Model name for the ollama/llamacpp detector")
	f.StringVar(&opts.weights, "weights", defaults.Models.WeightsDir, "Directory holding the onnx model weights")
	f.IntVar(&opts.quality, "quality", defaults.Output.Quality, "JPEG/WebP output quality (1-100)")
	f.BoolVar(&opts.lossless, "lossless", false, "Use lossless compression for WebP output")
	f.BoolVar(&opts.checkVision, "check-vision", false, "Ask the vision model to describe the first input before processing (ollama/llamacpp detectors)")
	f.BoolVar(&opts.keepGoing, "keep-going", false, "Continue with the next image when one fails (exit status is still non-zero)")
	f.BoolVar(&opts.debug, "debug", false, "Also write <name>_debug.png overlays of faces and mask")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log stage timings and model loading")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// loadConfig starts from the config file (or defaults) and applies every
// flag the user set explicitly.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	path := opts.configPath
	if path == "" && utils.FileExists(config.GetConfigPath()) {
		path = config.GetConfigPath()
	}
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := cmd.Flags().Changed
	if set("face_restore_strength") {
		cfg.Pipeline.FaceStrength = opts.faceStrength
	}
	if set("bokeh_strength") {
		cfg.Pipeline.BokehStrength = opts.bokehStrength
	}
	if set("max-dim") {
		cfg.Pipeline.MaxDim = opts.maxDim
	}
	if set("detector") {
		cfg.Vision.Detector = opts.detector
	}
	if set("vision-url") {
		cfg.Vision.URL = opts.visionURL
	}
	if set("vision-model") {
		cfg.Vision.Model = opts.visionModel
	}
	if set("weights") {
		cfg.Models.WeightsDir = opts.weights
	}
	if set("quality") {
		cfg.Output.Quality = opts.quality
	}
	if set("lossless") {
		cfg.Output.Lossless = opts.lossless
	}
	if set("debug") {
		cfg.Output.Debug = opts.debug
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, opts *options, stdout, stderr io.Writer) error {
	if len(opts.inputs) == 0 {
		return errors.New("at least one input path is required")
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	if opts.saveConfig != "" {
		if err := cfg.SaveToFile(opts.saveConfig); err != nil {
			return err
		}
	}

	log := logging.WithRun(logging.New(opts.verbose, stderr), uuid.NewString())
	log.Debug().
		Float64("face_restore_strength", cfg.Pipeline.FaceStrength).
		Float64("bokeh_strength", cfg.Pipeline.BokehStrength).
		Int("max_dim", cfg.Pipeline.MaxDim).
		Str("detector", cfg.Vision.Detector).
		Msg("starting")

	studio, err := newStudio(cfg, log)
	if err != nil {
		return err
	}
	defer studio.Close()

	if opts.checkVision {
		if err := checkVision(cmd.Context(), studio, opts.inputs, stdout); err != nil {
			return err
		}
	}

	batch := portraitstudio.BatchOptions{KeepGoing: opts.keepGoing}
	var bar *progressbar.ProgressBar
	batch.Progress = func(done, total int, input string) {
		if total < 2 {
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Enhancing"),
				progressbar.OptionSetWriter(stderr),
				progressbar.OptionShowCount(),
			)
		}
		_ = bar.Set(done)
	}

	report, err := studio.ProcessBatch(cmd.Context(), opts.inputs, opts.output, batch)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(stderr)
	}
	if report != nil && report.Processed > 0 {
		printSummary(stdout, report)
	}
	for _, f := range failures(report) {
		log.Error().Err(f.Err).Str("input", f.Input).Msg("not processed")
	}
	return err
}

// checkVision runs the vision check on the first input image.
func checkVision(ctx context.Context, studio *portraitstudio.Studio, inputs []string, w io.Writer) error {
	images, err := utils.CollectImages(inputs)
	if err != nil {
		return err
	}
	reply, err := studio.CheckVision(ctx, images[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Vision check (%s): %s\n", images[0], reply)
	return nil
}

func printSummary(w io.Writer, report *portraitstudio.BatchReport) {
	if report.Plan.Single {
		fmt.Fprintf(w, "Saved enhanced image to %s\n", report.Plan.Targets[0])
		return
	}
	fmt.Fprintf(w, "Processed %d image(s). Output directory: %s\n", report.Processed, report.Plan.Dir)
}

func failures(report *portraitstudio.BatchReport) []portraitstudio.ImageFailure {
	if report == nil {
		return nil
	}
	return report.Failures
}

func main() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
