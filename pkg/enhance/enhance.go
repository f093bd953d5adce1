// Package enhance threads one image through the fixed enhancement sequence:
// resize, denoise, tone correction, face restoration, bokeh and sharpening.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"github.com/menta2k/portrait-studio/pkg/bokeh"
	"github.com/menta2k/portrait-studio/pkg/denoise"
	"github.com/menta2k/portrait-studio/pkg/facerestore"
	"github.com/menta2k/portrait-studio/pkg/pixel"
	"github.com/menta2k/portrait-studio/pkg/sharpen"
	"github.com/menta2k/portrait-studio/pkg/tone"
	"github.com/menta2k/portrait-studio/pkg/types"
)

// Stage names used in errors, logs and timings.
const (
	StageResize  = "resize"
	StageDenoise = "denoise"
	StageTone    = "tone"
	StageFaces   = "face-restore"
	StageBokeh   = "bokeh"
	StageSharpen = "sharpen"
)

// Config holds the per-run pipeline parameters. It is copied into the
// Pipeline and never modified afterwards.
type Config struct {
	MaxDim        int             `json:"max_dim"`
	FaceStrength  float64         `json:"face_restore_strength"`
	FacePadding   float64         `json:"face_padding"`
	BokehStrength float64         `json:"bokeh_strength"`
	Denoise       denoise.Options `json:"denoise"`
	Tone          tone.Options    `json:"tone"`
	Bokeh         bokeh.Options   `json:"bokeh"`
	SharpenAmount float64         `json:"sharpen_amount"`
	SharpenRadius float64         `json:"sharpen_radius"`
}

// DefaultConfig returns the standard portrait settings.
func DefaultConfig() Config {
	return Config{
		MaxDim:        1024,
		FaceStrength:  0.8,
		FacePadding:   facerestore.DefaultPadding,
		BokehStrength: bokeh.DefaultStrength,
		Denoise:       denoise.DefaultOptions(),
		Tone:          tone.DefaultOptions(),
		Bokeh:         bokeh.DefaultOptions(),
		SharpenAmount: sharpen.DefaultAmount,
		SharpenRadius: sharpen.DefaultRadius,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxDim < 1 {
		return fmt.Errorf("max_dim must be positive, got %d", c.MaxDim)
	}
	if c.FaceStrength < 0 || c.FaceStrength > 1 {
		return fmt.Errorf("face_restore_strength must be between 0 and 1, got %.2f", c.FaceStrength)
	}
	if c.FacePadding < 0 {
		return fmt.Errorf("face_padding must not be negative, got %.2f", c.FacePadding)
	}
	if c.BokehStrength <= 0 {
		return fmt.Errorf("bokeh_strength must be positive, got %.2f", c.BokehStrength)
	}
	if err := c.Denoise.Validate(); err != nil {
		return fmt.Errorf("denoise: %w", err)
	}
	if err := c.Tone.Validate(); err != nil {
		return fmt.Errorf("tone: %w", err)
	}
	if c.SharpenAmount < 0 || c.SharpenRadius < 0 {
		return fmt.Errorf("sharpen amount and radius must not be negative")
	}
	return nil
}

// Collaborators are the model-backed components the pipeline calls out to.
type Collaborators struct {
	Detector  facerestore.FaceDetector
	Restorer  facerestore.FaceRestorer
	Segmenter bokeh.Segmenter
}

// StageTiming records how long a stage took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Result is the output of one Enhance call.
type Result struct {
	Image   *image.NRGBA
	Faces   []types.FaceOutcome
	Mask    *image.Gray
	Timings []StageTiming
}

// FailedFaces returns the number of faces that could not be restored.
func (r *Result) FailedFaces() int {
	n := 0
	for _, f := range r.Faces {
		if !f.OK() {
			n++
		}
	}
	return n
}

// Pipeline runs the enhancement sequence. It is not safe for concurrent use.
type Pipeline struct {
	cfg   Config
	faces *facerestore.Stage
	bokeh *bokeh.Stage
	log   zerolog.Logger
}

// New validates cfg and builds a pipeline around the given collaborators.
func New(cfg Config, c Collaborators, logger zerolog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if c.Detector == nil || c.Restorer == nil || c.Segmenter == nil {
		return nil, errors.New("pipeline needs a face detector, a face restorer and a segmenter")
	}
	return &Pipeline{
		cfg:   cfg,
		faces: facerestore.New(c.Detector, c.Restorer).WithPadding(cfg.FacePadding),
		bokeh: bokeh.New(c.Segmenter, cfg.Bokeh),
		log:   logger,
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Enhance runs every stage on img in order and returns the final frame.
// The context is only checked between stages.
func (p *Pipeline) Enhance(ctx context.Context, img image.Image) (*Result, error) {
	res := &Result{}
	cur := pixel.ToNRGBA(img)

	stages := []struct {
		name string
		fn   func() error
	}{
		{StageResize, func() error {
			cur = pixel.ResizeMax(cur, p.cfg.MaxDim)
			return nil
		}},
		{StageDenoise, func() (err error) {
			cur, err = denoise.Apply(cur, p.cfg.Denoise)
			return err
		}},
		{StageTone, func() (err error) {
			cur, err = tone.CorrectLightness(cur, p.cfg.Tone)
			return err
		}},
		{StageFaces, func() (err error) {
			cur, res.Faces, err = p.faces.Restore(ctx, cur, p.cfg.FaceStrength)
			p.logFaces(res.Faces)
			return err
		}},
		{StageBokeh, func() error {
			b, err := p.bokeh.Apply(ctx, cur, p.cfg.BokehStrength)
			if err != nil {
				return err
			}
			cur, res.Mask = b.Image, b.Mask
			return nil
		}},
		{StageSharpen, func() error {
			cur = sharpen.UnsharpMask(cur, p.cfg.SharpenAmount, p.cfg.SharpenRadius)
			return nil
		}},
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		if err := st.fn(); err != nil {
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
		took := time.Since(start)
		res.Timings = append(res.Timings, StageTiming{Stage: st.name, Duration: took})
		p.log.Debug().
			Str("stage", st.name).
			Dur("took", took).
			Int("width", cur.Rect.Dx()).
			Int("height", cur.Rect.Dy()).
			Msg("stage complete")
	}

	res.Image = cur
	return res, nil
}

func (p *Pipeline) logFaces(outcomes []types.FaceOutcome) {
	for _, o := range outcomes {
		if o.OK() {
			p.log.Debug().Int("face", o.Index).Stringer("region", o.Region).Msg("face restored")
			continue
		}
		p.log.Warn().Err(o.Err).Int("face", o.Index).Stringer("region", o.Region).Msg("face skipped")
	}
}
