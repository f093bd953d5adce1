package enhance_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/menta2k/portrait-studio/pkg/denoise"
	"github.com/menta2k/portrait-studio/pkg/enhance"
	"github.com/menta2k/portrait-studio/pkg/enhance/enhancetest"
	"github.com/menta2k/portrait-studio/pkg/pixel"
)

// fastConfig keeps the default stage parameters but narrows the denoise
// search so large frames stay quick in tests.
func fastConfig() enhance.Config {
	cfg := enhance.DefaultConfig()
	cfg.Denoise.TemplateWindow = 3
	cfg.Denoise.SearchWindow = 7
	return cfg
}

func texturedImage(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			base := 70
			if (x/8+y/8)%2 == 0 {
				base = 180
			}
			n := rng.Intn(9) - 4
			img.SetNRGBA(x, y, color.NRGBA{
				uint8(base + n),
				uint8(base*3/4 + n),
				uint8(base/2 + n),
				255,
			})
		}
	}
	return img
}

func newPipeline(t *testing.T, cfg enhance.Config, c enhance.Collaborators) *enhance.Pipeline {
	t.Helper()
	p, err := enhance.New(cfg, c, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to build pipeline: %v", err)
	}
	return p
}

func TestEnhanceEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size frame")
	}
	input := texturedImage(2000, 1500)
	p := newPipeline(t, fastConfig(), enhancetest.Collaborators())

	res, err := p.Enhance(context.Background(), input)
	if err != nil {
		t.Fatalf("Enhance failed: %v", err)
	}

	if b := res.Image.Bounds(); b.Dx() != 1024 || b.Dy() != 768 {
		t.Fatalf("Expected 1024x768, got %dx%d", b.Dx(), b.Dy())
	}
	if res.Mask == nil || res.Mask.Rect.Dx() != 1024 || res.Mask.Rect.Dy() != 768 {
		t.Fatal("Expected a mask the size of the output")
	}
	if len(res.Faces) != 1 || !res.Faces[0].OK() {
		t.Fatalf("Expected one restored face, got %+v", res.Faces)
	}

	// background corner should be blurrier than the resized input
	resized := pixel.ResizeMax(pixel.ToNRGBA(input), 1024)
	corner := image.Rect(0, 0, 160, 160)
	before := denoise.BlurMetric(imaging.Crop(resized, corner))
	after := denoise.BlurMetric(imaging.Crop(res.Image, corner))
	if after >= before {
		t.Errorf("Expected background blur metric to drop: before %.2f, after %.2f", before, after)
	}
}

func TestEnhanceFaceRegion(t *testing.T) {
	input := texturedImage(320, 240)

	restored, err := newPipeline(t, fastConfig(), enhancetest.Collaborators()).Enhance(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}

	cfg := fastConfig()
	cfg.FaceStrength = 0
	untouched, err := newPipeline(t, cfg, enhancetest.Collaborators()).Enhance(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}

	// face box is 0.4-0.6 x 0.25-0.5 of the frame
	var diff int
	for y := 70; y < 110; y++ {
		for x := 140; x < 180; x++ {
			a := restored.Image.NRGBAAt(x, y)
			b := untouched.Image.NRGBAAt(x, y)
			diff += absDiff(a.R, b.R) + absDiff(a.G, b.G) + absDiff(a.B, b.B)
		}
	}
	if diff/(40*40*3) < 10 {
		t.Errorf("Face region barely changed (mean diff %d)", diff/(40*40*3))
	}
	if restored.Image.NRGBAAt(2, 2) != untouched.Image.NRGBAAt(2, 2) {
		t.Error("Pixels far from the face should not depend on face strength")
	}
}

func TestEnhanceTimings(t *testing.T) {
	p := newPipeline(t, fastConfig(), enhancetest.Collaborators())
	res, err := p.Enhance(context.Background(), texturedImage(64, 48))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		enhance.StageResize, enhance.StageDenoise, enhance.StageTone,
		enhance.StageFaces, enhance.StageBokeh, enhance.StageSharpen,
	}
	if len(res.Timings) != len(want) {
		t.Fatalf("Expected %d timings, got %d", len(want), len(res.Timings))
	}
	for i, st := range res.Timings {
		if st.Stage != want[i] {
			t.Errorf("Timing %d: expected %s, got %s", i, want[i], st.Stage)
		}
	}
	if b := res.Image.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("Small frames should not be resized, got %v", b)
	}
}

func TestEnhanceDefaultConfig(t *testing.T) {
	p := newPipeline(t, enhance.DefaultConfig(), enhancetest.Collaborators())
	res, err := p.Enhance(context.Background(), texturedImage(48, 40))
	if err != nil {
		t.Fatal(err)
	}
	if res.Image == nil || res.Image.Rect.Dx() != 48 {
		t.Fatal("Expected a 48px wide result")
	}
}

func TestEnhanceCancelled(t *testing.T) {
	c := enhancetest.Collaborators()
	p := newPipeline(t, fastConfig(), c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Enhance(ctx, texturedImage(32, 32)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if n := c.Detector.(*enhancetest.Detector).Calls(); n != 0 {
		t.Errorf("Detector should not run after cancellation, ran %d times", n)
	}
}

func TestEnhanceSegmenterError(t *testing.T) {
	boom := errors.New("segmenter down")
	c := enhancetest.Collaborators()
	c.Segmenter = &enhancetest.Segmenter{Err: boom}

	_, err := newPipeline(t, fastConfig(), c).Enhance(context.Background(), texturedImage(32, 32))
	if !errors.Is(err, boom) {
		t.Fatalf("Expected segmenter error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), enhance.StageBokeh) {
		t.Errorf("Expected error to name the bokeh stage, got %q", err)
	}
}

func TestEnhanceRestorerFailureNotFatal(t *testing.T) {
	c := enhancetest.Collaborators()
	c.Restorer = &enhancetest.Restorer{FailOn: map[int]error{0: errors.New("model failed")}}

	res, err := newPipeline(t, fastConfig(), c).Enhance(context.Background(), texturedImage(64, 64))
	if err != nil {
		t.Fatalf("Restorer failure should not abort the run: %v", err)
	}
	if res.FailedFaces() != 1 {
		t.Errorf("Expected 1 failed face, got %d", res.FailedFaces())
	}
}

func TestEnhanceNoFaces(t *testing.T) {
	c := enhancetest.Collaborators()
	c.Detector = &enhancetest.Detector{}

	res, err := newPipeline(t, fastConfig(), c).Enhance(context.Background(), texturedImage(40, 40))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Faces) != 0 {
		t.Errorf("Expected no faces, got %d", len(res.Faces))
	}
}

func TestEnhanceFacePadding(t *testing.T) {
	input := texturedImage(100, 100)
	tests := []struct {
		padding float64
		want    image.Rectangle
	}{
		// face box is (40,25)-(60,50), larger side 25
		{0, image.Rect(40, 25, 60, 50)},
		{0.2, image.Rect(35, 20, 65, 55)},
		{enhance.DefaultConfig().FacePadding, image.Rect(33, 18, 67, 57)},
	}
	for _, tt := range tests {
		cfg := fastConfig()
		cfg.FacePadding = tt.padding
		res, err := newPipeline(t, cfg, enhancetest.Collaborators()).Enhance(context.Background(), input)
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Faces) != 1 || res.Faces[0].Region != tt.want {
			t.Errorf("padding %.2f: expected region %v, got %+v", tt.padding, tt.want, res.Faces)
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	c := enhancetest.Collaborators()
	c.Restorer = nil
	if _, err := enhance.New(enhance.DefaultConfig(), c, zerolog.Nop()); err == nil {
		t.Error("Expected error for missing restorer")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*enhance.Config)
		wantErr bool
	}{
		{"defaults", func(*enhance.Config) {}, false},
		{"zero max dim", func(c *enhance.Config) { c.MaxDim = 0 }, true},
		{"strength above one", func(c *enhance.Config) { c.FaceStrength = 1.2 }, true},
		{"negative strength", func(c *enhance.Config) { c.FaceStrength = -0.1 }, true},
		{"strength zero", func(c *enhance.Config) { c.FaceStrength = 0 }, false},
		{"zero bokeh", func(c *enhance.Config) { c.BokehStrength = 0 }, true},
		{"negative padding", func(c *enhance.Config) { c.FacePadding = -1 }, true},
		{"even search window", func(c *enhance.Config) { c.Denoise.SearchWindow = 20 }, true},
		{"zero clip limit", func(c *enhance.Config) { c.Tone.ClipLimit = 0 }, true},
		{"negative sharpen", func(c *enhance.Config) { c.SharpenAmount = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := enhance.DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
