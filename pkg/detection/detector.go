// Package detection locates faces with a multimodal vision model.
package detection

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/menta2k/portrait-studio/pkg/client"
	"github.com/menta2k/portrait-studio/pkg/processing"
	"github.com/menta2k/portrait-studio/pkg/types"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks the model for normalized face boxes.
const DefaultPrompt = `You are a face locator.

Return JSON only:
{
  "faces": [
    {"confidence": 0.0, "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}}
  ],
  "description": "short neutral sentence (≤ 20 words)"
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels). x,y is the top-left corner.
- One entry per visible human face; the box covers forehead to chin and ear to ear.
- Do not guess real identities.
- If there are no faces, return {"faces": [], "description": "no faces"}.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

const (
	// DefaultMinConfidence drops boxes the model itself is unsure about.
	DefaultMinConfidence = 0.3
	// DefaultUploadDim bounds the longer side of the image sent to the model.
	DefaultUploadDim = 1024
)

// Detector handles face detection using vision models
type Detector struct {
	client        client.VisionClient
	processor     *processing.Processor
	model         string
	prompt        string
	minConfidence float64
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient, model string) *Detector {
	return &Detector{
		client:        c,
		processor:     processing.NewProcessor(),
		model:         model,
		prompt:        DefaultPrompt,
		minConfidence: DefaultMinConfidence,
	}
}

// WithPrompt overrides the face prompt.
func (d *Detector) WithPrompt(prompt string) *Detector {
	c := *d
	c.prompt = prompt
	return &c
}

// DetectFaces returns pixel boxes for the faces the model reports, highest
// confidence first. A reply with no usable JSON yields no faces.
func (d *Detector) DetectFaces(ctx context.Context, img image.Image) ([]types.Face, error) {
	imgB64, err := d.processor.EncodeForModel(img, DefaultUploadDim, 90)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	analysis, err := d.client.AnalyzeFaces(ctx, d.model, d.prompt, imgB64)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	return d.toPixels(analysis, b.Dx(), b.Dy()), nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := d.processor.EncodeForModel(img, DefaultUploadDim, 90)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.model, SimpleTestPrompt, imgB64)
}

func (d *Detector) toPixels(analysis *types.FaceAnalysis, w, h int) []types.Face {
	if analysis == nil {
		return nil
	}
	faces := make([]types.Face, 0, len(analysis.Faces))
	for _, f := range analysis.Faces {
		if f.Confidence < d.minConfidence {
			continue
		}
		box := normalizeBox(f.Box)
		if box.W <= 0 || box.H <= 0 {
			continue
		}
		faces = append(faces, box.ToPixels(w, h, f.Confidence))
	}
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].Score > faces[j].Score })
	return faces
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox clips a normalized box to the unit square.
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.X+b.W, 0, 1) - x,
		H: clamp(b.Y+b.H, 0, 1) - y,
	}
}
