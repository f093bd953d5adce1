// Package facerestore restores detected faces with a generative model and
// blends the result back into the frame with a configurable strength.
package facerestore

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/menta2k/portrait-studio/pkg/pixel"
	"github.com/menta2k/portrait-studio/pkg/types"
)

// DefaultPadding expands each face box by this fraction of its larger side.
const DefaultPadding = 0.3

// ErrEmptyRegion is recorded for faces whose padded box falls outside the image.
var ErrEmptyRegion = errors.New("face region is empty after clamping")

// UnavailableError marks a restorer that cannot run at all (missing
// weights, no runtime), as opposed to one that failed on a single face.
// Restore returns it instead of recording it against the face.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// FaceDetector finds faces in an image.
type FaceDetector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]types.Face, error)
}

// FaceRestorer returns a restored version of a face crop with the same
// dimensions as the crop.
type FaceRestorer interface {
	RestoreFace(ctx context.Context, crop *image.NRGBA) (*image.NRGBA, error)
}

// Stage runs detection, per-face restoration and blending.
type Stage struct {
	detector FaceDetector
	restorer FaceRestorer
	padding  float64
}

// New creates a Stage with the default padding.
func New(detector FaceDetector, restorer FaceRestorer) *Stage {
	return &Stage{detector: detector, restorer: restorer, padding: DefaultPadding}
}

// WithPadding returns a copy of the stage using a different padding fraction.
func (s *Stage) WithPadding(padding float64) *Stage {
	c := *s
	c.padding = padding
	return &c
}

// Restore detects faces in img and blends each restored crop back with
// strength s in [0,1]. Faces are handled in detection order; overlapping
// regions are overwritten by later faces. A restorer failure only affects
// its own face and is reported in the returned outcomes; an
// *UnavailableError aborts the stage. If no faces are found img is returned
// unchanged. Images whose bounds do not start at the origin are copied to
// one that does first.
func (s *Stage) Restore(ctx context.Context, img *image.NRGBA, strength float64) (*image.NRGBA, []types.FaceOutcome, error) {
	if img.Rect.Min != (image.Point{}) {
		img = pixel.ToNRGBA(img)
	}

	faces, err := s.detector.DetectFaces(ctx, img)
	if err != nil {
		return nil, nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(faces) == 0 {
		return img, nil, nil
	}

	strength = clamp(strength, 0, 1)
	out := imaging.Clone(img)
	outcomes := make([]types.FaceOutcome, 0, len(faces))

	for i, face := range faces {
		region := ExpandRegion(face, img.Rect, s.padding)
		outcome := types.FaceOutcome{Index: i, Face: face, Region: region}

		if region.Empty() {
			outcome.Err = ErrEmptyRegion
			outcomes = append(outcomes, outcome)
			continue
		}

		// crops come from the input frame, not from earlier blended faces
		crop := imaging.Crop(img, region)
		blended, err := s.restoreCrop(ctx, crop, strength)
		if err != nil {
			var unavailable *UnavailableError
			if errors.As(err, &unavailable) {
				return nil, nil, err
			}
			outcome.Err = err
			outcomes = append(outcomes, outcome)
			continue
		}

		draw.Draw(out, region, blended, image.Point{}, draw.Src)
		outcomes = append(outcomes, outcome)
	}

	return out, outcomes, nil
}

func (s *Stage) restoreCrop(ctx context.Context, crop *image.NRGBA, strength float64) (*image.NRGBA, error) {
	restored, err := s.restorer.RestoreFace(ctx, crop)
	if err != nil {
		return nil, fmt.Errorf("face restoration failed: %w", err)
	}
	if restored == nil {
		return nil, errors.New("face restoration returned no image")
	}

	w, h := crop.Rect.Dx(), crop.Rect.Dy()
	if restored.Rect.Dx() != w || restored.Rect.Dy() != h {
		restored = imaging.Resize(restored, w, h, imaging.Lanczos)
	}
	return Blend(crop, restored, strength)
}

// ExpandRegion pads a detected face box by padding times its larger side on
// every edge and clamps the result to bounds. Box coordinates are floored at
// zero and truncated to whole pixels before padding.
func ExpandRegion(face types.Face, bounds image.Rectangle, padding float64) image.Rectangle {
	x1 := int(math.Max(0, face.X1))
	y1 := int(math.Max(0, face.Y1))
	x2 := int(math.Max(0, face.X2))
	y2 := int(math.Max(0, face.Y2))
	pad := int(padding * float64(max(x2-x1, y2-y1)))

	r := image.Rect(
		max(bounds.Min.X, x1-pad),
		max(bounds.Min.Y, y1-pad),
		min(bounds.Max.X, x2+pad),
		min(bounds.Max.Y, y2+pad),
	)
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return image.Rectangle{}
	}
	return r
}

// Blend mixes two equally sized images as (1-s)*orig + s*restored.
func Blend(orig, restored *image.NRGBA, s float64) (*image.NRGBA, error) {
	w, h := orig.Rect.Dx(), orig.Rect.Dy()
	if restored.Rect.Dx() != w || restored.Rect.Dy() != h {
		return nil, fmt.Errorf("blend size mismatch: %dx%d vs %dx%d", w, h, restored.Rect.Dx(), restored.Rect.Dy())
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		oi := y * orig.Stride
		ri := y * restored.Stride
		di := y * dst.Stride
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				v := (1-s)*float64(orig.Pix[oi+c]) + s*float64(restored.Pix[ri+c])
				dst.Pix[di+c] = pixel.Saturate(v)
			}
			dst.Pix[di+3] = 0xff
			oi += 4
			ri += 4
			di += 4
		}
	}
	return dst, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
