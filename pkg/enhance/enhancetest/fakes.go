// Package enhancetest provides deterministic stand-ins for the model
// collaborators so the pipeline can run without weights.
package enhancetest

import (
	"context"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/menta2k/portrait-studio/pkg/enhance"
	"github.com/menta2k/portrait-studio/pkg/types"
)

// Detector returns a fixed list of faces for every image. When Relative is
// set, the boxes are fractions of the image size instead of pixels.
type Detector struct {
	Faces    []types.Face
	Relative bool
	Err      error

	mu    sync.Mutex
	calls int
}

// DetectFaces implements facerestore.FaceDetector.
func (d *Detector) DetectFaces(ctx context.Context, img image.Image) ([]types.Face, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	if !d.Relative {
		return append([]types.Face(nil), d.Faces...), nil
	}
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	faces := make([]types.Face, len(d.Faces))
	for i, f := range d.Faces {
		faces[i] = types.Face{X1: f.X1 * w, Y1: f.Y1 * h, X2: f.X2 * w, Y2: f.Y2 * h, Score: f.Score}
	}
	return faces, nil
}

// Calls returns how many times DetectFaces ran.
func (d *Detector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Restorer inverts the crop, which makes the restored region easy to tell
// apart from the original. FailOn lists call indexes (0-based) that fail.
type Restorer struct {
	FailOn map[int]error

	mu    sync.Mutex
	calls int
}

// RestoreFace implements facerestore.FaceRestorer.
func (r *Restorer) RestoreFace(ctx context.Context, crop *image.NRGBA) (*image.NRGBA, error) {
	r.mu.Lock()
	n := r.calls
	r.calls++
	r.mu.Unlock()
	if err, ok := r.FailOn[n]; ok {
		return nil, err
	}
	return imaging.Invert(crop), nil
}

// Segmenter marks a centered ellipse covering Fraction of each dimension as
// foreground. A zero Fraction means 0.5.
type Segmenter struct {
	Fraction float64
	Err      error
}

// ForegroundMatte implements bokeh.Segmenter.
func (s *Segmenter) ForegroundMatte(ctx context.Context, img image.Image) (*image.Alpha, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	frac := s.Fraction
	if frac == 0 {
		frac = 0.5
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	matte := image.NewAlpha(image.Rect(0, 0, w, h))
	cx, cy := float64(w)/2, float64(h)/2
	rx, ry := frac*float64(w)/2, frac*float64(h)/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := (float64(x) + 0.5 - cx) / rx
			dy := (float64(y) + 0.5 - cy) / ry
			if dx*dx+dy*dy <= 1 {
				matte.Pix[y*matte.Stride+x] = 255
			}
		}
	}
	return matte, nil
}

// Collaborators returns a detector reporting one face around the upper
// center of the frame, an inverting restorer and an ellipse segmenter.
func Collaborators() enhance.Collaborators {
	return enhance.Collaborators{
		Detector: &Detector{
			Relative: true,
			Faces:    []types.Face{{X1: 0.4, Y1: 0.25, X2: 0.6, Y2: 0.5, Score: 0.99}},
		},
		Restorer:  &Restorer{},
		Segmenter: &Segmenter{Fraction: 0.6},
	}
}
