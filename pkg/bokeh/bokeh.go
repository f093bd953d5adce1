// Package bokeh simulates shallow depth of field: a foreground matte from a
// segmentation model is binarized, feathered, and used to composite the
// sharp frame over a Gaussian-blurred copy of itself.
package bokeh

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/menta2k/portrait-studio/pkg/filter"
	"github.com/menta2k/portrait-studio/pkg/pixel"
)

const (
	// DefaultThreshold drops matte values at or below ~4% opacity, which
	// removes the antialiasing fringe segmentation models leave around the
	// subject.
	DefaultThreshold = 10

	// DefaultFeather is the Gaussian kernel size used to soften the binary
	// mask edge. Larger values hide halos better but soften the subject
	// outline; 5, 7 and 9 are all reasonable.
	DefaultFeather = 5

	// DefaultStrength is the background blur strength.
	DefaultStrength = 15.0
)

// Segmenter produces a foreground alpha matte the size of img, where opaque
// means subject and transparent means background.
type Segmenter interface {
	ForegroundMatte(ctx context.Context, img image.Image) (*image.Alpha, error)
}

// Options configures the bokeh stage.
type Options struct {
	Threshold uint8 `json:"threshold"`
	Feather   int   `json:"feather"`
}

// DefaultOptions returns the stage defaults.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Feather: DefaultFeather}
}

// Stage runs segmentation and compositing.
type Stage struct {
	segmenter Segmenter
	opts      Options
}

// New creates a bokeh stage.
func New(segmenter Segmenter, opts Options) *Stage {
	return &Stage{segmenter: segmenter, opts: opts}
}

// Result carries the composited frame and the binary mask it was built from.
type Result struct {
	Image *image.NRGBA
	Mask  *image.Gray
}

// Apply blurs the background of img with the given strength.
func (s *Stage) Apply(ctx context.Context, img *image.NRGBA, strength float64) (*Result, error) {
	matte, err := s.segmenter.ForegroundMatte(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("segmentation failed: %w", err)
	}
	if matte.Rect.Dx() != img.Rect.Dx() || matte.Rect.Dy() != img.Rect.Dy() {
		return nil, fmt.Errorf("matte is %dx%d but image is %dx%d",
			matte.Rect.Dx(), matte.Rect.Dy(), img.Rect.Dx(), img.Rect.Dy())
	}

	mask := Threshold(matte, s.opts.Threshold)
	alpha := Feather(mask, s.opts.Feather)
	plate := BackgroundPlate(img, strength)
	out, err := Composite(img, plate, alpha)
	if err != nil {
		return nil, err
	}
	return &Result{Image: out, Mask: mask}, nil
}

// Threshold binarizes a matte: values above cutoff become 255, the rest 0.
func Threshold(matte *image.Alpha, cutoff uint8) *image.Gray {
	w, h := matte.Rect.Dx(), matte.Rect.Dy()
	mask := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := matte.Pix[y*matte.Stride : y*matte.Stride+w]
		dst := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x, v := range src {
			if v > cutoff {
				dst[x] = 0xff
			}
		}
	}
	return mask
}

// Feather normalizes mask to [0,1] and softens its edges with a Gaussian of
// the given kernel size. Even sizes are rounded up to the next odd size; a
// size of 1 or less skips the blur. The mask itself is not modified.
func Feather(mask *image.Gray, size int) *pixel.Plane {
	p := pixel.FromGray(mask)
	size = filter.OddSize(size)
	if size <= 1 {
		return p
	}
	soft := filter.GaussianBlurPlane(p, size, 0)
	for i, v := range soft.Data {
		soft.Data[i] = float32(math.Min(1, math.Max(0, float64(v))))
	}
	return soft
}

// KernelSize returns the background blur kernel size 2*floor(max(1,strength))+1.
func KernelSize(strength float64) int {
	return 2*int(math.Floor(math.Max(1, strength))) + 1
}

// BackgroundPlate blurs the whole frame to serve as the background layer.
func BackgroundPlate(img *image.NRGBA, strength float64) *image.NRGBA {
	return filter.GaussianBlur(img, KernelSize(strength), 0)
}

// Composite blends fg over bg per pixel as fg*a + bg*(1-a), with alpha
// broadcast across the three colour channels.
func Composite(fg, bg *image.NRGBA, alpha *pixel.Plane) (*image.NRGBA, error) {
	w, h := fg.Rect.Dx(), fg.Rect.Dy()
	if bg.Rect.Dx() != w || bg.Rect.Dy() != h || alpha.Width != w || alpha.Height != h {
		return nil, fmt.Errorf("composite size mismatch: fg %dx%d, bg %dx%d, alpha %dx%d",
			w, h, bg.Rect.Dx(), bg.Rect.Dy(), alpha.Width, alpha.Height)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		fi := y * fg.Stride
		bi := y * bg.Stride
		di := y * dst.Stride
		for x := 0; x < w; x++ {
			a := float64(alpha.Data[y*w+x])
			for c := 0; c < 3; c++ {
				v := float64(fg.Pix[fi+c])*a + float64(bg.Pix[bi+c])*(1-a)
				dst.Pix[di+c] = pixel.Saturate(v)
			}
			dst.Pix[di+3] = 0xff
			fi += 4
			bi += 4
			di += 4
		}
	}
	return dst, nil
}
