// Package denoise implements the light, colour-aware non-local means
// denoising applied to every frame before tone correction, and the
// variance-of-Laplacian blur metric.
package denoise

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/portrait-studio/pkg/filter"
	"github.com/menta2k/portrait-studio/pkg/pixel"
)

// Options configures the non-local means filter.
type Options struct {
	// H is the filter strength for the lightness channel.
	H float64 `json:"h"`
	// HColor is the filter strength for the two chroma channels.
	HColor float64 `json:"h_color"`
	// TemplateWindow is the side of the patch compared between pixels (odd).
	TemplateWindow int `json:"template_window"`
	// SearchWindow is the side of the area searched for similar patches (odd).
	SearchWindow int `json:"search_window"`
}

// DefaultOptions returns the light smoothing used by the pipeline.
func DefaultOptions() Options {
	return Options{
		H:              5,
		HColor:         5,
		TemplateWindow: 7,
		SearchWindow:   21,
	}
}

// Validate checks the window sizes and strengths.
func (o Options) Validate() error {
	if o.H <= 0 || o.HColor <= 0 {
		return fmt.Errorf("denoise strength must be positive (h=%.2f, h_color=%.2f)", o.H, o.HColor)
	}
	if o.TemplateWindow < 1 || o.TemplateWindow%2 == 0 {
		return fmt.Errorf("template window must be a positive odd number, got %d", o.TemplateWindow)
	}
	if o.SearchWindow < 1 || o.SearchWindow%2 == 0 {
		return fmt.Errorf("search window must be a positive odd number, got %d", o.SearchWindow)
	}
	return nil
}

// Apply runs the denoise stage. It always applies the light denoise; the
// blur metric is not consulted.
func Apply(img *image.NRGBA, opts Options) (*image.NRGBA, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if img.Rect.Empty() {
		return img, nil
	}
	return denoiseColored(img, opts)
}

// BlurMetric returns the variance of the Laplacian of the grayscale image.
// Lower values mean a blurrier image.
func BlurMetric(img *image.NRGBA) float64 {
	lap := filter.Laplacian(pixel.Gray(img))
	values := make([]float64, len(lap.Data))
	for i, v := range lap.Data {
		values[i] = float64(v)
	}
	return stat.PopVariance(values, nil)
}
