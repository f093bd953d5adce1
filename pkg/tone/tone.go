// Package tone applies local contrast correction to the lightness channel
// of an image while leaving its chroma untouched.
package tone

import (
	"fmt"
	"image"
	"math"

	"github.com/menta2k/portrait-studio/pkg/filter"
	"github.com/menta2k/portrait-studio/pkg/pixel"
)

// Options configures contrast-limited adaptive histogram equalization.
type Options struct {
	ClipLimit float64 `json:"clip_limit"`
	TileGrid  int     `json:"tile_grid"`
}

// DefaultOptions returns the mild correction used by the pipeline.
func DefaultOptions() Options {
	return Options{ClipLimit: 1.1, TileGrid: 8}
}

// Validate checks the clip limit and grid size.
func (o Options) Validate() error {
	if o.ClipLimit <= 0 {
		return fmt.Errorf("clip limit must be positive, got %.2f", o.ClipLimit)
	}
	if o.TileGrid < 1 {
		return fmt.Errorf("tile grid must be at least 1, got %d", o.TileGrid)
	}
	return nil
}

// CorrectLightness converts img to Lab, equalizes L with CLAHE and converts
// back. The a and b channels are passed through unmodified.
func CorrectLightness(img *image.NRGBA, opts Options) (*image.NRGBA, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if img.Rect.Empty() {
		return img, nil
	}

	l, a, b := pixel.ToLab(img)
	w, h := l.Width, l.Height

	gray := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range l.Data {
		gray.Pix[i] = pixel.Saturate(float64(v))
	}
	eq := CLAHE(gray, opts.ClipLimit, opts.TileGrid)
	for i, v := range eq.Pix {
		l.Data[i] = float32(v)
	}
	return pixel.FromLab(l, a, b), nil
}

// CLAHE equalizes src over a grid x grid layout of tiles. Each tile
// histogram is clipped at max(1, clip*tileArea/256); the excess is spread
// evenly over all bins, and every pixel is mapped by bilinear interpolation
// between the four nearest tile lookup tables. Images whose sides are not a
// multiple of grid are extended by reflection for the histograms.
func CLAHE(src *image.Gray, clip float64, grid int) *image.Gray {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return dst
	}
	grid = max(1, grid)

	tileW := (w + grid - 1) / grid
	tileH := (h + grid - 1) / grid
	tileArea := tileW * tileH
	limit := max(1, int(clip*float64(tileArea)/256))

	luts := make([][256]uint8, grid*grid)
	for ty := 0; ty < grid; ty++ {
		for tx := 0; tx < grid; tx++ {
			var hist [256]int
			for y := ty * tileH; y < (ty+1)*tileH; y++ {
				sy := filter.Reflect101(y, h)
				row := src.Pix[sy*src.Stride:]
				for x := tx * tileW; x < (tx+1)*tileW; x++ {
					hist[row[filter.Reflect101(x, w)]]++
				}
			}
			clipHistogram(&hist, limit)

			lut := &luts[ty*grid+tx]
			scale := 255 / float64(tileArea)
			sum := 0
			for i, c := range hist {
				sum += c
				lut[i] = pixel.Saturate(float64(sum) * scale)
			}
		}
	}

	invW := 1 / float64(tileW)
	invH := 1 / float64(tileH)
	for y := 0; y < h; y++ {
		tyf := float64(y)*invH - 0.5
		ty1 := int(math.Floor(tyf))
		ya := tyf - float64(ty1)
		ty2 := min(ty1+1, grid-1)
		ty1 = max(ty1, 0)

		for x := 0; x < w; x++ {
			txf := float64(x)*invW - 0.5
			tx1 := int(math.Floor(txf))
			xa := txf - float64(tx1)
			tx2 := min(tx1+1, grid-1)
			tx1 = max(tx1, 0)

			v := src.Pix[y*src.Stride+x]
			top := float64(luts[ty1*grid+tx1][v])*(1-xa) + float64(luts[ty1*grid+tx2][v])*xa
			bottom := float64(luts[ty2*grid+tx1][v])*(1-xa) + float64(luts[ty2*grid+tx2][v])*xa
			dst.Pix[y*dst.Stride+x] = pixel.Saturate(top*(1-ya) + bottom*ya)
		}
	}
	return dst
}

// clipHistogram caps every bin at limit and redistributes the excess: an
// equal share to every bin, then the remainder one count at a time spread
// across the range.
func clipHistogram(hist *[256]int, limit int) {
	clipped := 0
	for i, c := range hist {
		if c > limit {
			clipped += c - limit
			hist[i] = limit
		}
	}
	if clipped == 0 {
		return
	}

	batch := clipped / 256
	residual := clipped - batch*256
	for i := range hist {
		hist[i] += batch
	}
	if residual > 0 {
		step := max(256/residual, 1)
		for i := 0; i < 256 && residual > 0; i += step {
			hist[i]++
			residual--
		}
	}
}
