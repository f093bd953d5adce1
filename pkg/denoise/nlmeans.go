package denoise

import (
	"image"
	"math"

	"github.com/menta2k/portrait-studio/pkg/filter"
	"github.com/menta2k/portrait-studio/pkg/pixel"
)

// weights below exp(-maxWeightExponent) are treated as zero
const (
	maxWeightExponent = 30.0
	weightLUTSteps    = 64
)

// NLMeansColored denoises img in an 8-bit scaled Lab space: lightness is
// filtered with opts.H and the two chroma channels jointly with opts.HColor.
func NLMeansColored(img *image.NRGBA, opts Options) *image.NRGBA {
	l, a, b := pixel.ToLab(img)
	outL := NLMeans([]*pixel.Plane{l}, opts.H, opts.TemplateWindow, opts.SearchWindow)
	outAB := NLMeans([]*pixel.Plane{a, b}, opts.HColor, opts.TemplateWindow, opts.SearchWindow)
	return pixel.FromLab(outL[0], outAB[0], outAB[1])
}

// NLMeans applies non-local means to a group of planes that share patch
// distances. For every offset inside the search window the squared
// difference image is summed with an integral image, so each patch distance
// costs O(1) regardless of the template size.
func NLMeans(planes []*pixel.Plane, h float64, templateWindow, searchWindow int) []*pixel.Plane {
	w, ht := planes[0].Width, planes[0].Height
	n := w * ht
	nc := float64(len(planes))
	tr := templateWindow / 2
	sr := searchWindow / 2

	lut := weightLUT()
	invH2 := 1 / (h * h)

	acc := make([][]float64, len(planes))
	for c := range acc {
		acc[c] = make([]float64, n)
	}
	wsum := make([]float64, n)
	diff := make([]float64, n)
	integral := make([]float64, (w+1)*(ht+1))

	for dy := -sr; dy <= sr; dy++ {
		for dx := -sr; dx <= sr; dx++ {
			for y := 0; y < ht; y++ {
				sy := filter.Reflect101(y+dy, ht)
				for x := 0; x < w; x++ {
					sx := filter.Reflect101(x+dx, w)
					var d float64
					for _, p := range planes {
						v := float64(p.Data[y*w+x] - p.Data[sy*w+sx])
						d += v * v
					}
					diff[y*w+x] = d / nc
				}
			}
			buildIntegral(integral, diff, w, ht)

			for y := 0; y < ht; y++ {
				y0 := max(0, y-tr)
				y1 := min(ht-1, y+tr)
				sy := filter.Reflect101(y+dy, ht)
				for x := 0; x < w; x++ {
					x0 := max(0, x-tr)
					x1 := min(w-1, x+tr)
					area := float64((y1 - y0 + 1) * (x1 - x0 + 1))
					dist := boxSum(integral, w, x0, y0, x1, y1) / area

					e := dist * invH2
					if e >= maxWeightExponent {
						continue
					}
					weight := lut[int(e*weightLUTSteps)]
					sx := filter.Reflect101(x+dx, w)
					i := y*w + x
					for c, p := range planes {
						acc[c][i] += weight * float64(p.Data[sy*w+sx])
					}
					wsum[i] += weight
				}
			}
		}
	}

	out := make([]*pixel.Plane, len(planes))
	for c, p := range planes {
		out[c] = pixel.NewPlane(w, ht)
		for i := range out[c].Data {
			if wsum[i] > 0 {
				out[c].Data[i] = float32(acc[c][i] / wsum[i])
			} else {
				out[c].Data[i] = p.Data[i]
			}
		}
	}
	return out
}

func weightLUT() []float64 {
	lut := make([]float64, int(maxWeightExponent*weightLUTSteps)+1)
	for i := range lut {
		lut[i] = math.Exp(-float64(i) / weightLUTSteps)
	}
	return lut
}

// buildIntegral fills a (w+1)x(h+1) summed-area table of src.
func buildIntegral(dst, src []float64, w, h int) {
	stride := w + 1
	for x := 0; x <= w; x++ {
		dst[x] = 0
	}
	for y := 0; y < h; y++ {
		var row float64
		dst[(y+1)*stride] = 0
		for x := 0; x < w; x++ {
			row += src[y*w+x]
			dst[(y+1)*stride+x+1] = dst[y*stride+x+1] + row
		}
	}
}

// boxSum returns the sum over the inclusive rectangle [x0,x1]x[y0,y1].
func boxSum(integral []float64, w, x0, y0, x1, y1 int) float64 {
	stride := w + 1
	return integral[(y1+1)*stride+x1+1] - integral[y0*stride+x1+1] - integral[(y1+1)*stride+x0] + integral[y0*stride+x0]
}
