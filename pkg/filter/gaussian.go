// Package filter implements the separable convolutions used by the
// enhancement stages. Borders are handled by reflect-101 sampling
// (gfedcb|abcdefgh|gfedcba), the same default OpenCV uses.
package filter

import (
	"image"
	"math"

	"github.com/menta2k/portrait-studio/pkg/pixel"
)

// SigmaForSize derives a Gaussian sigma from an odd kernel size.
func SigmaForSize(ksize int) float64 {
	return 0.3*(float64(ksize-1)*0.5-1) + 0.8
}

// SizeForSigma derives an odd kernel size covering +-3 sigma.
func SizeForSigma(sigma float64) int {
	k := int(math.Round(sigma*6 + 1))
	return k | 1
}

// OddSize bumps even sizes to the next odd value and floors at 1.
func OddSize(k int) int {
	if k < 1 {
		return 1
	}
	if k%2 == 0 {
		return k + 1
	}
	return k
}

// GaussianKernel returns a normalized 1-D Gaussian kernel. A non-positive
// sigma is derived from ksize; a non-positive ksize is derived from sigma.
func GaussianKernel(ksize int, sigma float64) []float32 {
	if ksize <= 0 {
		ksize = SizeForSigma(sigma)
	}
	ksize = OddSize(ksize)
	if sigma <= 0 {
		sigma = SigmaForSize(ksize)
	}

	half := ksize / 2
	weights := make([]float64, ksize)
	var sum float64
	for i := range weights {
		d := float64(i - half)
		weights[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += weights[i]
	}
	kernel := make([]float32, ksize)
	for i, w := range weights {
		kernel[i] = float32(w / sum)
	}
	return kernel
}

// Reflect101 maps an out-of-range index into [0,n) by mirroring around the
// edge samples without repeating them.
func Reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// Convolve applies a symmetric separable kernel to p, rows first, and returns
// a new plane.
func Convolve(p *pixel.Plane, kernel []float32) *pixel.Plane {
	w, h := p.Width, p.Height
	half := len(kernel) / 2
	if half == 0 {
		return p.Clone()
	}

	tmp := pixel.NewPlane(w, h)
	for y := 0; y < h; y++ {
		row := p.Data[y*w : (y+1)*w]
		out := tmp.Data[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var acc float32
			if x >= half && x+half < w {
				for k, kv := range kernel {
					acc += kv * row[x+k-half]
				}
			} else {
				for k, kv := range kernel {
					acc += kv * row[Reflect101(x+k-half, w)]
				}
			}
			out[x] = acc
		}
	}

	dst := pixel.NewPlane(w, h)
	for y := 0; y < h; y++ {
		out := dst.Data[y*w : (y+1)*w]
		for k, kv := range kernel {
			src := Reflect101(y+k-half, h)
			row := tmp.Data[src*w : (src+1)*w]
			for x := range out {
				out[x] += kv * row[x]
			}
		}
	}
	return dst
}

// GaussianBlurPlane blurs a single plane.
func GaussianBlurPlane(p *pixel.Plane, ksize int, sigma float64) *pixel.Plane {
	return Convolve(p, GaussianKernel(ksize, sigma))
}

// GaussianBlur blurs each colour channel of img independently.
func GaussianBlur(img *image.NRGBA, ksize int, sigma float64) *image.NRGBA {
	kernel := GaussianKernel(ksize, sigma)
	planes := pixel.SplitRGB(img)
	for i, p := range planes {
		planes[i] = Convolve(p, kernel)
	}
	return pixel.MergeRGB(planes)
}
