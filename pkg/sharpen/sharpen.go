// Package sharpen implements unsharp-mask finishing.
package sharpen

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/portrait-studio/pkg/pixel"
)

// Default finishing parameters.
const (
	DefaultAmount = 0.5
	DefaultRadius = 1.0
)

// UnsharpMask returns img*(1+amount) - blurred*amount, where blurred is a
// Gaussian blur of img with sigma = radius (imaging.Blur, kernel radius
// ceil(3*sigma)). The result is clamped to 8 bits.
// An amount of zero returns a copy of img.
func UnsharpMask(img *image.NRGBA, amount, radius float64) *image.NRGBA {
	if amount == 0 || radius <= 0 || img.Rect.Empty() {
		return pixel.ToNRGBA(img)
	}

	blurred := imaging.Blur(img, radius)
	w, h := img.Rect.Dx(), img.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := y * img.Stride
		bi := y * blurred.Stride
		di := y * dst.Stride
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				v := float64(img.Pix[si+c])*(1+amount) - float64(blurred.Pix[bi+c])*amount
				dst.Pix[di+c] = pixel.Saturate(v)
			}
			dst.Pix[di+3] = 0xff
			si += 4
			bi += 4
			di += 4
		}
	}
	return dst
}
