//go:build !gocv

package denoise

import "image"

func denoiseColored(img *image.NRGBA, opts Options) (*image.NRGBA, error) {
	return NLMeansColored(img, opts), nil
}
