package onnx

import (
	"image"
	"strings"

	resize "github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"github.com/menta2k/portrait-studio/pkg/pixel"
)

// scaleTo resizes img to exactly w x h with the named interpolation.
func scaleTo(img image.Image, w, h int, interpolation string) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	if strings.EqualFold(strings.TrimSpace(interpolation), "bicubic") {
		return resize.Resize(uint(w), uint(h), img, resize.Bicubic)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// imageToTensor scales img to the model input size and lays it out as
// float32 NCHW in the model's channel order, normalized as
// (v/255 - mean) / std.
func imageToTensor(img image.Image, opts ModelOptions) ([]float32, error) {
	order, err := pixel.ParseChannelOrder(opts.ColorOrder)
	if err != nil {
		return nil, err
	}
	w, h := opts.InputWidth, opts.InputHeight
	buf := pixel.FromImage(scaleTo(img, w, h, opts.Interpolation), order)

	std := opts.Std
	for c := range std {
		if std[c] == 0 {
			std[c] = 1
		}
	}

	n := w * h
	data := make([]float32, 3*n)
	for i := 0; i < n; i++ {
		for c := 0; c < 3; c++ {
			v := float32(buf.Pix[i*3+c]) / 255
			data[c*n+i] = (v - opts.Mean[c]) / std[c]
		}
	}
	return data, nil
}

// tensorToImage converts a float32 NCHW tensor of size w x h back to an
// opaque image, undoing the normalization in opts.
func tensorToImage(data []float32, w, h int, opts ModelOptions) (*image.NRGBA, error) {
	order, err := pixel.ParseChannelOrder(opts.ColorOrder)
	if err != nil {
		return nil, err
	}
	std := opts.Std
	for c := range std {
		if std[c] == 0 {
			std[c] = 1
		}
	}

	n := w * h
	buf := pixel.NewBuffer(w, h, order)
	for i := 0; i < n; i++ {
		for c := 0; c < 3; c++ {
			v := data[c*n+i]*std[c] + opts.Mean[c]
			buf.Pix[i*3+c] = pixel.Saturate(float64(v) * 255)
		}
	}
	return buf.ToNRGBA(), nil
}

// planeToAlpha min-max normalizes a single-channel map and scales it to a
// w x h alpha matte.
func planeToAlpha(data []float32, pw, ph, w, h int) *image.Alpha {
	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	small := image.NewGray(image.Rect(0, 0, pw, ph))
	for i, v := range data[:pw*ph] {
		small.Pix[i] = pixel.Saturate(float64((v-lo)/span) * 255)
	}

	if pw == w && ph == h {
		return &image.Alpha{Pix: small.Pix, Stride: small.Stride, Rect: small.Rect}
	}

	scaled := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), small, small.Bounds(), draw.Src, nil)

	matte := image.NewAlpha(image.Rect(0, 0, w, h))
	copy(matte.Pix, scaled.Pix)
	return matte
}
