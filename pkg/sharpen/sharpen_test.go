package sharpen

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func step(w, h int, lo, hi uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := lo
			if x >= w/2 {
				v = hi
			}
			img.SetNRGBA(x, y, color.NRGBA{v, v, v, 255})
		}
	}
	return img
}

func TestUnsharpMaskZeroAmount(t *testing.T) {
	img := step(16, 8, 40, 200)
	out := UnsharpMask(img, 0, DefaultRadius)
	if out == img {
		t.Fatal("Expected a copy, got the same image")
	}
	if !bytes.Equal(out.Pix, img.Pix) {
		t.Error("Zero amount should leave pixels unchanged")
	}
}

func TestUnsharpMaskUniform(t *testing.T) {
	img := step(16, 16, 120, 120)
	out := UnsharpMask(img, DefaultAmount, DefaultRadius)
	if !bytes.Equal(out.Pix, img.Pix) {
		t.Error("Uniform image should not change")
	}
}

func TestUnsharpMaskEdgeContrast(t *testing.T) {
	img := step(20, 4, 100, 150)
	out := UnsharpMask(img, DefaultAmount, DefaultRadius)

	left := out.NRGBAAt(9, 2).R
	right := out.NRGBAAt(10, 2).R
	if left >= 100 {
		t.Errorf("Dark side of the edge should get darker, got %d", left)
	}
	if right <= 150 {
		t.Errorf("Bright side of the edge should get brighter, got %d", right)
	}
	if v := out.NRGBAAt(0, 2).R; v != 100 {
		t.Errorf("Flat area away from the edge should not change, got %d", v)
	}
	if a := out.NRGBAAt(9, 2).A; a != 255 {
		t.Errorf("Expected opaque output, got alpha %d", a)
	}
}

func TestUnsharpMaskClamps(t *testing.T) {
	img := step(20, 4, 0, 255)
	out := UnsharpMask(img, 2, DefaultRadius)
	if out.NRGBAAt(9, 0).R != 0 || out.NRGBAAt(10, 0).R != 255 {
		t.Error("Overshoot should saturate at the 8-bit limits")
	}
}
