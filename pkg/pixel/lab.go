package pixel

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
)

// ToLab converts img to Lab scaled the way 8-bit OpenCV images are:
// L*255/100, a+128, b+128.
func ToLab(img *image.NRGBA) (l, a, b *Plane) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	l, a, b = NewPlane(w, h), NewPlane(w, h), NewPlane(w, h)
	for y := 0; y < h; y++ {
		si := y * img.Stride
		for x := 0; x < w; x++ {
			c := colorful.Color{
				R: float64(img.Pix[si]) / 255,
				G: float64(img.Pix[si+1]) / 255,
				B: float64(img.Pix[si+2]) / 255,
			}
			lv, av, bv := c.Lab()
			i := y*w + x
			l.Data[i] = float32(lv * 255)
			a.Data[i] = float32(av*100 + 128)
			b.Data[i] = float32(bv*100 + 128)
			si += 4
		}
	}
	return l, a, b
}

// FromLab is the inverse of ToLab; out-of-gamut colours are clamped.
func FromLab(l, a, b *Plane) *image.NRGBA {
	w, h := l.Width, l.Height
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		di := y * dst.Stride
		for x := 0; x < w; x++ {
			i := y*w + x
			c := colorful.Lab(
				float64(l.Data[i])/255,
				(float64(a.Data[i])-128)/100,
				(float64(b.Data[i])-128)/100,
			).Clamped()
			dst.Pix[di] = Saturate(c.R * 255)
			dst.Pix[di+1] = Saturate(c.G * 255)
			dst.Pix[di+2] = Saturate(c.B * 255)
			dst.Pix[di+3] = 0xff
			di += 4
		}
	}
	return dst
}
