package pixel

import "image"

// Plane is a single-channel float32 grid stored row-major.
type Plane struct {
	Width  int
	Height int
	Data   []float32
}

// NewPlane allocates a zeroed plane.
func NewPlane(w, h int) *Plane {
	return &Plane{Width: w, Height: h, Data: make([]float32, w*h)}
}

// At returns the value at (x, y).
func (p *Plane) At(x, y int) float32 {
	return p.Data[y*p.Width+x]
}

// Set stores v at (x, y).
func (p *Plane) Set(x, y int, v float32) {
	p.Data[y*p.Width+x] = v
}

// Fill sets every sample to v.
func (p *Plane) Fill(v float32) {
	for i := range p.Data {
		p.Data[i] = v
	}
}

// Clone returns a deep copy.
func (p *Plane) Clone() *Plane {
	out := &Plane{Width: p.Width, Height: p.Height, Data: make([]float32, len(p.Data))}
	copy(out.Data, p.Data)
	return out
}

// SplitRGB separates an NRGBA image into red, green and blue planes.
func SplitRGB(img *image.NRGBA) [3]*Plane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	planes := [3]*Plane{NewPlane(w, h), NewPlane(w, h), NewPlane(w, h)}
	for y := 0; y < h; y++ {
		si := y * img.Stride
		di := y * w
		for x := 0; x < w; x++ {
			planes[0].Data[di] = float32(img.Pix[si])
			planes[1].Data[di] = float32(img.Pix[si+1])
			planes[2].Data[di] = float32(img.Pix[si+2])
			si += 4
			di++
		}
	}
	return planes
}

// MergeRGB packs three planes into an opaque NRGBA image, rounding and
// clamping each sample to 8 bits.
func MergeRGB(planes [3]*Plane) *image.NRGBA {
	w, h := planes[0].Width, planes[0].Height
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		si := y * w
		di := y * dst.Stride
		for x := 0; x < w; x++ {
			dst.Pix[di] = Saturate(float64(planes[0].Data[si]))
			dst.Pix[di+1] = Saturate(float64(planes[1].Data[si]))
			dst.Pix[di+2] = Saturate(float64(planes[2].Data[si]))
			dst.Pix[di+3] = 0xff
			si++
			di += 4
		}
	}
	return dst
}

// Gray returns the luma of img as a plane using the BT.601 weights
// (0.299, 0.587, 0.114).
func Gray(img *image.NRGBA) *Plane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	p := NewPlane(w, h)
	for y := 0; y < h; y++ {
		si := y * img.Stride
		for x := 0; x < w; x++ {
			r, g, b := float32(img.Pix[si]), float32(img.Pix[si+1]), float32(img.Pix[si+2])
			p.Data[y*w+x] = float32(Saturate(float64(0.299*r + 0.587*g + 0.114*b)))
			si += 4
		}
	}
	return p
}

// FromGray converts an 8-bit mask to a plane scaled to [0,1].
func FromGray(mask *image.Gray) *Plane {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	p := NewPlane(w, h)
	for y := 0; y < h; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x, v := range row {
			p.Data[y*w+x] = float32(v) / 255
		}
	}
	return p
}
