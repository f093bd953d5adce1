// Package pixel holds the pixel containers shared by the enhancement stages:
// opaque NRGBA images between stages, packed 3-channel buffers with an
// explicit channel order at model boundaries, and float planes for the
// numeric work in between.
package pixel

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// ChannelOrder is the order of the three colour channels in a packed Buffer.
type ChannelOrder int

const (
	RGB ChannelOrder = iota
	BGR
)

func (o ChannelOrder) String() string {
	switch o {
	case RGB:
		return "RGB"
	case BGR:
		return "BGR"
	default:
		return fmt.Sprintf("ChannelOrder(%d)", int(o))
	}
}

// ParseChannelOrder parses "RGB" or "BGR" (case-insensitive). Empty means RGB.
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "RGB":
		return RGB, nil
	case "BGR":
		return BGR, nil
	}
	return RGB, fmt.Errorf("unknown channel order %q (want RGB or BGR)", s)
}

// Buffer is a dense 8-bit, 3-channel pixel grid tagged with its channel order.
type Buffer struct {
	Width  int
	Height int
	Order  ChannelOrder
	Pix    []uint8
}

// NewBuffer allocates a zeroed buffer.
func NewBuffer(w, h int, order ChannelOrder) *Buffer {
	return &Buffer{Width: w, Height: h, Order: order, Pix: make([]uint8, w*h*3)}
}

// FromImage packs img into a Buffer with the requested channel order.
func FromImage(img image.Image, order ChannelOrder) *Buffer {
	src := ToNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	buf := NewBuffer(w, h, order)
	for y := 0; y < h; y++ {
		si := y * src.Stride
		di := y * w * 3
		for x := 0; x < w; x++ {
			r, g, b := src.Pix[si], src.Pix[si+1], src.Pix[si+2]
			if order == BGR {
				r, b = b, r
			}
			buf.Pix[di], buf.Pix[di+1], buf.Pix[di+2] = r, g, b
			si += 4
			di += 3
		}
	}
	return buf
}

// Convert returns the buffer in the requested order. When the order already
// matches, b itself is returned, so converting twice to the same order never
// swaps channels back.
func (b *Buffer) Convert(order ChannelOrder) *Buffer {
	if b.Order == order {
		return b
	}
	out := &Buffer{Width: b.Width, Height: b.Height, Order: order, Pix: make([]uint8, len(b.Pix))}
	for i := 0; i+2 < len(b.Pix); i += 3 {
		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = b.Pix[i+2], b.Pix[i+1], b.Pix[i]
	}
	return out
}

// At returns the red, green and blue values at (x, y) regardless of order.
func (b *Buffer) At(x, y int) (r, g, bl uint8) {
	i := (y*b.Width + x) * 3
	if b.Order == BGR {
		return b.Pix[i+2], b.Pix[i+1], b.Pix[i]
	}
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// ToNRGBA unpacks the buffer into an opaque NRGBA image.
func (b *Buffer) ToNRGBA() *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			r, g, bl := b.At(x, y)
			i := y*dst.Stride + x*4
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = r, g, bl, 0xff
		}
	}
	return dst
}

// ToNRGBA returns an opaque copy of img with bounds starting at (0,0). Alpha
// is dropped, not composited, matching an RGB conversion.
func ToNRGBA(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// ResizeMax scales img down so its larger side equals maxDim, using area
// averaging. Images that already fit are returned as is; it never upscales.
func ResizeMax(img *image.NRGBA, maxDim int) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	longest := max(w, h)
	if maxDim <= 0 || longest <= maxDim {
		return img
	}
	scale := float64(maxDim) / float64(longest)
	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	return imaging.Resize(img, nw, nh, imaging.Box)
}

// Saturate rounds v to the nearest integer and clamps it to [0,255].
func Saturate(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
