package filter

import "github.com/menta2k/portrait-studio/pkg/pixel"

// Laplacian applies the 4-neighbour discrete Laplacian
//
//	0  1  0
//	1 -4  1
//	0  1  0
//
// with reflect-101 borders.
func Laplacian(p *pixel.Plane) *pixel.Plane {
	w, h := p.Width, p.Height
	dst := pixel.NewPlane(w, h)
	for y := 0; y < h; y++ {
		up := Reflect101(y-1, h)
		down := Reflect101(y+1, h)
		for x := 0; x < w; x++ {
			left := Reflect101(x-1, w)
			right := Reflect101(x+1, w)
			c := p.Data[y*w+x]
			dst.Data[y*w+x] = p.Data[up*w+x] + p.Data[down*w+x] + p.Data[y*w+left] + p.Data[y*w+right] - 4*c
		}
	}
	return dst
}
