//go:build gocv

package denoise

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/menta2k/portrait-studio/pkg/pixel"
)

// denoiseColored hands the frame to OpenCV's fastNlMeansDenoisingColored
// when built with -tags gocv.
func denoiseColored(img *image.NRGBA, opts Options) (*image.NRGBA, error) {
	buf := pixel.FromImage(img, pixel.BGR)
	src, err := gocv.NewMatFromBytes(buf.Height, buf.Width, gocv.MatTypeCV8UC3, buf.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap frame for OpenCV: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.FastNlMeansDenoisingColoredWithParams(src, &dst,
		float32(opts.H), float32(opts.HColor), opts.TemplateWindow, opts.SearchWindow)

	out := &pixel.Buffer{Width: buf.Width, Height: buf.Height, Order: pixel.BGR, Pix: dst.ToBytes()}
	if len(out.Pix) != len(buf.Pix) {
		return nil, fmt.Errorf("OpenCV returned %d bytes, want %d", len(out.Pix), len(buf.Pix))
	}
	return out.ToNRGBA(), nil
}
