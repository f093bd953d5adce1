// Package processing reads and writes image files and renders debug overlays.
package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/portrait-studio/pkg/types"
)

// Processor handles image file operations
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImage loads an image from a file path, applying EXIF orientation.
// WebP files that the registered decoders reject are retried with libwebp.
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	img, openErr := imaging.Open(path, imaging.AutoOrientation(true))
	if openErr == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".webp") {
		if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("failed to decode %s: %w", path, openErr)
}

// EncodeForModel downsizes img to fit maxDim and returns it as a base64 JPEG
// for vision model requests.
func (p *Processor) EncodeForModel(img image.Image, maxDim, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// SaveImage writes img to path, picking the encoder from the extension
// (jpg/jpeg, png, webp). Parent directories are created as needed.
func (p *Processor) SaveImage(img image.Image, path string, opts types.SaveOptions) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 95
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := webp.Encode(f, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(quality)}); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode %s: %w", path, err)
		}
		return f.Close()
	case ".jpg", ".jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	case ".png", ".gif", ".tif", ".tiff", ".bmp":
		return imaging.Save(img, path)
	default:
		return fmt.Errorf("unsupported output format %q for %s", filepath.Ext(path), path)
	}
}

// DebugPath returns the overlay path written next to an output file.
func DebugPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "_debug.png"
}

// CreateDebugOverlay draws the restored face regions (green, red for faces
// whose restoration failed) and tints the background of the bokeh mask blue.
// mask may be nil.
func (p *Processor) CreateDebugOverlay(img image.Image, faces []types.FaceOutcome, mask *image.Gray) image.Image {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	if mask != nil && mask.Rect.Dx() == w && mask.Rect.Dy() == h {
		tintBackground(nrgba, mask, color.NRGBA{0, 90, 255, 255}, 0.35)
	}

	green := color.NRGBA{0, 255, 0, 255}                 // restored face
	red := color.NRGBA{255, 0, 0, 255}                   // failed face
	stroke := int(math.Max(2, 0.004*float64(min(w, h)))) // ~0.4% of min side

	for _, f := range faces {
		c := green
		if !f.OK() {
			c = red
		}
		r := f.Region
		if r.Empty() {
			r = image.Rect(int(f.Face.X1), int(f.Face.Y1), int(f.Face.X2), int(f.Face.Y2))
		}
		drawRect(nrgba, r, c, stroke)
	}
	return nrgba
}

// tintBackground mixes c into pixels where the mask is below 128.
func tintBackground(img *image.NRGBA, mask *image.Gray, c color.NRGBA, amount float64) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.Pix[y*mask.Stride+x] >= 128 {
				continue
			}
			i := y*img.Stride + x*4
			img.Pix[i+0] = mix(img.Pix[i+0], c.R, amount)
			img.Pix[i+1] = mix(img.Pix[i+1], c.G, amount)
			img.Pix[i+2] = mix(img.Pix[i+2], c.B, amount)
		}
	}
}

func mix(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t + 0.5)
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	if r.Dx() <= 0 || r.Dy() <= 0 {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	x0, x1 = max(0, min(x0, x1)), min(img.Bounds().Dx(), max(x0, x1))
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	y0, y1 = max(0, min(y0, y1)), min(img.Bounds().Dy(), max(y0, y1))
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
