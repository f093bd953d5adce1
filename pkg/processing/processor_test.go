package processing

import (
	"encoding/base64"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/portrait-studio/pkg/types"
)

func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 3), uint8(y * 3), 128, 255})
		}
	}
	return img
}

func TestSaveAndLoad(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()

	for _, name := range []string{"out.jpg", "out.jpeg", "out.png", "out.webp", "nested/dir/out.png"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := p.SaveImage(createTestImage(40, 30), path, types.SaveOptions{Quality: 90}); err != nil {
				t.Fatalf("SaveImage failed: %v", err)
			}
			img, err := p.LoadImage(path)
			if err != nil {
				t.Fatalf("LoadImage failed: %v", err)
			}
			if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 30 {
				t.Errorf("Expected 40x30, got %v", img.Bounds())
			}
		})
	}
}

func TestSaveImageUnknownFormat(t *testing.T) {
	p := NewProcessor()
	if err := p.SaveImage(createTestImage(4, 4), filepath.Join(t.TempDir(), "out.xyz"), types.SaveOptions{}); err == nil {
		t.Error("Expected error for unknown extension")
	}
}

func TestLoadImageErrors(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	if _, err := p.LoadImage(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("Expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.LoadImage(bad); err == nil {
		t.Error("Expected error for corrupt file")
	}
}

func TestEncodeForModel(t *testing.T) {
	p := NewProcessor()
	b64, err := p.EncodeForModel(createTestImage(200, 100), 50, 80)
	if err != nil {
		t.Fatalf("EncodeForModel failed: %v", err)
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("Invalid base64: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("Expected JPEG data")
	}
}

func TestCreateDebugOverlay(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(50, 50)
	mask := image.NewGray(img.Rect)
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}
	faces := []types.FaceOutcome{{Index: 0, Region: image.Rect(10, 10, 30, 30)}}

	out := imagingNRGBA(t, p.CreateDebugOverlay(img, faces, mask))
	if got := out.NRGBAAt(10, 20); got != (color.NRGBA{0, 255, 0, 255}) {
		t.Errorf("Expected green border, got %v", got)
	}
	if got := out.NRGBAAt(45, 45); got != img.NRGBAAt(45, 45) {
		t.Errorf("Foreground pixel should be untouched, got %v", got)
	}
	if img.NRGBAAt(10, 20) == out.NRGBAAt(10, 20) {
		t.Error("Input image must not be modified")
	}
}

func TestDebugPath(t *testing.T) {
	if got := DebugPath(filepath.Join("out", "a.jpg")); got != filepath.Join("out", "a_debug.png") {
		t.Errorf("Unexpected debug path %s", got)
	}
}

func imagingNRGBA(t *testing.T, img image.Image) *image.NRGBA {
	t.Helper()
	n, ok := img.(*image.NRGBA)
	if !ok {
		t.Fatalf("Expected *image.NRGBA, got %T", img)
	}
	return n
}
