package onnx

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDecodeDetections(t *testing.T) {
	scores := []float32{
		0.9, 0.1, // background
		0.05, 0.95,
		0.2, 0.8,
	}
	boxes := []float32{
		0, 0, 1, 1,
		0.1, 0.2, 0.3, 0.4,
		0.5, 0.5, 0.5, 0.9, // zero width
	}

	faces := decodeDetections(scores, boxes, 200, 100, 0.7)
	if len(faces) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(faces))
	}
	f := faces[0]
	if f.X1 != float64(float32(0.1))*200 || f.Y2 != float64(float32(0.4))*100 {
		t.Errorf("Unexpected box: %+v", f)
	}
	if f.Score < 0.94 {
		t.Errorf("Expected score 0.95, got %f", f.Score)
	}
}

func TestDecodeDetectionsClampsToImage(t *testing.T) {
	faces := decodeDetections([]float32{0, 1}, []float32{-0.2, -0.1, 1.3, 0.5}, 100, 100, 0.5)
	if len(faces) != 1 {
		t.Fatalf("Expected 1 face, got %d", len(faces))
	}
	if faces[0].X1 != 0 || faces[0].Y1 != 0 || faces[0].X2 != 100 {
		t.Errorf("Box not clamped: %+v", faces[0])
	}
}

func TestSuppress(t *testing.T) {
	faces := decodeDetections(
		[]float32{0, 0.8, 0, 0.9, 0, 0.75},
		[]float32{
			0.10, 0.10, 0.50, 0.50,
			0.12, 0.12, 0.52, 0.52, // overlaps the first, higher score
			0.60, 0.60, 0.90, 0.90,
		},
		100, 100, 0.5)

	kept := suppress(faces, 0.3)
	if len(kept) != 2 {
		t.Fatalf("Expected 2 faces after NMS, got %d", len(kept))
	}
	if kept[0].Score < kept[1].Score {
		t.Error("Expected faces ordered by descending score")
	}
	if kept[0].X1 != float64(float32(0.12))*100 {
		t.Errorf("Expected the higher scoring overlap to survive, got %+v", kept[0])
	}
}

func TestImageToTensorChannelOrder(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 0, B: 0, A: 255})
		}
	}

	tests := []struct {
		order    string
		redPlane int
	}{
		{"RGB", 0},
		{"BGR", 2},
	}
	for _, tt := range tests {
		t.Run(tt.order, func(t *testing.T) {
			opts := ModelOptions{
				InputWidth: 2, InputHeight: 2,
				Std:        [3]float32{1, 1, 1},
				ColorOrder: tt.order,
			}
			data, err := imageToTensor(img, opts)
			if err != nil {
				t.Fatalf("imageToTensor failed: %v", err)
			}
			if len(data) != 12 {
				t.Fatalf("Expected 12 values, got %d", len(data))
			}
			for c := 0; c < 3; c++ {
				want := float32(0)
				if c == tt.redPlane {
					want = 1
				}
				if data[c*4] != want {
					t.Errorf("plane %d: expected %v, got %v", c, want, data[c*4])
				}
			}
		})
	}
}

func TestTensorRoundTrip(t *testing.T) {
	opts := DefaultConfig().Restorer
	opts.InputWidth, opts.InputHeight = 3, 2

	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 10)
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}

	data, err := imageToTensor(img, opts)
	if err != nil {
		t.Fatalf("imageToTensor failed: %v", err)
	}
	back, err := tensorToImage(data, 3, 2, opts)
	if err != nil {
		t.Fatalf("tensorToImage failed: %v", err)
	}
	for i := range img.Pix {
		if d := int(img.Pix[i]) - int(back.Pix[i]); d < -1 || d > 1 {
			t.Fatalf("pixel byte %d: expected %d, got %d", i, img.Pix[i], back.Pix[i])
		}
	}
}

func TestImageToTensorBadOrder(t *testing.T) {
	_, err := imageToTensor(image.NewNRGBA(image.Rect(0, 0, 1, 1)), ModelOptions{InputWidth: 1, InputHeight: 1, ColorOrder: "CMYK"})
	if err == nil {
		t.Error("Expected error for unknown channel order")
	}
}

func TestPlaneToAlpha(t *testing.T) {
	data := []float32{-1, -1, 3, 3}
	matte := planeToAlpha(data, 2, 2, 2, 2)
	if matte.Pix[0] != 0 || matte.Pix[3] != 255 {
		t.Errorf("Expected min-max normalization, got %v", matte.Pix)
	}

	flat := planeToAlpha([]float32{0.5, 0.5, 0.5, 0.5}, 2, 2, 8, 6)
	if flat.Rect.Dx() != 8 || flat.Rect.Dy() != 6 {
		t.Errorf("Expected 8x6 matte, got %v", flat.Rect)
	}
}

func TestMissingModelError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeightsDir = t.TempDir()

	models := NewModels(cfg, zerolog.Nop())
	defer models.Close()

	_, err := models.Restorer().RestoreFace(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	var missing *MissingModelError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingModelError, got %v", err)
	}
	if !strings.Contains(err.Error(), "GFPGANv1.4.onnx") || !strings.Contains(err.Error(), cfg.WeightsDir) {
		t.Errorf("Error should name the file and folder: %v", err)
	}

	// The first failure is remembered.
	_, again := models.Restorer().RestoreFace(context.Background(), image.NewNRGBA(image.Rect(0, 0, 4, 4)))
	if again != err {
		t.Errorf("Expected cached error, got %v", again)
	}
}

func TestModelPath(t *testing.T) {
	cfg := Config{WeightsDir: "weights"}
	if got := cfg.modelPath("a.onnx"); got != filepath.Join("weights", "a.onnx") {
		t.Errorf("Unexpected path %s", got)
	}
	abs := filepath.Join(t.TempDir(), "b.onnx")
	if got := cfg.modelPath(abs); got != abs {
		t.Errorf("Absolute path should be kept, got %s", got)
	}
}

func TestCheckWeights(t *testing.T) {
	dir := t.TempDir()
	if err := checkWeights("segmentation", dir); err == nil {
		t.Error("A directory is not a model file")
	}
	file := filepath.Join(dir, "u2net.onnx")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := checkWeights("segmentation", file); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
