package detection

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/menta2k/portrait-studio/pkg/types"
)

type fakeClient struct {
	analysis *types.FaceAnalysis
	err      error
	prompt   string
}

func (f *fakeClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return "a test image", nil
}

func (f *fakeClient) AnalyzeFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceAnalysis, error) {
	f.prompt = prompt
	return f.analysis, f.err
}

func TestDetectFaces(t *testing.T) {
	fc := &fakeClient{analysis: &types.FaceAnalysis{Faces: []types.DetectedFace{
		{Confidence: 0.6, Box: types.Box{X: 0.5, Y: 0.5, W: 0.25, H: 0.25}},
		{Confidence: 0.9, Box: types.Box{X: 0.1, Y: 0.2, W: 0.2, H: 0.3}},
		{Confidence: 0.1, Box: types.Box{X: 0, Y: 0, W: 0.5, H: 0.5}},   // below threshold
		{Confidence: 0.8, Box: types.Box{X: 0.9, Y: 0.9, W: 0, H: 0.1}}, // empty
	}}}
	d := NewDetector(fc, "llava")

	faces, err := d.DetectFaces(context.Background(), image.NewNRGBA(image.Rect(0, 0, 200, 100)))
	if err != nil {
		t.Fatalf("DetectFaces failed: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("Expected 2 faces, got %d", len(faces))
	}
	if faces[0].Score != 0.9 {
		t.Errorf("Expected highest confidence first, got %v", faces[0].Score)
	}
	want := types.Face{X1: 20, Y1: 20, X2: 60, Y2: 50, Score: 0.9}
	got := faces[0]
	if !near(got.X1, want.X1) || !near(got.Y1, want.Y1) || !near(got.X2, want.X2) || !near(got.Y2, want.Y2) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if fc.prompt != DefaultPrompt {
		t.Error("Expected default prompt")
	}
}

func TestDetectFacesClampsBoxes(t *testing.T) {
	fc := &fakeClient{analysis: &types.FaceAnalysis{Faces: []types.DetectedFace{
		{Confidence: 1, Box: types.Box{X: 0.8, Y: -0.1, W: 0.5, H: 0.5}},
	}}}
	faces, err := NewDetector(fc, "m").DetectFaces(context.Background(), image.NewNRGBA(image.Rect(0, 0, 100, 100)))
	if err != nil {
		t.Fatal(err)
	}
	if len(faces) != 1 || !near(faces[0].X2, 100) || !near(faces[0].Y1, 0) || !near(faces[0].Y2, 40) {
		t.Errorf("Box not clamped: %+v", faces)
	}
}

func TestDetectFacesNoFaces(t *testing.T) {
	fc := &fakeClient{analysis: &types.FaceAnalysis{Description: "Model returned non-JSON response"}}
	faces, err := NewDetector(fc, "m").WithPrompt("custom").DetectFaces(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("Expected no faces, got %d", len(faces))
	}
	if fc.prompt != "custom" {
		t.Errorf("Expected custom prompt, got %q", fc.prompt)
	}
}

func TestDetectFacesClientError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := NewDetector(&fakeClient{err: boom}, "m").DetectFaces(context.Background(), image.NewNRGBA(image.Rect(0, 0, 10, 10)))
	if !errors.Is(err, boom) {
		t.Errorf("Expected client error, got %v", err)
	}
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}

func TestTestVision(t *testing.T) {
	reply, err := NewDetector(&fakeClient{}, "llava").TestVision(context.Background(), image.NewNRGBA(image.Rect(0, 0, 1600, 900)))
	if err != nil {
		t.Fatalf("TestVision failed: %v", err)
	}
	if reply != "a test image" {
		t.Errorf("Unexpected reply %q", reply)
	}
}
