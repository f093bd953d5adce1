package onnx

import (
	"context"
	"fmt"
	"image"
	"sort"

	"github.com/menta2k/portrait-studio/pkg/types"
)

// FaceDetector finds faces with an UltraFace-style model.
type FaceDetector struct {
	opts   DetectorOptions
	runner *runner
}

// NewFaceDetector opens the detector model at path.
func NewFaceDetector(path, libPath string, opts DetectorOptions) (*FaceDetector, error) {
	r, err := openRunner(path, libPath, opts.InputName, opts.OutputNames)
	if err != nil {
		return nil, err
	}
	return &FaceDetector{opts: opts, runner: r}, nil
}

// DetectFaces returns pixel boxes for every face above the score threshold,
// after non-maximum suppression, ordered by descending score.
func (d *FaceDetector) DetectFaces(ctx context.Context, img image.Image) ([]types.Face, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(d.runner.outputs) != 2 {
		return nil, fmt.Errorf("face detector needs scores and boxes outputs, got %v", d.runner.outputs)
	}

	input, err := imageToTensor(img, d.opts.ModelOptions)
	if err != nil {
		return nil, err
	}
	n := int64(d.opts.Anchors)
	outs, err := d.runner.run(input,
		[]int64{1, 3, int64(d.opts.InputHeight), int64(d.opts.InputWidth)},
		[][]int64{{1, n, 2}, {1, n, 4}})
	if err != nil {
		return nil, fmt.Errorf("face detection: %w", err)
	}

	b := img.Bounds()
	faces := decodeDetections(outs[0], outs[1], b.Dx(), b.Dy(), d.opts.ScoreThreshold)
	return suppress(faces, d.opts.IOUThreshold), nil
}

// Close releases the session.
func (d *FaceDetector) Close() error {
	return d.runner.close()
}

// decodeDetections turns per-anchor [background, face] scores and
// normalized corner boxes into pixel faces scaled to w x h.
func decodeDetections(scores, boxes []float32, w, h int, threshold float64) []types.Face {
	count := min(len(scores)/2, len(boxes)/4)
	var faces []types.Face
	for i := 0; i < count; i++ {
		score := float64(scores[i*2+1])
		if score < threshold {
			continue
		}
		box := boxes[i*4 : i*4+4]
		face := types.Face{
			X1:    clampUnit(box[0]) * float64(w),
			Y1:    clampUnit(box[1]) * float64(h),
			X2:    clampUnit(box[2]) * float64(w),
			Y2:    clampUnit(box[3]) * float64(h),
			Score: score,
		}
		if face.Width() <= 0 || face.Height() <= 0 {
			continue
		}
		faces = append(faces, face)
	}
	return faces
}

// suppress applies greedy non-maximum suppression.
func suppress(faces []types.Face, iouThreshold float64) []types.Face {
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].Score > faces[j].Score })

	var kept []types.Face
	for _, f := range faces {
		overlaps := false
		for _, k := range kept {
			if iou(f, k) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, f)
		}
	}
	return kept
}

func iou(a, b types.Face) float64 {
	x1, y1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	x2, y2 := min(a.X2, b.X2), min(a.Y2, b.Y2)
	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	inter := (x2 - x1) * (y2 - y1)
	union := a.Width()*a.Height() + b.Width()*b.Height() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampUnit(v float32) float64 {
	return float64(max(0, min(v, 1)))
}
