package onnx

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Segmenter predicts a salient-foreground matte with a U2Net-style model.
type Segmenter struct {
	opts   ModelOptions
	runner *runner
}

// NewSegmenter opens the segmentation model at path.
func NewSegmenter(path, libPath string, opts ModelOptions) (*Segmenter, error) {
	r, err := openRunner(path, libPath, opts.InputName, opts.OutputNames)
	if err != nil {
		return nil, err
	}
	return &Segmenter{opts: opts, runner: r}, nil
}

// ForegroundMatte returns a matte the size of img, 255 for foreground.
func (s *Segmenter) ForegroundMatte(ctx context.Context, img image.Image) (*image.Alpha, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input, err := imageToTensor(img, s.opts)
	if err != nil {
		return nil, err
	}
	w, h := s.opts.InputWidth, s.opts.InputHeight
	outs, err := s.runner.run(input,
		[]int64{1, 3, int64(h), int64(w)},
		[][]int64{{1, 1, int64(h), int64(w)}})
	if err != nil {
		return nil, fmt.Errorf("segmentation: %w", err)
	}
	if len(outs[0]) < w*h {
		return nil, errors.New("segmentation model returned an empty matte")
	}

	b := img.Bounds()
	return planeToAlpha(outs[0], w, h, b.Dx(), b.Dy()), nil
}

// Close releases the session.
func (s *Segmenter) Close() error {
	return s.runner.close()
}
