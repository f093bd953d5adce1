package onnx

import (
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// FaceRestorer enhances face crops with a GFPGAN-style model. Crops are
// scaled to the model's square input and the result is scaled back to the
// crop's size.
type FaceRestorer struct {
	opts   ModelOptions
	runner *runner
}

// NewFaceRestorer opens the restorer model at path.
func NewFaceRestorer(path, libPath string, opts ModelOptions) (*FaceRestorer, error) {
	r, err := openRunner(path, libPath, opts.InputName, opts.OutputNames)
	if err != nil {
		return nil, err
	}
	return &FaceRestorer{opts: opts, runner: r}, nil
}

// RestoreFace returns a restored crop with the same dimensions as crop.
func (f *FaceRestorer) RestoreFace(ctx context.Context, crop *image.NRGBA) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := crop.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty face crop")
	}

	input, err := imageToTensor(crop, f.opts)
	if err != nil {
		return nil, err
	}
	w, h := int64(f.opts.InputWidth), int64(f.opts.InputHeight)
	outs, err := f.runner.run(input, []int64{1, 3, h, w}, [][]int64{{1, 3, h, w}})
	if err != nil {
		return nil, fmt.Errorf("face restoration: %w", err)
	}

	restored, err := tensorToImage(outs[0], f.opts.InputWidth, f.opts.InputHeight, f.opts)
	if err != nil {
		return nil, err
	}
	if restored.Bounds().Dx() == b.Dx() && restored.Bounds().Dy() == b.Dy() {
		return restored, nil
	}
	return imaging.Resize(restored, b.Dx(), b.Dy(), imaging.Lanczos), nil
}

// Close releases the session.
func (f *FaceRestorer) Close() error {
	return f.runner.close()
}
