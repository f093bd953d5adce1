//go:build !cgo

package onnx

// runner mirrors the cgo runner's fields; it is never constructed.
type runner struct {
	outputs []string
}

func openRunner(modelPath, libPath, input string, outputs []string) (*runner, error) {
	return nil, ErrCGORequired
}

func (r *runner) run(input []float32, inShape []int64, outShapes [][]int64) ([][]float32, error) {
	return nil, ErrCGORequired
}

func (r *runner) close() error {
	return nil
}
