//go:build cgo

package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment loads the onnxruntime library once per process.
func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if !ort.IsInitialized() {
			envErr = ort.InitializeEnvironment()
		}
	})
	return envErr
}

// runner wraps a session whose tensors are created per call.
type runner struct {
	session *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
}

// openRunner creates a session for modelPath. Empty names are filled from
// the model's own input/output list.
func openRunner(modelPath, libPath, input string, outputs []string) (*runner, error) {
	if err := initEnvironment(libPath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	if input == "" || len(outputs) == 0 {
		ins, outs, err := ort.GetInputOutputInfo(modelPath)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", modelPath, err)
		}
		if input == "" && len(ins) > 0 {
			input = ins[0].Name
		}
		if len(outputs) == 0 && len(outs) > 0 {
			outputs = []string{outs[0].Name}
		}
	}
	if input == "" || len(outputs) == 0 {
		return nil, fmt.Errorf("could not determine input/output names for %s", modelPath)
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, []string{input}, outputs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", modelPath, err)
	}
	return &runner{session: session, inputs: []string{input}, outputs: outputs}, nil
}

// run feeds one float32 input and returns the data of every output.
func (r *runner) run(input []float32, inShape []int64, outShapes [][]int64) ([][]float32, error) {
	if len(outShapes) != len(r.outputs) {
		return nil, fmt.Errorf("expected %d output shapes, got %d", len(r.outputs), len(outShapes))
	}

	in, err := ort.NewTensor(ort.NewShape(inShape...), input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer in.Destroy()

	outs := make([]*ort.Tensor[float32], len(outShapes))
	values := make([]ort.Value, len(outShapes))
	for i, shape := range outShapes {
		t, err := ort.NewEmptyTensor[float32](ort.NewShape(shape...))
		if err != nil {
			for _, o := range outs[:i] {
				o.Destroy()
			}
			return nil, fmt.Errorf("failed to create output tensor: %w", err)
		}
		outs[i] = t
		values[i] = t
	}
	defer func() {
		for _, o := range outs {
			o.Destroy()
		}
	}()

	if err := r.session.Run([]ort.Value{in}, values); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	result := make([][]float32, len(outs))
	for i, o := range outs {
		data := o.GetData()
		result[i] = make([]float32, len(data))
		copy(result[i], data)
	}
	return result, nil
}

func (r *runner) close() error {
	if r == nil || r.session == nil {
		return nil
	}
	return r.session.Destroy()
}
