// Package onnx runs the three pretrained collaborators of the pipeline (face
// detector, face restorer and foreground segmenter) with onnxruntime. Each
// model is loaded on first use and kept for the life of the process.
package onnx

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/menta2k/portrait-studio/pkg/bokeh"
	"github.com/menta2k/portrait-studio/pkg/facerestore"
	"github.com/menta2k/portrait-studio/pkg/types"
)

// lazy builds a value at most once; the first error is kept and returned
// on every later call instead of retrying the load.
type lazy[T any] struct {
	once sync.Once
	val  T
	err  error
}

func (l *lazy[T]) get(init func() (T, error)) (T, error) {
	l.once.Do(func() {
		l.val, l.err = init()
	})
	return l.val, l.err
}

// Models owns the lazily initialized model handles.
type Models struct {
	cfg Config
	log zerolog.Logger

	detector  lazy[*FaceDetector]
	restorer  lazy[*FaceRestorer]
	segmenter lazy[*Segmenter]

	mu     sync.Mutex
	loaded []io.Closer
}

// NewModels prepares model handles without loading anything.
func NewModels(cfg Config, logger zerolog.Logger) *Models {
	return &Models{cfg: cfg, log: logger}
}

// Detector returns a face detector that loads its model on first use.
func (m *Models) Detector() facerestore.FaceDetector {
	return detectorHandle{m}
}

// Restorer returns a face restorer that loads its model on first use.
func (m *Models) Restorer() facerestore.FaceRestorer {
	return restorerHandle{m}
}

// Segmenter returns a segmenter that loads its model on first use.
func (m *Models) Segmenter() bokeh.Segmenter {
	return segmenterHandle{m}
}

func (m *Models) loadDetector() (*FaceDetector, error) {
	return m.detector.get(func() (*FaceDetector, error) {
		path := m.cfg.modelPath(m.cfg.Detector.File)
		if err := checkWeights("face detector", path); err != nil {
			return nil, err
		}
		m.log.Info().Str("model", path).Msg("loading face detector")
		v, err := NewFaceDetector(path, m.cfg.sharedLibraryPath(), m.cfg.Detector)
		if err != nil {
			return nil, err
		}
		m.track(v)
		return v, nil
	})
}

func (m *Models) loadRestorer() (*FaceRestorer, error) {
	return m.restorer.get(func() (*FaceRestorer, error) {
		path := m.cfg.modelPath(m.cfg.Restorer.File)
		if err := checkWeights("face restorer", path); err != nil {
			return nil, err
		}
		m.log.Info().Str("model", path).Msg("loading face restorer")
		v, err := NewFaceRestorer(path, m.cfg.sharedLibraryPath(), m.cfg.Restorer)
		if err != nil {
			return nil, err
		}
		m.track(v)
		return v, nil
	})
}

func (m *Models) loadSegmenter() (*Segmenter, error) {
	return m.segmenter.get(func() (*Segmenter, error) {
		path := m.cfg.modelPath(m.cfg.Segmenter.File)
		if err := checkWeights("segmentation", path); err != nil {
			return nil, err
		}
		m.log.Info().Str("model", path).Msg("loading segmenter")
		v, err := NewSegmenter(path, m.cfg.sharedLibraryPath(), m.cfg.Segmenter)
		if err != nil {
			return nil, err
		}
		m.track(v)
		return v, nil
	})
}

// Close releases every model that was loaded.
func (m *Models) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, c := range m.loaded {
		errs = append(errs, c.Close())
	}
	m.loaded = nil
	return errors.Join(errs...)
}

func (m *Models) track(c io.Closer) {
	m.mu.Lock()
	m.loaded = append(m.loaded, c)
	m.mu.Unlock()
}

type detectorHandle struct{ m *Models }

func (h detectorHandle) DetectFaces(ctx context.Context, img image.Image) ([]types.Face, error) {
	d, err := h.m.loadDetector()
	if err != nil {
		return nil, err
	}
	return d.DetectFaces(ctx, img)
}

type restorerHandle struct{ m *Models }

func (h restorerHandle) RestoreFace(ctx context.Context, crop *image.NRGBA) (*image.NRGBA, error) {
	r, err := h.m.loadRestorer()
	if err != nil {
		return nil, &facerestore.UnavailableError{Err: err}
	}
	return r.RestoreFace(ctx, crop)
}

type segmenterHandle struct{ m *Models }

func (h segmenterHandle) ForegroundMatte(ctx context.Context, img image.Image) (*image.Alpha, error) {
	s, err := h.m.loadSegmenter()
	if err != nil {
		return nil, err
	}
	return s.ForegroundMatte(ctx, img)
}
