package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.Pipeline.FaceStrength != 0.8 {
		t.Errorf("Expected face strength 0.8, got %v", cfg.Pipeline.FaceStrength)
	}
	if cfg.Pipeline.BokehStrength != 15 {
		t.Errorf("Expected bokeh strength 15, got %v", cfg.Pipeline.BokehStrength)
	}
	if cfg.Pipeline.MaxDim != 1024 {
		t.Errorf("Expected max dim 1024, got %v", cfg.Pipeline.MaxDim)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"quality too high", func(c *Config) { c.Output.Quality = 101 }, "quality"},
		{"strength out of range", func(c *Config) { c.Pipeline.FaceStrength = 1.5 }, "face_restore_strength"},
		{"zero bokeh", func(c *Config) { c.Pipeline.BokehStrength = 0 }, "bokeh_strength"},
		{"unknown detector", func(c *Config) { c.Vision.Detector = "magic" }, "vision.detector"},
		{"vision without url", func(c *Config) { c.Vision.Detector = DetectorLlamaCpp; c.Vision.URL = "" }, "vision.url"},
		{"missing model file", func(c *Config) { c.Models.Segmenter.File = "" }, "models"},
		{"ollama without model", func(c *Config) { c.Vision.Detector = DetectorOllama; c.Vision.Model = "" }, "vision.model"},
		{"mixed-case ollama without model", func(c *Config) { c.Vision.Detector = "Ollama"; c.Vision.Model = "" }, "vision.model"},
		{"negative face padding", func(c *Config) { c.Pipeline.FacePadding = -0.1 }, "face_padding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Expected error mentioning %q, got %v", tt.errSub, err)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Pipeline.FaceStrength = 0.5
	cfg.Vision.Detector = DetectorOllama
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Pipeline.FaceStrength != 0.5 || loaded.Vision.Detector != DetectorOllama {
		t.Errorf("Round trip lost values: %+v", loaded)
	}
	if loaded.Models.Restorer.File != cfg.Models.Restorer.File {
		t.Errorf("Expected restorer file %s, got %s", cfg.Models.Restorer.File, loaded.Models.Restorer.File)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"pipeline":{"bokeh_strength":7}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Pipeline.BokehStrength != 7 {
		t.Errorf("Expected bokeh strength 7, got %v", cfg.Pipeline.BokehStrength)
	}
	if cfg.Pipeline.MaxDim != 1024 || cfg.Output.Quality != 95 {
		t.Errorf("Defaults should survive a partial file: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{"), 0644)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestGetConfigPath(t *testing.T) {
	if !strings.HasSuffix(GetConfigPath(), "config.json") {
		t.Errorf("Unexpected config path %s", GetConfigPath())
	}
}
