package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoImages is returned when the inputs resolve to no images.
var ErrNoImages = errors.New("no input images found")

// InputNotFoundError reports an input path that is neither a file nor a
// directory.
type InputNotFoundError struct {
	Path string
}

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("input path not found: %s", e.Path)
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile reports whether a directory entry should be picked up as an
// input image (.jpg, .jpeg or .png, any case).
func IsImageFile(filename string) bool {
	switch GetFileExtension(filename) {
	case "jpg", "jpeg", "png":
		return true
	}
	return false
}

// CollectImages resolves input paths into image files. Files are taken as
// given; directories contribute their immediate image entries sorted by
// name. The first path that does not exist aborts collection.
func CollectImages(inputs []string) ([]string, error) {
	var images []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return nil, &InputNotFoundError{Path: in}
		}
		if !info.IsDir() {
			images = append(images, in)
			continue
		}
		files, err := ListImageFiles(in)
		if err != nil {
			return nil, err
		}
		images = append(images, files...)
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	return images, nil
}

// ListImageFiles lists the image files directly inside dir, sorted by name.
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// OutputPlan maps each input image to the file it is written to.
type OutputPlan struct {
	// Single is true when output names one file rather than a directory.
	Single  bool
	Dir     string
	Targets []string
}

// PlanOutputs decides between single-file and directory output. A single
// input with an output that is not an existing directory is written to
// output exactly; otherwise output is a directory and each image keeps its
// file name.
func PlanOutputs(images []string, output string) OutputPlan {
	if len(images) == 1 && !DirExists(output) {
		return OutputPlan{
			Single:  true,
			Dir:     filepath.Dir(output),
			Targets: []string{output},
		}
	}

	targets := make([]string, len(images))
	for i, img := range images {
		targets[i] = filepath.Join(output, filepath.Base(img))
	}
	return OutputPlan{Dir: output, Targets: targets}
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}
