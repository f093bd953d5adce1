package types

import "image"

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ToPixels converts the normalized box to a Face in pixel coordinates of a
// w x h image.
func (b Box) ToPixels(w, h int, score float64) Face {
	return Face{
		X1:    b.X * float64(w),
		Y1:    b.Y * float64(h),
		X2:    (b.X + b.W) * float64(w),
		Y2:    (b.Y + b.H) * float64(h),
		Score: score,
	}
}

// Face is a detected face bounding box in pixel coordinates (x1,y1 top-left,
// x2,y2 bottom-right) as reported by a detector. It may extend past the image.
type Face struct {
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Score float64 `json:"score"`
}

// Width returns box width
func (f Face) Width() float64 {
	return f.X2 - f.X1
}

// Height returns box height
func (f Face) Height() float64 {
	return f.Y2 - f.Y1
}

// FaceOutcome records what happened to one detected face during restoration.
type FaceOutcome struct {
	Index  int
	Face   Face
	Region image.Rectangle
	Err    error
}

// OK reports whether the face was restored and blended back.
func (o FaceOutcome) OK() bool {
	return o.Err == nil
}

// DetectedFace is a single face reported by a vision model.
type DetectedFace struct {
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// FaceAnalysis contains the face detection result from the vision model
type FaceAnalysis struct {
	Faces       []DetectedFace `json:"faces"`
	Description string         `json:"description"`
}

// SaveOptions contains options for writing enhanced images
type SaveOptions struct {
	Quality  int
	Lossless bool
	Debug    bool
}
