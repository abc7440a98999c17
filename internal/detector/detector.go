// Package detector defines the face detection capability used by frame
// processing, plus a Haar-cascade implementation backed by gocv.
package detector

import "image"

// FaceBox is a detected face bounding box in source-image pixel coordinates.
type FaceBox struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Detector analyzes a decoded frame and returns detected face bounding boxes.
// Implementations must be safe for concurrent use.
type Detector interface {
	// Detect returns an empty slice if no faces are found.
	Detect(img image.Image) ([]FaceBox, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(img image.Image) ([]FaceBox, error)

// Detect calls f(img).
func (f DetectorFunc) Detect(img image.Image) ([]FaceBox, error) {
	return f(img)
}
