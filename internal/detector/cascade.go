package detector

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Cascade detects frontal faces with an OpenCV Haar cascade classifier.
// The classifier is not reentrant, so Detect serializes access to it.
type Cascade struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// cascadeConfidence is reported for every match; Haar cascades do not
// provide a per-detection confidence value.
const cascadeConfidence = 0.85

// NewCascade loads the Haar cascade XML at path. It returns an error when
// the file is missing or not a valid cascade.
func NewCascade(path string) (*Cascade, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		_ = classifier.Close()
		return nil, fmt.Errorf("load cascade classifier from %q", path)
	}
	return &Cascade{classifier: classifier}, nil
}

// Detect runs the classifier over a grayscale copy of img.
func (c *Cascade) Detect(img image.Image) ([]FaceBox, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	c.mu.Lock()
	rects := c.classifier.DetectMultiScaleWithParams(
		gray, 1.1, 4, 0, image.Pt(30, 30), image.Pt(0, 0),
	)
	c.mu.Unlock()

	boxes := make([]FaceBox, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, FaceBox{
			X:          r.Min.X,
			Y:          r.Min.Y,
			Width:      r.Dx(),
			Height:     r.Dy(),
			Confidence: cascadeConfidence,
		})
	}
	return boxes, nil
}

// Close releases the underlying classifier.
func (c *Cascade) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifier.Close()
}
