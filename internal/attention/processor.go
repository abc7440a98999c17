package attention

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/attention/internal/detector"
)

// Attention level thresholds; a boundary score belongs to the higher tier.
const (
	levelHighMin   = 80
	levelMediumMin = 60
)

// progressLogEvery controls how often per-participant progress is logged.
const progressLogEvery = 50

// FrameHeader is the JSON metadata prefixed to each binary frame. Missing
// fields never fail a frame; defaults apply via withDefaults.
type FrameHeader struct {
	ParticipantID string `json:"participant_id"`
	SessionID     string `json:"session_id"`
	Name          string `json:"name"`
}

func (h FrameHeader) withDefaults() FrameHeader {
	if h.ParticipantID == "" {
		h.ParticipantID = "unknown"
	}
	if h.SessionID == "" {
		h.SessionID = "default"
	}
	if h.Name == "" {
		h.Name = "Unknown"
	}
	return h
}

// FrameResult is the successful per-frame response payload.
type FrameResult struct {
	Timestamp              time.Time          `json:"timestamp"`
	SessionID              string             `json:"session_id"`
	ParticipantID          string             `json:"participant_id"`
	ParticipantName        string             `json:"participant_name"`
	FacesDetected          int                `json:"faces_detected"`
	Faces                  []detector.FaceBox `json:"faces"`
	AttentionScore         float64            `json:"attention_score"`
	AttentionLevel         string             `json:"attention_level"`
	TotalFrames            int                `json:"total_frames"`
	FaceDetectedFrames     int                `json:"face_detected_frames"`
	SessionDurationSeconds int                `json:"session_duration_seconds"`
	FrameProcessed         bool               `json:"frame_processed"`
}

// ErrorResult is the error response payload for a frame that could not be
// processed.
type ErrorResult struct {
	Error         string    `json:"error"`
	Timestamp     time.Time `json:"timestamp"`
	SessionID     string    `json:"session_id,omitempty"`
	ParticipantID string    `json:"participant_id,omitempty"`
}

// Result is either a FrameResult or an ErrorResult; exactly one is non-nil.
type Result struct {
	Frame *FrameResult
	Err   *ErrorResult
}

// Payload returns the JSON-serializable response body for this result.
func (r Result) Payload() interface{} {
	if r.Err != nil {
		return r.Err
	}
	return r.Frame
}

// Processor decodes inbound frames, runs face detection and updates the
// store. A nil detector degrades to zero detections for every frame.
type Processor struct {
	store    *Store
	detector detector.Detector
	logger   *zap.Logger
}

// NewProcessor creates a frame processor. det may be nil when face detection
// is unavailable; frames are still counted.
func NewProcessor(store *Store, det detector.Detector, logger *zap.Logger) *Processor {
	return &Processor{store: store, detector: det, logger: logger}
}

// Process analyzes one frame and updates attention state. Every call returns
// a well-formed Result; an undecodable image leaves the store untouched.
func (p *Processor) Process(header FrameHeader, imageBytes []byte, now time.Time) Result {
	h := header.withDefaults()

	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		// error payloads identify missing fields as "unknown" rather than
		// applying the success-path session default
		return Result{Err: &ErrorResult{
			Error:         "Could not decode image - invalid image data",
			Timestamp:     now,
			SessionID:     orUnknown(header.SessionID),
			ParticipantID: orUnknown(header.ParticipantID),
		}}
	}

	faces := p.detectFaces(img)

	snap := p.store.RecordFrame(h.SessionID, h.ParticipantID, h.Name, len(faces) > 0, now)

	if snap.TotalFrames%progressLogEvery == 0 {
		p.logger.Info("attention progress",
			zap.String("participant", snap.Name),
			zap.String("session_id", h.SessionID),
			zap.Int("total_frames", snap.TotalFrames),
			zap.Float64("attention_score", snap.AttentionScore),
		)
	}

	return Result{Frame: &FrameResult{
		Timestamp:              now,
		SessionID:              h.SessionID,
		ParticipantID:          h.ParticipantID,
		ParticipantName:        h.Name,
		FacesDetected:          len(faces),
		Faces:                  faces,
		AttentionScore:         snap.AttentionScore,
		AttentionLevel:         AttentionLevel(snap.AttentionScore),
		TotalFrames:            snap.TotalFrames,
		FaceDetectedFrames:     snap.FaceDetectedFrames,
		SessionDurationSeconds: durationSeconds(snap.SessionStart, now),
		FrameProcessed:         true,
	}}
}

// detectFaces runs the detector, degrading any failure to zero detections so
// a broken detector never drops a frame.
func (p *Processor) detectFaces(img image.Image) []detector.FaceBox {
	if p.detector == nil {
		return []detector.FaceBox{}
	}
	faces, err := p.detector.Detect(img)
	if err != nil {
		p.logger.Error("face detection failed", zap.Error(err))
		return []detector.FaceBox{}
	}
	if faces == nil {
		faces = []detector.FaceBox{}
	}
	return faces
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// AttentionLevel buckets a score into low/medium/high.
func AttentionLevel(score float64) string {
	switch {
	case score >= levelHighMin:
		return "high"
	case score >= levelMediumMin:
		return "medium"
	default:
		return "low"
	}
}

// durationSeconds is the elapsed whole seconds since start, floored at 0 in
// case of clock skew.
func durationSeconds(start, now time.Time) int {
	secs := math.Round(now.Sub(start).Seconds())
	if secs < 0 {
		return 0
	}
	return int(secs)
}
