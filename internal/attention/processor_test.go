package attention

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/attention/internal/detector"
)

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 40, G: 40, B: 40, A: 255})
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func staticDetector(boxes []detector.FaceBox, err error) detector.Detector {
	return detector.DetectorFunc(func(image.Image) ([]detector.FaceBox, error) {
		return boxes, err
	})
}

func TestProcessFirstFrameNoFace(t *testing.T) {
	store := NewStore()
	p := NewProcessor(store, staticDetector(nil, nil), zap.NewNop())

	header := FrameHeader{SessionID: "s1", ParticipantID: "p1", Name: "Alice"}
	res := p.Process(header, testJPEG(t), time.Now())

	if res.Err != nil {
		t.Fatalf("unexpected error result: %v", res.Err.Error)
	}
	fr := res.Frame
	if fr.FacesDetected != 0 {
		t.Errorf("faces detected %d, want 0", fr.FacesDetected)
	}
	if fr.AttentionScore != 0 {
		t.Errorf("attention score %v, want 0", fr.AttentionScore)
	}
	if fr.AttentionLevel != "low" {
		t.Errorf("attention level %q, want low", fr.AttentionLevel)
	}
	if fr.TotalFrames != 1 {
		t.Errorf("total frames %d, want 1", fr.TotalFrames)
	}
	if !fr.FrameProcessed {
		t.Error("frame_processed should be true")
	}
	if fr.Faces == nil {
		t.Error("faces should be an empty slice, not nil")
	}
}

func TestProcessAppliesHeaderDefaults(t *testing.T) {
	store := NewStore()
	p := NewProcessor(store, staticDetector(nil, nil), zap.NewNop())

	res := p.Process(FrameHeader{}, testJPEG(t), time.Now())
	if res.Frame == nil {
		t.Fatal("expected success result")
	}
	if res.Frame.SessionID != "default" {
		t.Errorf("session id %q, want default", res.Frame.SessionID)
	}
	if res.Frame.ParticipantID != "unknown" {
		t.Errorf("participant id %q, want unknown", res.Frame.ParticipantID)
	}
	if res.Frame.ParticipantName != "Unknown" {
		t.Errorf("name %q, want Unknown", res.Frame.ParticipantName)
	}
}

func TestProcessUndecodableImage(t *testing.T) {
	store := NewStore()
	p := NewProcessor(store, staticDetector(nil, nil), zap.NewNop())

	res := p.Process(FrameHeader{SessionID: "s1", ParticipantID: "p1"}, []byte("not an image"), time.Now())
	if res.Err == nil {
		t.Fatal("expected error result")
	}
	if res.Err.Error != "Could not decode image - invalid image data" {
		t.Errorf("error %q", res.Err.Error)
	}
	if store.SessionCount() != 0 {
		t.Error("store must not be mutated by an undecodable frame")
	}
	if res.Err.SessionID != "s1" || res.Err.ParticipantID != "p1" {
		t.Errorf("error ids %q/%q, want s1/p1", res.Err.SessionID, res.Err.ParticipantID)
	}
}

func TestProcessUndecodableImageUnknownIdentifiers(t *testing.T) {
	store := NewStore()
	p := NewProcessor(store, staticDetector(nil, nil), zap.NewNop())

	// a missing header identifies as unknown/unknown in error payloads,
	// not as the success-path session default
	res := p.Process(FrameHeader{}, []byte("not an image"), time.Now())
	if res.Err == nil {
		t.Fatal("expected error result")
	}
	if res.Err.SessionID != "unknown" {
		t.Errorf("session id %q, want unknown", res.Err.SessionID)
	}
	if res.Err.ParticipantID != "unknown" {
		t.Errorf("participant id %q, want unknown", res.Err.ParticipantID)
	}
}

func TestProcessDetectorFailureFailsOpen(t *testing.T) {
	store := NewStore()
	p := NewProcessor(store, staticDetector(nil, errors.New("cascade exploded")), zap.NewNop())

	res := p.Process(FrameHeader{SessionID: "s1", ParticipantID: "p1"}, testJPEG(t), time.Now())
	if res.Err != nil {
		t.Fatalf("detector failure must not surface as an error: %v", res.Err.Error)
	}
	if res.Frame.FacesDetected != 0 {
		t.Errorf("faces detected %d, want 0", res.Frame.FacesDetected)
	}
	if res.Frame.TotalFrames != 1 {
		t.Errorf("frame must still be counted, got total %d", res.Frame.TotalFrames)
	}
}

func TestProcessNilDetector(t *testing.T) {
	store := NewStore()
	p := NewProcessor(store, nil, zap.NewNop())

	res := p.Process(FrameHeader{SessionID: "s1", ParticipantID: "p1"}, testJPEG(t), time.Now())
	if res.Err != nil {
		t.Fatalf("nil detector must not fail a frame: %v", res.Err.Error)
	}
}

func TestProcessCountsDetectedFaces(t *testing.T) {
	store := NewStore()
	boxes := []detector.FaceBox{{X: 1, Y: 2, Width: 30, Height: 30, Confidence: 0.85}}
	p := NewProcessor(store, staticDetector(boxes, nil), zap.NewNop())

	res := p.Process(FrameHeader{SessionID: "s1", ParticipantID: "p1"}, testJPEG(t), time.Now())
	if res.Frame.FacesDetected != 1 {
		t.Errorf("faces detected %d, want 1", res.Frame.FacesDetected)
	}
	if res.Frame.AttentionScore != 100 {
		t.Errorf("score %v, want 100", res.Frame.AttentionScore)
	}
	if res.Frame.AttentionLevel != "high" {
		t.Errorf("level %q, want high", res.Frame.AttentionLevel)
	}
}

func TestAttentionLevelBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{100, "high"},
		{80, "high"},
		{79.99, "medium"},
		{60, "medium"},
		{59.99, "low"},
		{0, "low"},
	}
	for _, tc := range cases {
		if got := AttentionLevel(tc.score); got != tc.want {
			t.Errorf("level(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestAttentionLevelFromFrames(t *testing.T) {
	// 4 of 5 frames with a face = exactly 80.00 -> high
	store := NewStore()
	detected := []bool{true, true, true, true, false}
	var p *Processor
	for i, d := range detected {
		faces := []detector.FaceBox{}
		if d {
			faces = append(faces, detector.FaceBox{Width: 30, Height: 30, Confidence: 0.85})
		}
		p = NewProcessor(store, staticDetector(faces, nil), zap.NewNop())
		res := p.Process(FrameHeader{SessionID: "s1", ParticipantID: "p1"}, testJPEG(t), time.Now())
		if res.Err != nil {
			t.Fatalf("frame %d failed: %v", i, res.Err.Error)
		}
		if i == len(detected)-1 {
			if res.Frame.AttentionScore != 80 {
				t.Errorf("score %v, want 80", res.Frame.AttentionScore)
			}
			if res.Frame.AttentionLevel != "high" {
				t.Errorf("level %q, want high at exactly 80", res.Frame.AttentionLevel)
			}
		}
	}
}

func TestSessionDuration(t *testing.T) {
	store := NewStore()
	p := NewProcessor(store, staticDetector(nil, nil), zap.NewNop())

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p.Process(FrameHeader{SessionID: "s1", ParticipantID: "p1"}, testJPEG(t), start)
	res := p.Process(FrameHeader{SessionID: "s1", ParticipantID: "p1"}, testJPEG(t), start.Add(90*time.Second+400*time.Millisecond))

	if res.Frame.SessionDurationSeconds != 90 {
		t.Errorf("duration %d, want 90", res.Frame.SessionDurationSeconds)
	}
}

func TestSessionDurationClockSkewFloorsAtZero(t *testing.T) {
	store := NewStore()
	p := NewProcessor(store, staticDetector(nil, nil), zap.NewNop())

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p.Process(FrameHeader{SessionID: "s1", ParticipantID: "p1"}, testJPEG(t), start)
	res := p.Process(FrameHeader{SessionID: "s1", ParticipantID: "p1"}, testJPEG(t), start.Add(-time.Minute))

	if res.Frame.SessionDurationSeconds != 0 {
		t.Errorf("duration %d, want 0 under clock skew", res.Frame.SessionDurationSeconds)
	}
}
