// Package reports exposes read-only attention reports and administrative
// resets over the HTTP API.
package reports

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aura-webinar/attention/internal/attention"
	"github.com/aura-webinar/attention/internal/stream"
)

// Grade is the letter grade derived from a session's overall attention.
type Grade struct {
	Grade string `json:"grade"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Summary carries aggregate counts for an attention report.
type Summary struct {
	TotalSessions         int       `json:"total_sessions"`
	TotalParticipants     int       `json:"total_participants"`
	AverageAttentionScore int       `json:"average_attention_score"`
	GeneratedAt           time.Time `json:"generated_at"`
}

// AggregateReport is the response body for the attention-report endpoint.
type AggregateReport struct {
	Success   bool                                                `json:"success"`
	Data      map[string]map[string]attention.ParticipantSnapshot `json:"data"`
	Summary   Summary                                             `json:"summary"`
	Timestamp time.Time                                           `json:"timestamp"`
}

// ParticipantDetail is one participant's row in a session report.
type ParticipantDetail struct {
	ParticipantID      string    `json:"participant_id"`
	Name               string    `json:"name"`
	TotalFrames        int       `json:"total_frames"`
	FaceDetectedFrames int       `json:"face_detected_frames"`
	AttentionScore     float64   `json:"attention_score"`
	LastSeen           time.Time `json:"last_seen"`
	SessionStart       time.Time `json:"session_start"`
}

// SessionReport is the response body for a single session's detail report.
type SessionReport struct {
	Success               bool                `json:"success"`
	SessionID             string              `json:"session_id"`
	OverallAttentionScore int                 `json:"overall_attention_score"`
	Grade                 Grade               `json:"grade"`
	Participants          []ParticipantDetail `json:"participants"`
	ParticipantCount      int                 `json:"participant_count"`
	GeneratedAt           time.Time           `json:"generated_at"`
}

// PortInfo reports the resolved listen ports.
type PortInfo struct {
	HTTP      int `json:"http"`
	WebSocket int `json:"websocket"`
}

// Stats is a point-in-time snapshot of service state.
type Stats struct {
	ConnectedClients  int       `json:"connected_clients"`
	ActiveSessions    int       `json:"active_sessions"`
	TotalParticipants int       `json:"total_participants"`
	DetectorAvailable bool      `json:"detector_available"`
	UptimeSeconds     int       `json:"uptime_seconds"`
	ServerTime        time.Time `json:"server_time"`
	Ports             PortInfo  `json:"ports"`
}

// Service derives reports from the attention store and connection registry.
type Service struct {
	store             *attention.Store
	registry          *stream.Registry
	detectorAvailable bool
	ports             PortInfo
	started           time.Time
}

// NewService creates a report service over the given store and registry.
func NewService(store *attention.Store, registry *stream.Registry, detectorAvailable bool, ports PortInfo) *Service {
	return &Service{
		store:             store,
		registry:          registry,
		detectorAvailable: detectorAvailable,
		ports:             ports,
		started:           time.Now(),
	}
}

// Aggregate returns the full attention report, optionally narrowed to one
// session. An unknown filter yields the unfiltered report rather than an
// error.
func (s *Service) Aggregate(sessionFilter string) AggregateReport {
	data := s.store.Snapshot()
	if sessionFilter != "" {
		if session, ok := data[sessionFilter]; ok {
			data = map[string]map[string]attention.ParticipantSnapshot{sessionFilter: session}
		}
	}

	totalParticipants := 0
	var scores []float64
	for _, session := range data {
		totalParticipants += len(session)
		for _, p := range session {
			if p.AttentionScore > 0 {
				scores = append(scores, p.AttentionScore)
			}
		}
	}

	now := time.Now()
	return AggregateReport{
		Success: true,
		Data:    data,
		Summary: Summary{
			TotalSessions:         len(data),
			TotalParticipants:     totalParticipants,
			AverageAttentionScore: roundMean(scores),
			GeneratedAt:           now,
		},
		Timestamp: now,
	}
}

// Session builds the detail report for one session. The second return value
// is false when the session does not exist.
func (s *Service) Session(sessionID string) (SessionReport, bool) {
	session, ok := s.store.SnapshotSession(sessionID)
	if !ok {
		return SessionReport{}, false
	}

	participants := make([]ParticipantDetail, 0, len(session))
	var scores []float64
	for pid, p := range session {
		participants = append(participants, ParticipantDetail{
			ParticipantID:      pid,
			Name:               p.Name,
			TotalFrames:        p.TotalFrames,
			FaceDetectedFrames: p.FaceDetectedFrames,
			AttentionScore:     p.AttentionScore,
			LastSeen:           p.LastSeen,
			SessionStart:       p.SessionStart,
		})
		scores = append(scores, p.AttentionScore)
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ParticipantID < participants[j].ParticipantID
	})

	overall := 0
	if len(participants) > 0 {
		overall = roundMean(scores)
	}

	return SessionReport{
		Success:               true,
		SessionID:             sessionID,
		OverallAttentionScore: overall,
		Grade:                 gradeFor(overall),
		Participants:          participants,
		ParticipantCount:      len(participants),
		GeneratedAt:           time.Now(),
	}, true
}

// Reset clears one session's data, or everything when sessionID is empty.
// The returned message distinguishes a missing session without signaling an
// error.
func (s *Service) Reset(sessionID string) string {
	if sessionID == "" {
		s.store.ResetAll()
		return "All attention data reset successfully"
	}
	if s.store.ResetSession(sessionID) {
		return fmt.Sprintf("Attention data reset for session %s", sessionID)
	}
	return fmt.Sprintf("Session %s not found", sessionID)
}

// Stats returns a synchronous snapshot of current registry and store state.
func (s *Service) Stats() Stats {
	now := time.Now()
	return Stats{
		ConnectedClients:  s.registry.Count(),
		ActiveSessions:    s.store.SessionCount(),
		TotalParticipants: s.store.ParticipantCount(),
		DetectorAvailable: s.detectorAvailable,
		UptimeSeconds:     int(now.Sub(s.started).Seconds()),
		ServerTime:        now,
		Ports:             s.ports,
	}
}

// gradeFor maps an overall score to a letter grade; boundary scores take the
// higher grade.
func gradeFor(overall int) Grade {
	switch {
	case overall >= 90:
		return Grade{Grade: "A", Label: "Excellent", Color: "#4CAF50"}
	case overall >= 80:
		return Grade{Grade: "B", Label: "Good", Color: "#8BC34A"}
	case overall >= 70:
		return Grade{Grade: "C", Label: "Average", Color: "#FF9800"}
	case overall >= 60:
		return Grade{Grade: "D", Label: "Below Average", Color: "#FF5722"}
	default:
		return Grade{Grade: "F", Label: "Poor", Color: "#F44336"}
	}
}

func roundMean(scores []float64) int {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	return int(math.Round(sum / float64(len(scores))))
}
