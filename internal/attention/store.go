// Package attention holds the in-memory session/participant attention state
// and the frame processing pipeline that feeds it.
package attention

import (
	"math"
	"sync"
	"time"
)

// Participant accumulates per-participant attention metrics within a session.
type Participant struct {
	Name               string
	TotalFrames        int
	FaceDetectedFrames int
	AttentionScore     float64
	LastSeen           time.Time
	SessionStart       time.Time
}

// ParticipantSnapshot is an immutable copy of a Participant handed to callers.
type ParticipantSnapshot struct {
	Name               string    `json:"name"`
	TotalFrames        int       `json:"total_frames"`
	FaceDetectedFrames int       `json:"face_detected_frames"`
	AttentionScore     float64   `json:"attention_score"`
	LastSeen           time.Time `json:"last_seen"`
	SessionStart       time.Time `json:"session_start"`
}

// Store is a concurrency-safe session -> participant -> metrics map. All
// mutation of attention data funnels through it.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Participant
}

// NewStore creates an empty attention store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]map[string]*Participant)}
}

// getOrCreateLocked returns the participant, creating session and participant
// entries on first reference. Caller must hold the write lock.
func (s *Store) getOrCreateLocked(sessionID, participantID, name string, now time.Time) *Participant {
	session, ok := s.sessions[sessionID]
	if !ok {
		session = make(map[string]*Participant)
		s.sessions[sessionID] = session
	}
	p, ok := session[participantID]
	if !ok {
		p = &Participant{Name: name, SessionStart: now}
		session[participantID] = p
	} else if name != "" {
		// last value wins on update
		p.Name = name
	}
	return p
}

// GetOrCreate ensures the session and participant exist and returns the
// participant's current state. Creation is idempotent: concurrent first
// references to the same key yield exactly one participant entry.
func (s *Store) GetOrCreate(sessionID, participantID, name string, now time.Time) ParticipantSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotOf(s.getOrCreateLocked(sessionID, participantID, name, now))
}

// RecordFrame registers one processed frame for a participant, creating the
// session and participant on first reference. It returns a snapshot of the
// participant after the update.
func (s *Store) RecordFrame(sessionID, participantID, name string, faceDetected bool, now time.Time) ParticipantSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreateLocked(sessionID, participantID, name, now)
	p.TotalFrames++
	if faceDetected {
		p.FaceDetectedFrames++
	}
	p.AttentionScore = round2(float64(p.FaceDetectedFrames) / float64(p.TotalFrames) * 100)
	p.LastSeen = now
	return snapshotOf(p)
}

// ResetSession removes one session and reports whether it existed.
func (s *Store) ResetSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}

// ResetAll clears every session and returns how many were removed.
func (s *Store) ResetAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	s.sessions = make(map[string]map[string]*Participant)
	return n
}

// Snapshot returns a deep copy of the full store keyed by session then
// participant.
func (s *Store) Snapshot() map[string]map[string]ParticipantSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]ParticipantSnapshot, len(s.sessions))
	for sid, session := range s.sessions {
		out[sid] = copySession(session)
	}
	return out
}

// SnapshotSession returns a deep copy of one session's participants.
func (s *Store) SnapshotSession(sessionID string) (map[string]ParticipantSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	return copySession(session), true
}

// SessionCount returns the number of active sessions.
func (s *Store) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ParticipantCount returns the number of participants across all sessions.
func (s *Store) ParticipantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, session := range s.sessions {
		total += len(session)
	}
	return total
}

func copySession(session map[string]*Participant) map[string]ParticipantSnapshot {
	out := make(map[string]ParticipantSnapshot, len(session))
	for pid, p := range session {
		out[pid] = snapshotOf(p)
	}
	return out
}

func snapshotOf(p *Participant) ParticipantSnapshot {
	return ParticipantSnapshot{
		Name:               p.Name,
		TotalFrames:        p.TotalFrames,
		FaceDetectedFrames: p.FaceDetectedFrames,
		AttentionScore:     p.AttentionScore,
		LastSeen:           p.LastSeen,
		SessionStart:       p.SessionStart,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
