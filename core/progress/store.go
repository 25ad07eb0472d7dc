package progress

import (
	"math"
	"sync"
)

// Snapshot is the progress of one learner in one course.
type Snapshot struct {
	CompletionPercentage float64  `json:"completionPercentage"`
	CompletedLessons     []string `json:"completedLessons"`
	TotalTimeSpent       float64  `json:"totalTimeSpent"`
}

// Completed reports whether lessonID is in the snapshot.
func (s Snapshot) Completed(lessonID string) bool {
	for _, id := range s.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

func (s Snapshot) clone() Snapshot {
	s.CompletedLessons = append([]string(nil), s.CompletedLessons...)
	return s
}

// Provider is what the player reads and writes progress through.
type Provider interface {
	Snapshot(courseID string) Snapshot
	MarkComplete(courseID, lessonID string, totalLessons int, spent float64) Snapshot
	Replace(courseID string, s Snapshot)
}

// Store keeps snapshots in memory for the lifetime of the process.
type Store struct {
	mu      sync.RWMutex
	courses map[string]Snapshot
}

func NewStore() *Store {
	return &Store{courses: make(map[string]Snapshot)}
}

func (s *Store) Snapshot(courseID string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.courses[courseID].clone()
}

// MarkComplete adds lessonID to the course and recomputes the completion
// percentage against totalLessons. Marking a lesson twice only adds the
// time spent.
func (s *Store) MarkComplete(courseID, lessonID string, totalLessons int, spent float64) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.courses[courseID].clone()
	if !snap.Completed(lessonID) {
		snap.CompletedLessons = append(snap.CompletedLessons, lessonID)
	}
	snap.TotalTimeSpent += spent
	snap.CompletionPercentage = percent(len(snap.CompletedLessons), totalLessons)

	s.courses[courseID] = snap
	return snap.clone()
}

func (s *Store) Replace(courseID string, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[courseID] = snap.clone()
}

func percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	if done > total {
		done = total
	}
	return math.Round(float64(done) / float64(total) * 100)
}
