package profile

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for dev mode and tests.
type MemoryStore struct {
	mu       sync.Mutex
	tutors   map[string]*TutorProfile
	students map[string]*StudentProfile
	history  []PointAward
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tutors:   make(map[string]*TutorProfile),
		students: make(map[string]*StudentProfile),
	}
}

// PutTutor seeds or replaces a tutor profile.
func (s *MemoryStore) PutTutor(p TutorProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tutors[p.UserID] = &p
}

// PutStudent seeds or replaces a student profile.
func (s *MemoryStore) PutStudent(p StudentProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[p.UserID] = &p
}

// Tutor returns a copy of the tutor profile, or nil when absent.
func (s *MemoryStore) Tutor(_ context.Context, userID string) (*TutorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.tutors[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// Student returns a copy of the student profile, or nil when absent.
func (s *MemoryStore) Student(_ context.Context, userID string) (*StudentProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.students[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

// IncrementTutorCompleted bumps the tutor's counters.
func (s *MemoryStore) IncrementTutorCompleted(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.tutors[userID]; ok {
		p.CompletedSessions++
		p.TotalSessions++
	}
	return nil
}

// IncrementStudentCompleted bumps the student's counter.
func (s *MemoryStore) IncrementStudentCompleted(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.students[userID]; ok {
		p.CompletedSessions++
	}
	return nil
}

// AwardTrainingPoints adds to the balance and records the history entry.
func (s *MemoryStore) AwardTrainingPoints(_ context.Context, award PointAward) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	if p, ok := s.students[award.StudentID]; ok {
		p.TrainingPoints += award.Amount
	}
	s.history = append(s.history, award)
	return nil
}

// History returns a copy of all recorded awards.
func (s *MemoryStore) History() []PointAward {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PointAward, len(s.history))
	copy(out, s.history)
	return out
}
