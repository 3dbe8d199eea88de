package scheduling

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository for dev mode and tests. All
// conditional writes run under one mutex, giving the same linearization the
// Postgres implementation gets from single-statement guarded updates.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*Session)}
}

func copySession(s *Session) *Session {
	cp := *s
	cp.Registered = make([]Registration, len(s.Registered))
	copy(cp.Registered, s.Registered)
	if s.CancelledAt != nil {
		at := *s.CancelledAt
		cp.CancelledAt = &at
	}
	return &cp
}

// Create stores a new session, assigning an id when absent.
func (r *MemoryRepository) Create(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	r.sessions[s.ID] = copySession(s)
	return nil
}

// Get returns a copy of the session or a NotFound error.
func (r *MemoryRepository) Get(_ context.Context, id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, newError(KindNotFound, "session %s", id)
	}
	return copySession(s), nil
}

// ListActiveForParty returns non-terminal sessions on date involving userID.
func (r *MemoryRepository) ListActiveForParty(_ context.Context, userID, date string) ([]*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.Status.Terminal() || s.Window.Date != date {
			continue
		}
		if s.TutorID == userID || s.HasStudent(userID) {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

// ListByTutor returns all sessions owned by tutorID.
func (r *MemoryRepository) ListByTutor(_ context.Context, tutorID string) ([]*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.TutorID == tutorID {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

// ListByStudent returns all sessions userID is bound to.
func (r *MemoryRepository) ListByStudent(_ context.Context, studentID string) ([]*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.HasStudent(studentID) {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

// ListOpen returns open sessions still accepting registrants.
func (r *MemoryRepository) ListOpen(_ context.Context) ([]*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.IsOpen && !s.Status.Terminal() && len(s.Registered) < s.MaxParticipants {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

// TryAppendRegistrant appends under the capacity and uniqueness guards,
// atomically with the check.
func (r *MemoryRepository) TryAppendRegistrant(_ context.Context, sessionID string, reg Registration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return false, newError(KindNotFound, "session %s", sessionID)
	}
	if !s.IsOpen {
		return false, nil
	}
	for _, existing := range s.Registered {
		if existing.StudentID == reg.StudentID {
			return false, nil
		}
	}
	if len(s.Registered) >= s.MaxParticipants {
		return false, nil
	}
	s.Registered = append(s.Registered, reg)
	s.UpdatedAt = reg.RegisteredAt
	return true, nil
}

// SetPrimaryStudent binds the primary participant slot.
func (r *MemoryRepository) SetPrimaryStudent(_ context.Context, sessionID, studentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return newError(KindNotFound, "session %s", sessionID)
	}
	s.StudentID = studentID
	return nil
}

// CompareAndSetStatus moves from → to atomically.
func (r *MemoryRepository) CompareAndSetStatus(_ context.Context, sessionID string, from, to Status, upd StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return false, newError(KindNotFound, "session %s", sessionID)
	}
	if s.Status != from {
		return false, nil
	}
	s.Status = to
	s.AutoCompleted = upd.AutoCompleted
	s.CancelledBy = upd.CancelledBy
	s.CancelReason = upd.CancelReason
	if upd.CancelledAt != nil {
		at := *upd.CancelledAt
		s.CancelledAt = &at
	}
	return true, nil
}

// ListConfirmedEndedBefore returns confirmed sessions with EndsAt <= t.
func (r *MemoryRepository) ListConfirmedEndedBefore(_ context.Context, t time.Time) ([]*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.Status == StatusConfirmed && !s.EndsAt.After(t) {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

// ListConfirmedStartedBefore returns confirmed sessions with StartsAt
// strictly before t.
func (r *MemoryRepository) ListConfirmedStartedBefore(_ context.Context, t time.Time) ([]*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.Status == StatusConfirmed && s.StartsAt.Before(t) {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}
