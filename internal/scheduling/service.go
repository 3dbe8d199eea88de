package scheduling

import (
	"context"
	"errors"
	"log"

	"tutorhub/internal/notify"
)

// Roles carried by authenticated actors.
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
	RoleAdmin   = "admin"
)

// Actor identifies who is invoking an operation.
type Actor struct {
	UserID string
	Role   string
}

// OpenSessionInput describes a new session.
type OpenSessionInput struct {
	StudentID       string // non-empty for a direct booking
	Subject         string
	Date            string // YYYY-MM-DD
	Start           string // HH:MM
	End             string // HH:MM
	IsOpen          bool
	MaxParticipants int
}

// Service exposes the scheduling engine's caller-facing operations.
type Service struct {
	sessions  Repository
	conflicts *ConflictChecker
	registrar *Registrar
	machine   *Machine
	notifier  notify.Notifier
	clock     Clock
}

// NewService wires the service.
func NewService(sessions Repository, conflicts *ConflictChecker, registrar *Registrar, machine *Machine, notifier notify.Notifier, clock Clock) *Service {
	return &Service{
		sessions:  sessions,
		conflicts: conflicts,
		registrar: registrar,
		machine:   machine,
		notifier:  notifier,
		clock:     clock,
	}
}

// OpenSession creates a pending session owned by tutorID after checking the
// tutor's own calendar for overlaps.
func (s *Service) OpenSession(ctx context.Context, tutorID string, in OpenSessionInput) (*Session, error) {
	window, err := NewTimeWindow(in.Date, in.Start, in.End)
	if err != nil {
		return nil, err
	}
	maxParticipants := in.MaxParticipants
	if maxParticipants < 1 {
		maxParticipants = 1
	}
	if in.IsOpen && in.StudentID != "" {
		return nil, errors.New("an open session cannot have an assigned student")
	}

	conflict, err := s.conflicts.HasConflict(ctx, tutorID, window, "")
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, newError(KindScheduleConflict, "tutor %s has an overlapping session on %s", tutorID, window.Date)
	}

	now := s.clock.Now()
	loc := s.clock.Location()
	sess := &Session{
		TutorID:         tutorID,
		StudentID:       in.StudentID,
		Subject:         in.Subject,
		IsOpen:          in.IsOpen,
		MaxParticipants: maxParticipants,
		Registered:      []Registration{},
		Window:          window,
		DurationMinutes: window.DurationMinutes(),
		StartsAt:        window.StartAt(loc),
		EndsAt:          window.EndAt(loc),
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	if sess.StudentID != "" {
		evt := notify.Event{
			UserID: sess.StudentID,
			Type:   notify.EventSessionBooked,
			Payload: map[string]any{
				"session_id": sess.ID,
				"tutor_id":   sess.TutorID,
				"date":       sess.Window.Date,
				"start":      sess.Window.StartClock(),
			},
			At: now,
		}
		if err := s.notifier.Notify(ctx, evt); err != nil {
			log.Printf("notify student %s of booking failed: %v", sess.StudentID, err)
		}
	}
	return sess, nil
}

// RegisterForSession enrolls the acting student into an open session.
func (s *Service) RegisterForSession(ctx context.Context, sessionID string, actor Actor) (*Session, error) {
	return s.registrar.Register(ctx, sessionID, actor.UserID)
}

// ConfirmSession moves a pending session to confirmed. Only the owning
// tutor or an admin may confirm.
func (s *Service) ConfirmSession(ctx context.Context, sessionID string, actor Actor) (*Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleAdmin && sess.TutorID != actor.UserID {
		return nil, newError(KindUnauthorized, "only the owning tutor may confirm session %s", sessionID)
	}
	return s.machine.Transition(ctx, sess, StatusConfirmed, TransitionMeta{Actor: actor.UserID})
}

// CompleteSession marks a confirmed session completed by explicit tutor
// action.
func (s *Service) CompleteSession(ctx context.Context, sessionID string, actor Actor) (*Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleAdmin && sess.TutorID != actor.UserID {
		return nil, newError(KindUnauthorized, "only the owning tutor may complete session %s", sessionID)
	}
	return s.machine.Transition(ctx, sess, StatusCompleted, TransitionMeta{Actor: actor.UserID})
}

// CancelSession cancels a pending or confirmed session, recording the actor
// and reason. Tutors cancel their own sessions, bound students theirs,
// admins any.
func (s *Service) CancelSession(ctx context.Context, sessionID string, actor Actor, reason string) (*Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	allowed := actor.Role == RoleAdmin ||
		sess.TutorID == actor.UserID ||
		sess.HasStudent(actor.UserID)
	if !allowed {
		return nil, newError(KindUnauthorized, "user %s is not a party to session %s", actor.UserID, sessionID)
	}
	return s.machine.Transition(ctx, sess, StatusCancelled, TransitionMeta{Actor: actor.UserID, Reason: reason})
}

// GetSession returns a session by id.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	return s.sessions.Get(ctx, id)
}

// SessionsForTutor lists a tutor's sessions.
func (s *Service) SessionsForTutor(ctx context.Context, tutorID string) ([]*Session, error) {
	return s.sessions.ListByTutor(ctx, tutorID)
}

// SessionsForStudent lists the sessions a student is bound to.
func (s *Service) SessionsForStudent(ctx context.Context, studentID string) ([]*Session, error) {
	return s.sessions.ListByStudent(ctx, studentID)
}

// OpenSessions lists open sessions still accepting registrants.
func (s *Service) OpenSessions(ctx context.Context) ([]*Session, error) {
	return s.sessions.ListOpen(ctx)
}

// HasConflict exposes the conflict check for schedule-update validation.
func (s *Service) HasConflict(ctx context.Context, userID string, window TimeWindow, excludeID string) (bool, error) {
	return s.conflicts.HasConflict(ctx, userID, window, excludeID)
}
