package scheduling

import (
	"context"
	"log"

	"tutorhub/internal/notify"
)

// Registrar admits students into capacity-limited open sessions. The
// capacity and uniqueness checks ride on the repository's atomic conditional
// append, so two concurrent registrants for the last slot resolve to exactly
// one success and one Full rejection.
type Registrar struct {
	sessions  Repository
	conflicts *ConflictChecker
	machine   *Machine
	notifier  notify.Notifier
	clock     Clock
}

// NewRegistrar wires the registrar.
func NewRegistrar(sessions Repository, conflicts *ConflictChecker, machine *Machine, notifier notify.Notifier, clock Clock) *Registrar {
	return &Registrar{
		sessions:  sessions,
		conflicts: conflicts,
		machine:   machine,
		notifier:  notifier,
		clock:     clock,
	}
}

// Register enrolls studentID into the open session. Error kinds: NotFound,
// NotOpen, AlreadyRegistered, Full, ScheduleConflict. For single-slot
// sessions a successful registration also binds the primary student and
// confirms the session, collapsing it into a direct booking.
func (r *Registrar) Register(ctx context.Context, sessionID, studentID string) (*Session, error) {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsOpen || sess.Status.Terminal() {
		return nil, newError(KindNotOpen, "session %s is not open for registration", sessionID)
	}

	conflict, err := r.conflicts.HasConflict(ctx, studentID, sess.Window, sessionID)
	if err != nil {
		return nil, err
	}
	if conflict {
		registrationsTotal.WithLabelValues("schedule_conflict").Inc()
		return nil, newError(KindScheduleConflict, "student %s has an overlapping session on %s", studentID, sess.Window.Date)
	}

	reg := Registration{StudentID: studentID, RegisteredAt: r.clock.Now()}
	ok, err := r.sessions.TryAppendRegistrant(ctx, sessionID, reg)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, r.rejectionError(ctx, sessionID, studentID)
	}

	sess, err = r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.MaxParticipants == 1 {
		if err := r.sessions.SetPrimaryStudent(ctx, sessionID, studentID); err != nil {
			return nil, err
		}
		sess.StudentID = studentID
		if sess.Status == StatusPending {
			sess, err = r.machine.Transition(ctx, sess, StatusConfirmed, TransitionMeta{Actor: studentID})
			if err != nil {
				return nil, err
			}
		}
	}

	registrationsTotal.WithLabelValues("ok").Inc()
	evt := notify.Event{
		UserID: sess.TutorID,
		Type:   notify.EventStudentRegistered,
		Payload: map[string]any{
			"session_id": sess.ID,
			"student_id": studentID,
			"date":       sess.Window.Date,
			"start":      sess.Window.StartClock(),
		},
		At: r.clock.Now(),
	}
	if err := r.notifier.Notify(ctx, evt); err != nil {
		log.Printf("notify tutor %s of registration failed: %v", sess.TutorID, err)
	}
	return sess, nil
}

// rejectionError re-reads the session to turn a rejected conditional append
// into the precise error kind.
func (r *Registrar) rejectionError(ctx context.Context, sessionID, studentID string) error {
	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	switch {
	case !sess.IsOpen:
		registrationsTotal.WithLabelValues("not_open").Inc()
		return newError(KindNotOpen, "session %s is not open for registration", sessionID)
	case sess.HasStudent(studentID):
		registrationsTotal.WithLabelValues("already_registered").Inc()
		return newError(KindAlreadyRegistered, "student %s is already registered for session %s", studentID, sessionID)
	default:
		registrationsTotal.WithLabelValues("full").Inc()
		return newError(KindFull, "session %s is full (%d/%d)", sessionID, len(sess.Registered), sess.MaxParticipants)
	}
}
