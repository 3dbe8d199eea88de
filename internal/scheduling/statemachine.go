package scheduling

import (
	"context"
	"log"

	"tutorhub/internal/notify"
	"tutorhub/internal/profile"
)

// legalEdges is the single authoritative transition table. pending and
// confirmed are non-terminal; completed, cancelled and no_show admit no
// further edges, and nothing transitions back to pending.
var legalEdges = map[Status]map[Status]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusCompleted: true,
		StatusCancelled: true,
		StatusNoShow:    true,
	},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to Status) bool {
	return legalEdges[from][to]
}

// ValidateTransition returns an InvalidTransition error for illegal edges.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return newError(KindInvalidTransition, "cannot transition %s -> %s", from, to)
	}
	return nil
}

// TransitionMeta carries who requested a transition and why.
type TransitionMeta struct {
	Actor         string
	Reason        string
	AutoCompleted bool
}

// Machine applies validated transitions to stored sessions. The status write
// is a compare-and-set against the caller's observed status, so concurrent
// actors racing on the same session resolve to exactly one winner.
type Machine struct {
	sessions       Repository
	profiles       profile.Store
	notifier       notify.Notifier
	clock          Clock
	trainingPoints int
}

// NewMachine wires the state machine to its collaborators. trainingPoints is
// the fixed per-session credit awarded to each student on completion.
func NewMachine(sessions Repository, profiles profile.Store, notifier notify.Notifier, clock Clock, trainingPoints int) *Machine {
	return &Machine{
		sessions:       sessions,
		profiles:       profiles,
		notifier:       notifier,
		clock:          clock,
		trainingPoints: trainingPoints,
	}
}

// Transition drives sess from its current status to target. On success the
// updated session is returned and the target state's side effects have run:
// completion increments counters and awards training points, no_show and
// cancellation emit their notification events. A losing CAS maps to
// InvalidTransition without mutating the record.
func (m *Machine) Transition(ctx context.Context, sess *Session, target Status, meta TransitionMeta) (*Session, error) {
	if err := ValidateTransition(sess.Status, target); err != nil {
		return nil, err
	}

	upd := StatusUpdate{AutoCompleted: meta.AutoCompleted}
	if target == StatusCancelled {
		now := m.clock.Now()
		upd.CancelledBy = meta.Actor
		upd.CancelReason = meta.Reason
		upd.CancelledAt = &now
	}

	ok, err := m.sessions.CompareAndSetStatus(ctx, sess.ID, sess.Status, target, upd)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, gerr := m.sessions.Get(ctx, sess.ID)
		if gerr != nil {
			return nil, gerr
		}
		return nil, newError(KindInvalidTransition, "session %s is %s, cannot transition to %s", sess.ID, current.Status, target)
	}

	updated, err := m.sessions.Get(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	var sideErr error
	switch target {
	case StatusConfirmed:
		for _, studentID := range updated.Students() {
			m.emit(ctx, studentID, notify.EventSessionConfirmed, updated)
		}
	case StatusCompleted:
		sideErr = m.applyCompletionStats(ctx, updated)
		m.emit(ctx, updated.TutorID, notify.EventSessionCompleted, updated)
	case StatusCancelled:
		m.emit(ctx, updated.TutorID, notify.EventSessionCancelled, updated)
		for _, studentID := range updated.Students() {
			if studentID != meta.Actor {
				m.emit(ctx, studentID, notify.EventSessionCancelled, updated)
			}
		}
	case StatusNoShow:
		m.emit(ctx, updated.TutorID, notify.EventSessionNoShow, updated)
		for _, studentID := range updated.Students() {
			m.emit(ctx, studentID, notify.EventSessionNoShow, updated)
		}
	}
	return updated, sideErr
}

// applyCompletionStats increments the tutor's completed counter and, for
// every student bound to the session, the student counter plus the fixed
// training-point credit with its history entry. Each student is processed
// even when an earlier one fails; the first error is reported.
func (m *Machine) applyCompletionStats(ctx context.Context, sess *Session) error {
	var firstErr error
	if err := m.profiles.IncrementTutorCompleted(ctx, sess.TutorID); err != nil {
		firstErr = err
	}
	now := m.clock.Now()
	for _, studentID := range sess.Students() {
		if err := m.profiles.IncrementStudentCompleted(ctx, studentID); err != nil && firstErr == nil {
			firstErr = err
		}
		err := m.profiles.AwardTrainingPoints(ctx, profile.PointAward{
			StudentID: studentID,
			Amount:    m.trainingPoints,
			Reason:    "session completed",
			SessionID: sess.ID,
			AwardedAt: now,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Machine) emit(ctx context.Context, userID, eventType string, sess *Session) {
	evt := notify.Event{
		UserID: userID,
		Type:   eventType,
		Payload: map[string]any{
			"session_id": sess.ID,
			"date":       sess.Window.Date,
			"start":      sess.Window.StartClock(),
			"end":        sess.Window.EndClock(),
		},
		At: m.clock.Now(),
	}
	if err := m.notifier.Notify(ctx, evt); err != nil {
		log.Printf("notify %s of %s failed: %v", userID, eventType, err)
	}
}
