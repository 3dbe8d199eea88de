package scheduling

import (
	"context"
	"time"
)

// StatusUpdate carries the fields written alongside a status change.
type StatusUpdate struct {
	AutoCompleted bool
	CancelledBy   string
	CancelReason  string
	CancelledAt   *time.Time
}

// Repository is the session store. Implementations must evaluate the
// conditional writes (TryAppendRegistrant, CompareAndSetStatus) as single
// atomic operations at the storage layer; callers never read-then-write
// around them.
type Repository interface {
	Create(ctx context.Context, s *Session) error

	// Get returns the session or a NotFound error.
	Get(ctx context.Context, id string) (*Session, error)

	// ListActiveForParty returns non-terminal (pending or confirmed)
	// sessions on date in which userID participates as tutor, primary
	// student, or registrant.
	ListActiveForParty(ctx context.Context, userID, date string) ([]*Session, error)

	ListByTutor(ctx context.Context, tutorID string) ([]*Session, error)
	ListByStudent(ctx context.Context, studentID string) ([]*Session, error)
	ListOpen(ctx context.Context) ([]*Session, error)

	// TryAppendRegistrant appends reg only if the session is open, the
	// student is not already registered, and the list is below capacity —
	// all evaluated atomically with the write. Returns false when any
	// guard fails.
	TryAppendRegistrant(ctx context.Context, sessionID string, reg Registration) (bool, error)

	// SetPrimaryStudent binds the primary participant slot. Used when a
	// single-slot open session collapses into a direct booking.
	SetPrimaryStudent(ctx context.Context, sessionID, studentID string) error

	// CompareAndSetStatus moves the session from → to atomically, applying
	// upd. Returns false without writing when the stored status is not
	// from.
	CompareAndSetStatus(ctx context.Context, sessionID string, from, to Status, upd StatusUpdate) (bool, error)

	// ListConfirmedEndedBefore returns confirmed sessions whose end
	// instant is at or before t.
	ListConfirmedEndedBefore(ctx context.Context, t time.Time) ([]*Session, error)

	// ListConfirmedStartedBefore returns confirmed sessions whose start
	// instant is strictly before t. The sweeper relies on the strictness:
	// a session exactly at the grace boundary is not yet a no-show.
	ListConfirmedStartedBefore(ctx context.Context, t time.Time) ([]*Session, error)
}
