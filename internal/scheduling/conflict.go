package scheduling

import "context"

// ConflictChecker detects time conflicts against a party's existing
// non-terminal sessions.
type ConflictChecker struct {
	sessions Repository
}

// NewConflictChecker creates a checker over the session repository.
func NewConflictChecker(sessions Repository) *ConflictChecker {
	return &ConflictChecker{sessions: sessions}
}

// HasConflict reports whether userID already has a pending or confirmed
// session overlapping window on its date. Membership counts whether the
// party is the tutor, the primary student, or a registrant. excludeID skips
// the session being modified when checking an update.
//
// The check is advisory: a registration racing between this check and the
// capacity write can still slip through for the same student on a different
// overlapping session. That relaxed guarantee is deliberate; no per-student
// lock is held.
func (c *ConflictChecker) HasConflict(ctx context.Context, userID string, window TimeWindow, excludeID string) (bool, error) {
	existing, err := c.sessions.ListActiveForParty(ctx, userID, window.Date)
	if err != nil {
		return false, err
	}
	for _, s := range existing {
		if s.ID == excludeID {
			continue
		}
		if s.Window.Overlaps(window) {
			return true, nil
		}
	}
	return false, nil
}
