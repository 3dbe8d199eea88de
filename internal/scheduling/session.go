package scheduling

import "time"

// Status is a session lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Registration is one entry in an open session's registrant list.
type Registration struct {
	StudentID    string    `json:"student_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Session is a scheduled or open tutoring engagement.
type Session struct {
	ID              string
	TutorID         string
	StudentID       string // primary participant; empty for open sessions awaiting registrants
	Subject         string
	IsOpen          bool
	MaxParticipants int
	Registered      []Registration
	Window          TimeWindow
	DurationMinutes int
	StartsAt        time.Time // Window.Start resolved in the canonical timezone
	EndsAt          time.Time
	Status          Status
	AutoCompleted   bool
	CancelledBy     string
	CancelReason    string
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasStudent reports whether id is bound to the session, either as the
// primary participant or through the registrant list.
func (s *Session) HasStudent(id string) bool {
	if s.StudentID == id && id != "" {
		return true
	}
	for _, r := range s.Registered {
		if r.StudentID == id {
			return true
		}
	}
	return false
}

// Students returns every student bound to the session, primary first,
// without duplicates.
func (s *Session) Students() []string {
	var out []string
	if s.StudentID != "" {
		out = append(out, s.StudentID)
	}
	for _, r := range s.Registered {
		if r.StudentID != s.StudentID {
			out = append(out, r.StudentID)
		}
	}
	return out
}
