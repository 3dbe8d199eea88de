package scheduling

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository persists sessions in Postgres. The registrant list is a
// jsonb array on the session row so the capacity guard and the append are
// one statement; status changes are guarded updates on the status column.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `
	id, tutor_id, student_id, subject, is_open, max_participants,
	registered_students, session_date, start_min, end_min, duration_minutes,
	starts_at, ends_at, status, auto_completed,
	cancelled_by, cancel_reason, cancelled_at, created_at, updated_at`

// Create inserts a new session row.
func (r *PostgresRepository) Create(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	registered, err := json.Marshal(s.Registered)
	if err != nil {
		return err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (
			id, tutor_id, student_id, subject, is_open, max_participants,
			registered_students, session_date, start_min, end_min,
			duration_minutes, starts_at, ends_at, status, auto_completed,
			cancelled_by, cancel_reason, cancelled_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		RETURNING created_at, updated_at
	`, s.ID, s.TutorID, nullable(s.StudentID), s.Subject, s.IsOpen, s.MaxParticipants,
		registered, s.Window.Date, s.Window.Start, s.Window.End,
		s.DurationMinutes, s.StartsAt, s.EndsAt, string(s.Status), s.AutoCompleted,
		nullable(s.CancelledBy), nullable(s.CancelReason), s.CancelledAt)
	return row.Scan(&s.CreatedAt, &s.UpdatedAt)
}

// Get returns the session or a NotFound error.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(KindNotFound, "session %s", id)
		}
		return nil, err
	}
	return s, nil
}

// ListActiveForParty returns non-terminal sessions on date involving userID
// as tutor, primary student, or registrant.
func (r *PostgresRepository) ListActiveForParty(ctx context.Context, userID, date string) ([]*Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE session_date = $2
		  AND status IN ('pending', 'confirmed')
		  AND (
			tutor_id = $1
			OR student_id = $1
			OR registered_students @> jsonb_build_array(jsonb_build_object('student_id', $1::text))
		  )
	`, userID, date)
}

// ListByTutor returns all sessions owned by tutorID, newest first.
func (r *PostgresRepository) ListByTutor(ctx context.Context, tutorID string) ([]*Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions WHERE tutor_id = $1
		ORDER BY starts_at DESC
	`, tutorID)
}

// ListByStudent returns all sessions studentID is bound to, newest first.
func (r *PostgresRepository) ListByStudent(ctx context.Context, studentID string) ([]*Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE student_id = $1
		   OR registered_students @> jsonb_build_array(jsonb_build_object('student_id', $1::text))
		ORDER BY starts_at DESC
	`, studentID)
}

// ListOpen returns open sessions still accepting registrants.
func (r *PostgresRepository) ListOpen(ctx context.Context) ([]*Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE is_open = TRUE
		  AND status IN ('pending', 'confirmed')
		  AND jsonb_array_length(registered_students) < max_participants
		ORDER BY starts_at
	`)
}

// TryAppendRegistrant appends reg in a single guarded update. The open,
// no-duplicate, and capacity conditions are evaluated by the database
// atomically with the write, so concurrent registrants for the last slot
// resolve to exactly one success.
func (r *PostgresRepository) TryAppendRegistrant(ctx context.Context, sessionID string, reg Registration) (bool, error) {
	member, err := json.Marshal([]map[string]string{{"student_id": reg.StudentID}})
	if err != nil {
		return false, err
	}
	entry, err := json.Marshal([]Registration{reg})
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET registered_students = registered_students || $3::jsonb,
		    updated_at = NOW()
		WHERE id = $1
		  AND is_open = TRUE
		  AND NOT (registered_students @> $2::jsonb)
		  AND jsonb_array_length(registered_students) < max_participants
	`, sessionID, member, entry)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetPrimaryStudent binds the primary participant slot.
func (r *PostgresRepository) SetPrimaryStudent(ctx context.Context, sessionID, studentID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET student_id = $2, updated_at = NOW() WHERE id = $1
	`, sessionID, studentID)
	return err
}

// CompareAndSetStatus moves from → to with the status column as the guard.
func (r *PostgresRepository) CompareAndSetStatus(ctx context.Context, sessionID string, from, to Status, upd StatusUpdate) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = $3,
		    auto_completed = $4,
		    cancelled_by = $5,
		    cancel_reason = $6,
		    cancelled_at = $7,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, sessionID, string(from), string(to), upd.AutoCompleted,
		nullable(upd.CancelledBy), nullable(upd.CancelReason), upd.CancelledAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListConfirmedEndedBefore returns confirmed sessions with ends_at <= t.
func (r *PostgresRepository) ListConfirmedEndedBefore(ctx context.Context, t time.Time) ([]*Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions WHERE status = 'confirmed' AND ends_at <= $1
	`, t)
}

// ListConfirmedStartedBefore returns confirmed sessions with starts_at
// strictly before t.
func (r *PostgresRepository) ListConfirmedStartedBefore(ctx context.Context, t time.Time) ([]*Session, error) {
	return r.list(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions WHERE status = 'confirmed' AND starts_at < $1
	`, t)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		s          Session
		studentID  sql.NullString
		registered []byte
		status     string
		cancelBy   sql.NullString
		cancelWhy  sql.NullString
		cancelAt   sql.NullTime
	)
	err := row.Scan(&s.ID, &s.TutorID, &studentID, &s.Subject, &s.IsOpen,
		&s.MaxParticipants, &registered, &s.Window.Date, &s.Window.Start,
		&s.Window.End, &s.DurationMinutes, &s.StartsAt, &s.EndsAt, &status,
		&s.AutoCompleted, &cancelBy, &cancelWhy, &cancelAt,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(registered, &s.Registered); err != nil {
		return nil, err
	}
	s.StudentID = studentID.String
	s.Status = Status(status)
	s.CancelledBy = cancelBy.String
	s.CancelReason = cancelWhy.String
	if cancelAt.Valid {
		at := cancelAt.Time
		s.CancelledAt = &at
	}
	return &s, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
