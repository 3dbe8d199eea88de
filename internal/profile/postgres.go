package profile

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore persists profiles in Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Tutor returns a tutor profile by user id.
func (s *PostgresStore) Tutor(ctx context.Context, userID string) (*TutorProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, subjects, expertise, average_rating, completed_sessions,
		       total_sessions, department, faculty, teaching_style, availability
		FROM tutor_profiles WHERE user_id = $1
	`, userID)
	var p TutorProfile
	err := row.Scan(&p.UserID, pq.Array(&p.Subjects), pq.Array(&p.Expertise),
		&p.AverageRating, &p.CompletedSessions, &p.TotalSessions,
		&p.Department, &p.Faculty, &p.TeachingStyle, pq.Array(&p.Availability))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Student returns a student profile by user id.
func (s *PostgresStore) Student(ctx context.Context, userID string) (*StudentProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, department, faculty, learning_style, schedule_preference,
		       completed_sessions, training_points
		FROM student_profiles WHERE user_id = $1
	`, userID)
	var p StudentProfile
	err := row.Scan(&p.UserID, &p.Department, &p.Faculty, &p.LearningStyle,
		pq.Array(&p.SchedulePreference), &p.CompletedSessions, &p.TrainingPoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// IncrementTutorCompleted bumps a tutor's completed-session counter in place.
func (s *PostgresStore) IncrementTutorCompleted(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tutor_profiles
		SET completed_sessions = completed_sessions + 1,
		    total_sessions = total_sessions + 1,
		    updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	return err
}

// IncrementStudentCompleted bumps a student's completed-session counter.
func (s *PostgresStore) IncrementStudentCompleted(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE student_profiles
		SET completed_sessions = completed_sessions + 1, updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	return err
}

// AwardTrainingPoints adds points to the student's balance and records the
// history entry in the same transaction.
func (s *PostgresStore) AwardTrainingPoints(ctx context.Context, award PointAward) error {
	if award.ID == "" {
		award.ID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE student_profiles
		SET training_points = training_points + $2, updated_at = NOW()
		WHERE user_id = $1
	`, award.StudentID, award.Amount); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO training_point_history (id, student_id, amount, reason, session_id, awarded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, award.ID, award.StudentID, award.Amount, award.Reason, award.SessionID, award.AwardedAt); err != nil {
		return err
	}
	return tx.Commit()
}
