package profile

import (
	"context"
	"time"
)

// TutorProfile carries the tutor fields the scheduling engine reads or
// increments. The record itself is owned by the profile service.
type TutorProfile struct {
	UserID            string   `json:"user_id"`
	Subjects          []string `json:"subjects"`
	Expertise         []string `json:"expertise"`
	AverageRating     float64  `json:"average_rating"`
	CompletedSessions int      `json:"completed_sessions"`
	TotalSessions     int      `json:"total_sessions"`
	Department        string   `json:"department"`
	Faculty           string   `json:"faculty"`
	TeachingStyle     string   `json:"teaching_style"`
	Availability      []string `json:"availability"` // slot labels, e.g. "mon_morning"
}

// StudentProfile carries the student fields the engine reads or increments.
type StudentProfile struct {
	UserID             string   `json:"user_id"`
	Department         string   `json:"department"`
	Faculty            string   `json:"faculty"`
	LearningStyle      string   `json:"learning_style"`
	SchedulePreference []string `json:"schedule_preference"`
	CompletedSessions  int      `json:"completed_sessions"`
	TrainingPoints     int      `json:"training_points"`
}

// PointAward is one auditable training-point history entry.
type PointAward struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Amount    int       `json:"amount"`
	Reason    string    `json:"reason"`
	SessionID string    `json:"session_id"`
	AwardedAt time.Time `json:"awarded_at"`
}

// Store reads profiles and mutates their counters. All increments are
// atomic at the storage layer so concurrent session completions never lose
// an update.
type Store interface {
	Tutor(ctx context.Context, userID string) (*TutorProfile, error)
	Student(ctx context.Context, userID string) (*StudentProfile, error)
	IncrementTutorCompleted(ctx context.Context, userID string) error
	IncrementStudentCompleted(ctx context.Context, userID string) error
	AwardTrainingPoints(ctx context.Context, award PointAward) error
}
