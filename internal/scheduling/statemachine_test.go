package scheduling

import (
	"context"
	"math/rand"
	"testing"

	"tutorhub/internal/notify"
	"tutorhub/internal/profile"
)

var allStatuses = []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

func TestTransitionTable(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusCompleted}: true,
		{StatusConfirmed, StatusCancelled}: true,
		{StatusConfirmed, StatusNoShow}:    true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := legal[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
			err := ValidateTransition(from, to)
			if want && err != nil {
				t.Errorf("ValidateTransition(%s, %s) unexpected error: %v", from, to, err)
			}
			if !want && KindOf(err) != KindInvalidTransition {
				t.Errorf("ValidateTransition(%s, %s) = %v, want InvalidTransition", from, to, err)
			}
		}
	}
}

func TestTerminalStatesAdmitNoEdges(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		if !from.Terminal() {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range allStatuses {
			if CanTransition(from, to) {
				t.Errorf("terminal %s must not transition to %s", from, to)
			}
		}
	}
	for _, s := range []Status{StatusPending, StatusConfirmed} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

// TestArbitraryTransitionSequences drives sessions through random transition
// requests and checks the status only ever follows legal edges.
func TestArbitraryTransitionSequences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		sess := env.createSession(t, func(s *Session) {
			s.StudentID = "student-1"
		})
		for step := 0; step < 8; step++ {
			before, err := env.sessions.Get(ctx, sess.ID)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			target := allStatuses[rng.Intn(len(allStatuses))]
			_, err = env.machine.Transition(ctx, before, target, TransitionMeta{Actor: "tester"})
			after, gerr := env.sessions.Get(ctx, sess.ID)
			if gerr != nil {
				t.Fatalf("get after: %v", gerr)
			}
			if err != nil {
				if after.Status != before.Status {
					t.Fatalf("failed transition %s -> %s mutated status to %s", before.Status, target, after.Status)
				}
				continue
			}
			if !CanTransition(before.Status, target) {
				t.Fatalf("illegal transition %s -> %s succeeded", before.Status, target)
			}
			if after.Status != target {
				t.Fatalf("transition to %s left status %s", target, after.Status)
			}
		}
	}
}

func TestCancellationRecordsMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := env.createSession(t, func(s *Session) {
		s.StudentID = "student-1"
	})

	updated, err := env.machine.Transition(ctx, sess, StatusCancelled, TransitionMeta{
		Actor:  "student-1",
		Reason: "sick",
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.CancelledBy != "student-1" || updated.CancelReason != "sick" {
		t.Errorf("cancellation metadata = %q/%q", updated.CancelledBy, updated.CancelReason)
	}
	if updated.CancelledAt == nil || !updated.CancelledAt.Equal(env.clock.Now()) {
		t.Errorf("cancelled_at = %v, want clock now", updated.CancelledAt)
	}
}

func TestCompletionAppliesStatsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := env.createSession(t, func(s *Session) {
		s.StudentID = "student-1"
		s.IsOpen = true
		s.MaxParticipants = 3
		s.Registered = []Registration{
			{StudentID: "student-1", RegisteredAt: env.clock.Now()},
			{StudentID: "student-2", RegisteredAt: env.clock.Now()},
		}
	})
	env.profiles.PutTutor(profile.TutorProfile{UserID: "tutor-1"})
	env.profiles.PutStudent(profile.StudentProfile{UserID: "student-1"})
	env.profiles.PutStudent(profile.StudentProfile{UserID: "student-2"})

	sess, err := env.machine.Transition(ctx, sess, StatusConfirmed, TransitionMeta{Actor: "tutor-1"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := env.machine.Transition(ctx, sess, StatusCompleted, TransitionMeta{Actor: "tutor-1"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	tutor, _ := env.profiles.Tutor(ctx, "tutor-1")
	if tutor.CompletedSessions != 1 {
		t.Errorf("tutor completed = %d, want 1", tutor.CompletedSessions)
	}
	for _, id := range []string{"student-1", "student-2"} {
		student, _ := env.profiles.Student(ctx, id)
		if student.CompletedSessions != 1 {
			t.Errorf("%s completed = %d, want 1", id, student.CompletedSessions)
		}
		if student.TrainingPoints != testTrainingPoints {
			t.Errorf("%s training points = %d, want %d", id, student.TrainingPoints, testTrainingPoints)
		}
	}
	if got := len(env.profiles.History()); got != 2 {
		t.Errorf("history entries = %d, want 2", got)
	}
	for _, award := range env.profiles.History() {
		if award.SessionID != sess.ID || award.Amount != testTrainingPoints {
			t.Errorf("award = %+v", award)
		}
	}

	if got := len(env.notifier.ByType(notify.EventSessionCompleted)); got != 1 {
		t.Errorf("completion events = %d, want 1", got)
	}
}

func TestCancellationChangesNoStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profiles.PutTutor(profile.TutorProfile{UserID: "tutor-1"})
	env.profiles.PutStudent(profile.StudentProfile{UserID: "student-1"})

	sess := env.createSession(t, func(s *Session) {
		s.StudentID = "student-1"
	})
	if _, err := env.machine.Transition(ctx, sess, StatusCancelled, TransitionMeta{Actor: "tutor-1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	tutor, _ := env.profiles.Tutor(ctx, "tutor-1")
	student, _ := env.profiles.Student(ctx, "student-1")
	if tutor.CompletedSessions != 0 || student.CompletedSessions != 0 || student.TrainingPoints != 0 {
		t.Error("cancellation must not change statistics")
	}
}
