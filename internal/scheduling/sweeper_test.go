package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tutorhub/internal/notify"
	"tutorhub/internal/profile"
)

// TestSweepCompletesElapsedOpenSession covers the full journey: open session
// for tomorrow 14:00-15:00 with two slots, two students register, a third is
// rejected, and after the window elapses the sweep completes the session and
// credits exactly the registered students.
func TestSweepCompletesElapsedOpenSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profiles.PutTutor(profile.TutorProfile{UserID: "tutor-1"})
	for _, id := range []string{"student-a", "student-b", "student-c"} {
		env.profiles.PutStudent(profile.StudentProfile{UserID: id})
	}

	sess, err := env.service.OpenSession(ctx, "tutor-1", OpenSessionInput{
		Subject:         "calculus",
		Date:            "2026-03-02",
		Start:           "14:00",
		End:             "15:00",
		IsOpen:          true,
		MaxParticipants: 2,
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	if sess, err = env.registrar.Register(ctx, sess.ID, "student-a"); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if sess.Status != StatusPending {
		t.Errorf("status after first registrant = %s, want pending", sess.Status)
	}
	if _, err = env.registrar.Register(ctx, sess.ID, "student-b"); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if _, err = env.registrar.Register(ctx, sess.ID, "student-c"); KindOf(err) != KindFull {
		t.Fatalf("register c: %v, want Full", err)
	}

	if _, err = env.service.ConfirmSession(ctx, sess.ID, Actor{UserID: "tutor-1", Role: RoleTutor}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Tomorrow 15:01, one minute past the end.
	env.clock.Current = time.Date(2026, 3, 2, 15, 1, 0, 0, time.UTC)
	stats := env.sweeper.RunSweepOnce(ctx)
	if stats.Completed != 1 || stats.NoShows != 0 || stats.Errors != 0 {
		t.Fatalf("sweep stats = %+v", stats)
	}

	final, err := env.sessions.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if !final.AutoCompleted {
		t.Error("auto_completed must be set by the sweep")
	}

	for _, id := range []string{"student-a", "student-b"} {
		p, _ := env.profiles.Student(ctx, id)
		if p.TrainingPoints != testTrainingPoints {
			t.Errorf("%s training points = %d, want %d", id, p.TrainingPoints, testTrainingPoints)
		}
		if p.CompletedSessions != 1 {
			t.Errorf("%s completed sessions = %d, want 1", id, p.CompletedSessions)
		}
	}
	c, _ := env.profiles.Student(ctx, "student-c")
	if c.TrainingPoints != 0 || c.CompletedSessions != 0 {
		t.Error("rejected registrant must be unaffected")
	}
	if got := len(env.notifier.ByType(notify.EventSessionCompleted)); got != 1 {
		t.Errorf("completion notifications = %d, want 1", got)
	}
}

// TestSweepMarksNoShow checks that a confirmed session never started becomes
// no_show 31 minutes past its start, not completed.
func TestSweepMarksNoShow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profiles.PutTutor(profile.TutorProfile{UserID: "tutor-1"})
	env.profiles.PutStudent(profile.StudentProfile{UserID: "student-1"})

	sess := env.createSession(t, func(s *Session) {
		s.StudentID = "student-1"
		s.Window = mustWindow(t, "2026-03-01", "09:00", "10:00")
	})
	if _, err := env.machine.Transition(ctx, sess, StatusConfirmed, TransitionMeta{Actor: "tutor-1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	env.clock.Current = time.Date(2026, 3, 1, 9, 31, 0, 0, time.UTC)
	stats := env.sweeper.RunSweepOnce(ctx)
	if stats.NoShows != 1 || stats.Completed != 0 {
		t.Fatalf("sweep stats = %+v", stats)
	}

	final, _ := env.sessions.Get(ctx, sess.ID)
	if final.Status != StatusNoShow {
		t.Errorf("status = %s, want no_show", final.Status)
	}

	// No statistics for no-shows, but both parties hear about it.
	student, _ := env.profiles.Student(ctx, "student-1")
	if student.TrainingPoints != 0 || student.CompletedSessions != 0 {
		t.Error("no_show must not change statistics")
	}
	events := env.notifier.ByType(notify.EventSessionNoShow)
	if len(events) != 2 {
		t.Fatalf("no-show notifications = %d, want 2", len(events))
	}
}

func TestSweepWithinGraceLeavesSessionAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	sess := env.createSession(t, func(s *Session) {
		s.StudentID = "student-1"
		s.Window = mustWindow(t, "2026-03-01", "09:00", "10:00")
	})
	if _, err := env.machine.Transition(ctx, sess, StatusConfirmed, TransitionMeta{Actor: "tutor-1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	env.clock.Current = time.Date(2026, 3, 1, 9, 29, 0, 0, time.UTC)
	stats := env.sweeper.RunSweepOnce(ctx)
	if stats.Completed != 0 || stats.NoShows != 0 {
		t.Fatalf("sweep stats = %+v, want nothing", stats)
	}
	final, _ := env.sessions.Get(ctx, sess.ID)
	if final.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", final.Status)
	}
}

// The grace period is exclusive: a session exactly 30 minutes past its
// start is still within grace and only becomes no_show once the start is
// strictly more than 30 minutes ago.
func TestSweepNoShowGraceBoundaryIsStrict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profiles.PutTutor(profile.TutorProfile{UserID: "tutor-1"})
	env.profiles.PutStudent(profile.StudentProfile{UserID: "student-1"})

	sess := env.createSession(t, func(s *Session) {
		s.StudentID = "student-1"
		s.Window = mustWindow(t, "2026-03-01", "09:00", "10:00")
	})
	if _, err := env.machine.Transition(ctx, sess, StatusConfirmed, TransitionMeta{Actor: "tutor-1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	env.clock.Current = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if stats := env.sweeper.RunSweepOnce(ctx); stats.NoShows != 0 {
		t.Fatalf("sweep at the boundary marked %d no-shows, want 0", stats.NoShows)
	}
	mid, _ := env.sessions.Get(ctx, sess.ID)
	if mid.Status != StatusConfirmed {
		t.Fatalf("status at boundary = %s, want confirmed", mid.Status)
	}

	env.clock.Advance(time.Second)
	if stats := env.sweeper.RunSweepOnce(ctx); stats.NoShows != 1 {
		t.Fatalf("sweep past the boundary marked %d no-shows, want 1", stats.NoShows)
	}
}

// TestSweepIdempotent runs the sweep twice without advancing the clock; the
// second pass must do nothing.
func TestSweepIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.profiles.PutTutor(profile.TutorProfile{UserID: "tutor-1"})
	env.profiles.PutStudent(profile.StudentProfile{UserID: "student-1"})

	sess := env.createSession(t, func(s *Session) {
		s.StudentID = "student-1"
		s.Window = mustWindow(t, "2026-03-01", "09:00", "10:00")
	})
	if _, err := env.machine.Transition(ctx, sess, StatusConfirmed, TransitionMeta{Actor: "tutor-1"}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	env.clock.Current = time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)
	first := env.sweeper.RunSweepOnce(ctx)
	if first.Completed != 1 {
		t.Fatalf("first sweep stats = %+v", first)
	}
	second := env.sweeper.RunSweepOnce(ctx)
	if second.Completed != 0 || second.NoShows != 0 || second.Errors != 0 {
		t.Fatalf("second sweep stats = %+v, want zero transitions", second)
	}

	student, _ := env.profiles.Student(ctx, "student-1")
	if student.TrainingPoints != testTrainingPoints {
		t.Errorf("training points = %d, want exactly %d", student.TrainingPoints, testTrainingPoints)
	}
}

// TestSweepSingleFlight checks that a sweep arriving while one is in flight
// is skipped rather than run concurrently.
func TestSweepSingleFlight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	release := make(chan struct{})
	blocking := &blockingRepository{MemoryRepository: env.sessions, release: release}
	sweeper := NewSweeper(blocking, env.machine, env.clock, 30*time.Minute)

	var wg sync.WaitGroup
	wg.Add(1)
	firstStarted := make(chan struct{})
	go func() {
		defer wg.Done()
		close(firstStarted)
		sweeper.RunSweepOnce(ctx)
	}()

	<-firstStarted
	<-blocking.entered()
	second := sweeper.RunSweepOnce(ctx)
	if !second.Skipped {
		t.Error("overlapping sweep must be skipped")
	}
	close(release)
	wg.Wait()

	third := sweeper.RunSweepOnce(ctx)
	if third.Skipped {
		t.Error("sweep after completion must run")
	}
}

// TestSweepIsolatesPerSessionFailures seeds two expired sessions and a
// profile store that fails for one tutor; the other session must still
// complete.
func TestSweepIsolatesPerSessionFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	failing := &failingProfiles{MemoryStore: env.profiles, failTutor: "tutor-bad"}
	machine := NewMachine(env.sessions, failing, env.notifier, env.clock, testTrainingPoints)
	sweeper := NewSweeper(env.sessions, machine, env.clock, 30*time.Minute)

	env.profiles.PutTutor(profile.TutorProfile{UserID: "tutor-1"})
	env.profiles.PutStudent(profile.StudentProfile{UserID: "student-1"})

	for _, tutor := range []string{"tutor-bad", "tutor-1"} {
		sess := env.createSession(t, func(s *Session) {
			s.TutorID = tutor
			s.StudentID = "student-1"
			s.Window = mustWindow(t, "2026-03-01", "09:00", "10:00")
		})
		if _, err := env.machine.Transition(ctx, sess, StatusConfirmed, TransitionMeta{Actor: tutor}); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}

	env.clock.Current = time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)
	stats := sweeper.RunSweepOnce(ctx)
	if stats.Errors != 1 {
		t.Errorf("errors = %d, want 1", stats.Errors)
	}
	if stats.Completed != 1 {
		t.Errorf("completed = %d, want 1 despite the failure", stats.Completed)
	}
}

// blockingRepository parks the first list call until released so tests can
// hold a sweep in flight.
type blockingRepository struct {
	*MemoryRepository
	release <-chan struct{}
	once    sync.Once
	inside  chan struct{}
}

func (b *blockingRepository) entered() <-chan struct{} {
	b.once.Do(func() { b.inside = make(chan struct{}) })
	return b.inside
}

func (b *blockingRepository) ListConfirmedEndedBefore(ctx context.Context, t time.Time) ([]*Session, error) {
	b.once.Do(func() { b.inside = make(chan struct{}) })
	select {
	case <-b.inside:
	default:
		close(b.inside)
	}
	<-b.release
	return b.MemoryRepository.ListConfirmedEndedBefore(ctx, t)
}

// failingProfiles fails counter updates for one tutor id.
type failingProfiles struct {
	*profile.MemoryStore
	failTutor string
}

func (f *failingProfiles) IncrementTutorCompleted(ctx context.Context, userID string) error {
	if userID == f.failTutor {
		return errors.New("profile service unavailable")
	}
	return f.MemoryStore.IncrementTutorCompleted(ctx, userID)
}
