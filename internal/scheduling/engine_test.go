package scheduling

import (
	"context"
	"testing"
	"time"

	"tutorhub/internal/notify"
	"tutorhub/internal/profile"
)

const testTrainingPoints = 5

// testEnv wires the whole engine over the in-memory stores with a manually
// advanced clock.
type testEnv struct {
	sessions  *MemoryRepository
	profiles  *profile.MemoryStore
	notifier  *notify.Memory
	clock     *FakeClock
	machine   *Machine
	conflicts *ConflictChecker
	registrar *Registrar
	service   *Service
	sweeper   *Sweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		sessions: NewMemoryRepository(),
		profiles: profile.NewMemoryStore(),
		notifier: notify.NewMemory(),
		clock:    &FakeClock{Current: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
	}
	env.conflicts = NewConflictChecker(env.sessions)
	env.machine = NewMachine(env.sessions, env.profiles, env.notifier, env.clock, testTrainingPoints)
	env.registrar = NewRegistrar(env.sessions, env.conflicts, env.machine, env.notifier, env.clock)
	env.service = NewService(env.sessions, env.conflicts, env.registrar, env.machine, env.notifier, env.clock)
	env.sweeper = NewSweeper(env.sessions, env.machine, env.clock, 30*time.Minute)
	return env
}

// createSession stores a pending one-hour session for tutor-1 tomorrow at
// 14:00, customized by mutate.
func (env *testEnv) createSession(t *testing.T, mutate func(*Session)) *Session {
	t.Helper()
	ctx := context.Background()
	window := mustWindow(t, "2026-03-02", "14:00", "15:00")
	sess := &Session{
		TutorID:         "tutor-1",
		Subject:         "calculus",
		MaxParticipants: 1,
		Registered:      []Registration{},
		Window:          window,
		DurationMinutes: window.DurationMinutes(),
		StartsAt:        window.StartAt(env.clock.Location()),
		EndsAt:          window.EndAt(env.clock.Location()),
		Status:          StatusPending,
		CreatedAt:       env.clock.Now(),
		UpdatedAt:       env.clock.Now(),
	}
	if mutate != nil {
		mutate(sess)
	}
	// Recompute instants when the mutation changed the window.
	sess.StartsAt = sess.Window.StartAt(env.clock.Location())
	sess.EndsAt = sess.Window.EndAt(env.clock.Location())
	sess.DurationMinutes = sess.Window.DurationMinutes()
	if err := env.sessions.Create(ctx, sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}
