package scheduling

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// Sweeper is the recurring sweep that advances confirmed sessions whose
// wall-clock window has elapsed. Sessions past their end become completed;
// sessions more than the grace period past their start with no explicit
// completion become no_show.
type Sweeper struct {
	sessions Repository
	machine  *Machine
	clock    Clock
	grace    time.Duration

	running atomic.Bool
}

// SweepStats summarizes one sweep iteration.
type SweepStats struct {
	Completed int
	NoShows   int
	Errors    int
	Skipped   bool
}

// NewSweeper wires the sweeper. grace is the no-show grace period past a
// session's scheduled start.
func NewSweeper(sessions Repository, machine *Machine, clock Clock, grace time.Duration) *Sweeper {
	if grace <= 0 {
		grace = 30 * time.Minute
	}
	return &Sweeper{sessions: sessions, machine: machine, clock: clock, grace: grace}
}

// RunSweepOnce executes a single sweep. At most one sweep runs at a time:
// an invocation arriving while another is in flight returns immediately
// with Skipped set, so the same session is never processed twice
// concurrently. Failures on one session are logged and counted without
// aborting the rest.
func (s *Sweeper) RunSweepOnce(ctx context.Context) SweepStats {
	if !s.running.CompareAndSwap(false, true) {
		sweepsSkipped.Inc()
		return SweepStats{Skipped: true}
	}
	defer s.running.Store(false)

	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	now := s.clock.Now()
	var stats SweepStats

	ended, err := s.sessions.ListConfirmedEndedBefore(ctx, now)
	if err != nil {
		log.Printf("sweep: listing ended sessions failed: %v", err)
		stats.Errors++
	}
	for _, sess := range ended {
		if _, err := s.machine.Transition(ctx, sess, StatusCompleted, TransitionMeta{AutoCompleted: true}); err != nil {
			// A session advanced by a concurrent manual action loses the
			// CAS here; that is the normal idempotence path, not a fault.
			if KindOf(err) != KindInvalidTransition {
				log.Printf("sweep: completing session %s failed: %v", sess.ID, err)
				stats.Errors++
				sweepErrorsTotal.Inc()
			}
			continue
		}
		stats.Completed++
		sweepTransitionsTotal.WithLabelValues(string(StatusCompleted)).Inc()
		log.Printf("sweep: session %s auto-completed", sess.ID)
	}

	overdue, err := s.sessions.ListConfirmedStartedBefore(ctx, now.Add(-s.grace))
	if err != nil {
		log.Printf("sweep: listing overdue sessions failed: %v", err)
		stats.Errors++
	}
	for _, sess := range overdue {
		// Sessions already past their end were handled above; completion
		// takes precedence over no-show.
		if !sess.EndsAt.After(now) {
			continue
		}
		if _, err := s.machine.Transition(ctx, sess, StatusNoShow, TransitionMeta{AutoCompleted: true}); err != nil {
			if KindOf(err) != KindInvalidTransition {
				log.Printf("sweep: marking session %s no-show failed: %v", sess.ID, err)
				stats.Errors++
				sweepErrorsTotal.Inc()
			}
			continue
		}
		stats.NoShows++
		sweepTransitionsTotal.WithLabelValues(string(StatusNoShow)).Inc()
		log.Printf("sweep: session %s marked no-show", sess.ID)
	}

	return stats
}
