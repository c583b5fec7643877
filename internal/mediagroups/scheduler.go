// Package mediagroups reassembles multi-part media posts that arrive as
// separate events sharing a group id. Members are buffered durably and flushed
// once after a fixed quiescence window; the buffer, not the timers, is the
// source of truth, so duplicate or raced flushes degrade to no-ops.
package mediagroups

import (
	"log"
	"sync"
	"time"
)

// Scheduler runs at most one pending one-shot timer per key. Scheduling an
// already-pending key is a no-op; the idempotent flush makes extra schedules
// harmless anyway, this just avoids the redundant work.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arms a one-shot timer for key unless one is already pending.
// Returns true when a new timer was armed.
func (s *Scheduler) Schedule(key string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, pending := s.timers[key]; pending {
		return false
	}

	s.timers[key] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, key)
		s.mu.Unlock()
		fn()
	})
	return true
}

// Cancel stops a pending timer for key, if any. Safe to call after the timer
// fired; it is a no-op then.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}
}

// Shutdown stops all pending timers. Buffered entries survive in the store and
// are picked up when their group key is next scheduled.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := 0
	for key, timer := range s.timers {
		if timer.Stop() {
			stopped++
		}
		delete(s.timers, key)
	}
	if stopped > 0 {
		log.Printf("[Scheduler] Shutdown stopped %d pending timer(s)", stopped)
	}
}
