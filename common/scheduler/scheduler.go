// Package scheduler provides a small in-memory one-shot timer registry.
// Jobs are scheduled with a delay and fire exactly once on the runtime's
// shared timer heap, they can be cancelled through the handle returned at
// schedule time. Jobs are not persisted, callers that need to survive a
// restart re-derive their schedules from their own storage.
package scheduler

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// Handle is an opaque reference to a pending job, used for cancellation
type Handle int64

var logger = logrus.WithField("p", "scheduler")

var (
	metricsJobsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minebot_scheduler_jobs_scheduled_total",
		Help: "Total one-shot jobs scheduled",
	})
	metricsJobsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minebot_scheduler_jobs_fired_total",
		Help: "Total one-shot jobs fired",
	})
	metricsJobsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minebot_scheduler_jobs_cancelled_total",
		Help: "Total one-shot jobs cancelled before firing",
	})
)

type Scheduler struct {
	mu      sync.Mutex
	nextID  Handle
	pending map[Handle]*time.Timer
}

func New() *Scheduler {
	return &Scheduler{
		pending: make(map[Handle]*time.Timer),
	}
}

// Schedule registers fn to run once after delay, negative delays are
// clamped to zero so expiry times computed from persisted state that have
// already passed fire near-immediately instead of erroring.
//
// The job is removed from the pending set before fn runs, a job that has
// started firing can no longer be cancelled and cannot fire twice.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	// the callback takes the same lock, so even a zero delay timer blocks
	// until the entry below is in place
	t := time.AfterFunc(delay, func() {
		s.mu.Lock()
		_, ok := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()

		if !ok {
			// lost the race against Cancel/Reset
			return
		}

		metricsJobsFired.Inc()

		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("recovered from panic in scheduled job\n%v\n%s", r, debug.Stack())
			}
		}()

		fn()
	})

	s.pending[id] = t
	metricsJobsScheduled.Inc()

	return id
}

// Cancel removes a pending job, it is a no-op if the job already fired or
// the handle is unknown
func (s *Scheduler) Cancel(handle Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.pending[handle]
	if !ok {
		return
	}

	t.Stop()
	delete(s.pending, handle)
	metricsJobsCancelled.Inc()
}

// Reset cancels every pending job and clears internal state, used when all
// schedules are considered stale (full reconnect)
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.pending {
		t.Stop()
	}

	metricsJobsCancelled.Add(float64(len(s.pending)))
	s.pending = make(map[Handle]*time.Timer)
}

// Pending returns the number of jobs that have not fired or been cancelled yet
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}
