// Package scheduler drains an unbounded queue of forge tasks against
// a single forge.Forge, bounding how many run concurrently and how
// fast new ones start.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ehrlich-b/cinch/forge"
)

// MaxInFlight bounds how many tasks a Scheduler runs concurrently
// against its Forge, regardless of how deep the queue behind it
// grows.
const MaxInFlight = 50

// Scheduler drains a FIFO queue of forge.Task values, never running
// more than MaxInFlight of them at once and never starting one faster
// than its RateLimiter allows. Enqueue never blocks; Run blocks until
// the queue is empty and every spawned worker has returned.
type Scheduler struct {
	forge   forge.Forge
	limiter *RateLimiter
	log     *slog.Logger

	mu     sync.Mutex
	queue  []forge.Task
	closed bool

	sem     chan struct{}
	results chan workerResult
}

type workerResult struct {
	task    forge.Task
	outcome forge.Outcome
	err     error
}

// New builds a Scheduler that drives tasks against f, gated by
// limiter. A nil log discards scheduler diagnostics.
func New(f forge.Forge, limiter *RateLimiter, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		forge:   f,
		limiter: limiter,
		log:     log,
		sem:     make(chan struct{}, MaxInFlight),
		results: make(chan workerResult, MaxInFlight),
	}
}

// Enqueue appends tasks to the tail of the queue. It never blocks and
// silently drops tasks submitted after Cancel.
func (s *Scheduler) Enqueue(tasks ...forge.Task) {
	if len(tasks) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, tasks...)
}

func (s *Scheduler) dequeue() (forge.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.queue) == 0 {
		return nil, false
	}
	task := s.queue[0]
	s.queue = s.queue[1:]
	return task, true
}

// Queued reports how many tasks are waiting to start, for tests and
// diagnostics.
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Cancel stops the scheduler from accepting or starting new tasks.
// Workers already in flight are left to finish; Run keeps awaiting
// them until they do, so dropping a Scheduler mid-run never abandons
// a RunTask call.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
}

// Run drives the queue to quiescence: every enqueued task, and every
// task its outcome enqueued in turn, has run and no worker remains in
// flight. If ctx is cancelled first, Run stops starting new tasks but
// still awaits the ones already running before returning ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	inFlight := 0
	var runErr error

	for {
		for drained := false; !drained; {
			select {
			case res := <-s.results:
				inFlight--
				s.handleResult(res)
			default:
				drained = true
			}
		}

		if runErr == nil && ctx.Err() != nil {
			runErr = ctx.Err()
			s.Cancel()
		}

		task, ok := s.dequeue()
		if !ok {
			if inFlight == 0 {
				return runErr
			}
			res := <-s.results
			inFlight--
			s.handleResult(res)
			continue
		}

		if err := s.limiter.Wait(ctx); err != nil {
			runErr = err
			s.Cancel()
			continue
		}

		s.sem <- struct{}{}
		inFlight++
		s.spawn(ctx, task)
	}
}

func (s *Scheduler) spawn(ctx context.Context, task forge.Task) {
	go func() {
		outcome, err := s.forge.RunTask(ctx, task)
		<-s.sem
		s.results <- workerResult{task: task, outcome: outcome, err: err}
	}()
}

func (s *Scheduler) handleResult(res workerResult) {
	if res.err != nil {
		s.log.Error("task failed", "kind", res.task.TaskKind(), "error", res.err)
		return
	}
	if len(res.outcome.AdditionalTasks) > 0 {
		s.Enqueue(res.outcome.AdditionalTasks...)
	}
}
