package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ehrlich-b/cinch/entity"
	"github.com/ehrlich-b/cinch/forge"
)

type fakeTask struct {
	kind forge.Kind
	n    int
}

func (t fakeTask) TaskKind() forge.Kind { return t.kind }

// fakeForge hands out a fixed number of follow-up tasks per task it
// sees, and can simulate concurrency and failures for tests.
type fakeForge struct {
	mu        sync.Mutex
	running   int
	maxSeen   int
	processed int32

	followups func(fakeTask) []forge.Task
	failEvery int
	sleepEach time.Duration
}

func (f *fakeForge) Instance() entity.Instance { return entity.Instance{} }
func (f *fakeForge) Name() string              { return "fake" }

func (f *fakeForge) RunTask(ctx context.Context, task forge.Task) (forge.Outcome, error) {
	f.mu.Lock()
	f.running++
	if f.running > f.maxSeen {
		f.maxSeen = f.running
	}
	f.mu.Unlock()

	if f.sleepEach > 0 {
		select {
		case <-time.After(f.sleepEach):
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.running--
	f.mu.Unlock()

	n := atomic.AddInt32(&f.processed, 1)
	ft := task.(fakeTask)
	if f.failEvery > 0 && int(n)%f.failEvery == 0 {
		return forge.Outcome{}, errors.New("simulated failure")
	}
	if f.followups == nil {
		return forge.Outcome{}, nil
	}
	return forge.Outcome{AdditionalTasks: f.followups(ft)}, nil
}

func noJitterLimiter() *RateLimiter {
	return NewRateLimiter(1e6, MaxInFlight, 0)
}

func TestSchedulerDrainsToQuiescence(t *testing.T) {
	fake := &fakeForge{}
	s := New(fake, noJitterLimiter(), nil)
	for i := 0; i < 10; i++ {
		s.Enqueue(fakeTask{kind: "seed", n: i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt32(&fake.processed); got != 10 {
		t.Errorf("processed = %d, want 10", got)
	}
	if s.Queued() != 0 {
		t.Errorf("Queued() = %d, want 0", s.Queued())
	}
}

func TestSchedulerReenqueuesAdditionalTasks(t *testing.T) {
	fake := &fakeForge{
		followups: func(t fakeTask) []forge.Task {
			if t.kind == "root" {
				return []forge.Task{
					fakeTask{kind: "child", n: 1},
					fakeTask{kind: "child", n: 2},
				}
			}
			return nil
		},
	}
	s := New(fake, noJitterLimiter(), nil)
	s.Enqueue(fakeTask{kind: "root"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt32(&fake.processed); got != 3 {
		t.Errorf("processed = %d, want 3 (1 root + 2 children)", got)
	}
}

func TestSchedulerCapsInFlightWorkers(t *testing.T) {
	fake := &fakeForge{sleepEach: 10 * time.Millisecond}
	s := New(fake, noJitterLimiter(), nil)
	for i := 0; i < MaxInFlight*3; i++ {
		s.Enqueue(fakeTask{kind: "work", n: i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	fake.mu.Lock()
	maxSeen := fake.maxSeen
	fake.mu.Unlock()
	if maxSeen > MaxInFlight {
		t.Errorf("maxSeen concurrent workers = %d, want <= %d", maxSeen, MaxInFlight)
	}
}

func TestSchedulerDiscardsFailuresWithoutStopping(t *testing.T) {
	fake := &fakeForge{failEvery: 3}
	s := New(fake, noJitterLimiter(), nil)
	for i := 0; i < 9; i++ {
		s.Enqueue(fakeTask{kind: "work", n: i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := atomic.LoadInt32(&fake.processed); got != 9 {
		t.Errorf("processed = %d, want 9", got)
	}
}

func TestSchedulerRunHonorsContextCancellation(t *testing.T) {
	fake := &fakeForge{sleepEach: 50 * time.Millisecond}
	s := New(fake, noJitterLimiter(), nil)
	for i := 0; i < MaxInFlight*2; i++ {
		s.Enqueue(fakeTask{kind: "work", n: i})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run err = %v, want context.DeadlineExceeded", err)
	}
	if s.Queued() != 0 {
		t.Errorf("Queued() after cancellation = %d, want 0 (Cancel clears the queue)", s.Queued())
	}
}

func TestEnqueueNeverBlocksAfterCancel(t *testing.T) {
	fake := &fakeForge{}
	s := New(fake, noJitterLimiter(), nil)
	s.Cancel()
	done := make(chan struct{})
	go func() {
		s.Enqueue(fakeTask{kind: "late"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked after Cancel")
	}
	if s.Queued() != 0 {
		t.Errorf("Queued() = %d, want 0 (enqueue after Cancel is a no-op)", s.Queued())
	}
}
