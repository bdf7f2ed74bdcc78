package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const DefaultInterval = 30 * time.Second

type State int

const (
	Stopped State = iota
	Running
)

// Scheduler runs a task immediately on Start and then once per interval
// until Stop. A tick that fires while the previous run is still in flight
// is skipped, so at most one run is active at a time. Ticks run the task
// with a background context and Stop never cancels a run in flight.
type Scheduler struct {
	interval time.Duration
	task     func(ctx context.Context)
	log      *zap.Logger

	mu      sync.Mutex
	state   State
	stopCh  chan struct{}
	done    chan struct{}
	busy    atomic.Bool
	skipped atomic.Int64

	onSkip func()
}

func New(interval time.Duration, task func(ctx context.Context), logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		task:     task,
		log:      logger,
	}
}

// OnSkip registers a hook invoked every time a tick is skipped.
func (s *Scheduler) OnSkip(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSkip = fn
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running {
		return
	}
	s.state = Running
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stopCh, s.done)
}

// Stop suppresses future ticks. A run already in flight is left to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

// TryRun runs the task on the calling goroutine with ctx unless a run is
// already in flight. It reports whether the task ran.
func (s *Scheduler) TryRun(ctx context.Context) bool {
	if !s.busy.CompareAndSwap(false, true) {
		s.skip()
		return false
	}
	defer s.busy.Store(false)
	s.task(ctx)
	return true
}

func (s *Scheduler) loop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.fire()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.fire()
		}
	}
}

func (s *Scheduler) fire() {
	if !s.busy.CompareAndSwap(false, true) {
		s.skip()
		return
	}
	go func() {
		defer s.busy.Store(false)
		defer func() {
			if recovered := recover(); recovered != nil {
				s.log.Error("poll task panicked", zap.Any("error", recovered))
			}
		}()
		s.task(context.Background())
	}()
}

func (s *Scheduler) skip() {
	s.skipped.Add(1)
	s.log.Debug("poll skipped, previous cycle still in flight")
	s.mu.Lock()
	hook := s.onSkip
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}
