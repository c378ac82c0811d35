package scan

import (
	"sync"
	"time"
)

// Scheduler runs fn on the next tick. The returned cancel prevents a pending
// fn from running and is safe to call more than once.
type Scheduler interface {
	Next(fn func()) (cancel func())
}

// DefaultFrameInterval approximates a 60 Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// TimerScheduler schedules ticks with time.AfterFunc.
type TimerScheduler struct {
	Interval time.Duration
}

func (s TimerScheduler) Next(fn func()) func() {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	t := time.AfterFunc(interval, fn)
	return func() { t.Stop() }
}

// ManualScheduler queues ticks until Step is called. It drives loops
// deterministically in tests and the CLI.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*manualTick
}

type manualTick struct {
	fn        func()
	cancelled bool
}

func (s *ManualScheduler) Next(fn func()) func() {
	tick := &manualTick{fn: fn}
	s.mu.Lock()
	s.pending = append(s.pending, tick)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		tick.cancelled = true
		s.mu.Unlock()
	}
}

// Step runs the ticks queued so far and reports how many ran.
func (s *ManualScheduler) Step() int {
	s.mu.Lock()
	ticks := s.pending
	s.pending = nil
	s.mu.Unlock()

	ran := 0
	for _, tick := range ticks {
		s.mu.Lock()
		cancelled := tick.cancelled
		s.mu.Unlock()
		if cancelled {
			continue
		}
		tick.fn()
		ran++
	}
	return ran
}

// Pending reports how many uncancelled ticks are queued.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tick := range s.pending {
		if !tick.cancelled {
			n++
		}
	}
	return n
}
