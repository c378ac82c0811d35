package scan

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/grocery-field/card/internal/decoder"
	"github.com/grocery-field/card/internal/media"
)

// Loop polls a video once per tick until a code is found or it is stopped.
type Loop struct {
	ctx     context.Context
	sched   Scheduler
	decoder decoder.FrameDecoder
	video   media.Video
	alive   func() bool
	emit    func(code string)

	fired atomic.Bool

	mu      sync.Mutex
	stopped bool
	cancel  func()
}

// NewLoop builds a loop. alive is checked before every tick; emit receives
// the first decoded value and is called at most once.
func NewLoop(ctx context.Context, sched Scheduler, dec decoder.FrameDecoder, video media.Video, alive func() bool, emit func(code string)) *Loop {
	return &Loop{ctx: ctx, sched: sched, decoder: dec, video: video, alive: alive, emit: emit}
}

// Start schedules the first tick.
func (l *Loop) Start() {
	l.schedule()
}

// Stop cancels any pending tick. After Stop returns no further tick does work.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Fired reports whether the loop has emitted a result.
func (l *Loop) Fired() bool { return l.fired.Load() }

func (l *Loop) schedule() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.cancel = l.sched.Next(l.tick)
}

func (l *Loop) running() bool {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	return !stopped && l.ctx.Err() == nil && !l.fired.Load() && l.alive()
}

func (l *Loop) tick() {
	if !l.running() {
		return
	}
	code, ok := l.decoder.DecodeFrame(l.ctx, l.video)
	if !ok {
		l.schedule()
		return
	}
	if !l.fired.CompareAndSwap(false, true) {
		return
	}
	l.Stop()
	l.emit(code)
}
