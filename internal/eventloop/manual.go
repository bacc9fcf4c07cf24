package eventloop

import (
	"context"
	"time"
)

// Manual is a deterministic Scheduler for tests. Nothing runs until the test
// advances time, completes pending work, or drains the queue, and everything
// runs on the caller's goroutine.
type Manual struct {
	queue   []func()
	timers  []*manualTimer
	pending []manualOp
}

type manualTimer struct {
	interval time.Duration
	elapsed  time.Duration
	fn       func()
	active   bool
}

func (t *manualTimer) Stop() { t.active = false }

type manualOp struct {
	work func(ctx context.Context)
	done func()
}

// NewManual returns an idle manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

func (m *Manual) Every(d time.Duration, fn func()) Timer {
	t := &manualTimer{interval: d, fn: fn, active: true}
	m.timers = append(m.timers, t)
	return t
}

// Go records the work; it runs when Complete is called.
func (m *Manual) Go(work func(ctx context.Context), done func()) {
	m.pending = append(m.pending, manualOp{work: work, done: done})
}

// Advance moves time forward by d, firing every active timer whose interval
// elapsed, then drains the queue.
func (m *Manual) Advance(d time.Duration) {
	for _, t := range append([]*manualTimer(nil), m.timers...) {
		if !t.active {
			continue
		}
		t.elapsed += d
		for t.active && t.elapsed >= t.interval {
			t.elapsed -= t.interval
			t.fn()
		}
	}
	m.Drain()
}

// Complete runs all outstanding work started with Go, delivers the done
// callbacks, and returns how many operations finished.
func (m *Manual) Complete() int {
	ops := m.pending
	m.pending = nil
	for _, op := range ops {
		op.work(context.Background())
		if op.done != nil {
			op.done()
		}
	}
	m.Drain()
	return len(ops)
}

// Drain runs queued callbacks, including ones queued while draining.
func (m *Manual) Drain() {
	for len(m.queue) > 0 {
		fn := m.queue[0]
		m.queue = m.queue[1:]
		fn()
	}
}

// Pending reports how many Go operations have not completed.
func (m *Manual) Pending() int {
	return len(m.pending)
}

// ActiveTimers reports how many timers are running.
func (m *Manual) ActiveTimers() int {
	n := 0
	for _, t := range m.timers {
		if t.active {
			n++
		}
	}
	return n
}
