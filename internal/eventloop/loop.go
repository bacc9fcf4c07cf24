// Package eventloop runs client state callbacks one at a time on a single
// goroutine. Repeating timers and blocking work report back into the loop, so
// state owned by loop callbacks needs no locking.
package eventloop

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler is the contract client components are written against.
type Scheduler interface {
	// Post queues fn to run on the loop.
	Post(fn func())
	// Every runs fn on the loop every d until the returned Timer is stopped.
	Every(d time.Duration, fn func()) Timer
	// Go runs work off the loop and then queues done on the loop. The context
	// passed to work is cancelled when the loop stops.
	Go(work func(ctx context.Context), done func())
}

// Timer is a repeating timer created by Every.
type Timer interface {
	Stop()
}

// Loop is the production Scheduler.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}

	closed   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	workCtx  context.Context
	stopWork context.CancelFunc
	logger   *slog.Logger
}

// New creates a loop. size is the initial capacity of the callback queue;
// the queue grows as needed, so Post never blocks.
func New(size int, logger *slog.Logger) *Loop {
	if size <= 0 {
		size = 64
	}
	workCtx, stopWork := context.WithCancel(context.Background())
	return &Loop{
		pending:  make([]func(), 0, size),
		wake:     make(chan struct{}, 1),
		closed:   make(chan struct{}),
		workCtx:  workCtx,
		stopWork: stopWork,
		logger:   logger,
	}
}

// Run executes queued callbacks until ctx is done, then cancels outstanding
// work started with Go and waits for it. It must be called once.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-l.wake:
			for _, fn := range l.take() {
				l.invoke(fn)
			}
		case <-ctx.Done():
			l.once.Do(func() {
				l.mu.Lock()
				close(l.closed)
				l.pending = nil
				l.mu.Unlock()
			})
			l.stopWork()
			l.wg.Wait()
			return ctx.Err()
		}
	}
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.pending
	l.pending = nil
	return batch
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("event loop callback panicked", "panic", r)
		}
	}()
	fn()
}

// Post queues fn. It is safe to call from loop callbacks. Callbacks posted
// after the loop stopped are dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	select {
	case <-l.closed:
		l.mu.Unlock()
		l.logger.Debug("event loop closed, dropping callback")
		return
	default:
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs work on its own goroutine and posts done when it returns.
func (l *Loop) Go(work func(ctx context.Context), done func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		work(l.workCtx)
		if done != nil {
			l.Post(done)
		}
	}()
}

// Every starts a repeating timer. Ticks that were queued before Stop are
// discarded when they reach the loop.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	t := &loopTimer{stop: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Post(func() {
					if t.stopped.Load() {
						return
					}
					fn()
				})
			case <-t.stop:
				return
			case <-l.closed:
				return
			}
		}
	}()

	return t
}

type loopTimer struct {
	stopped atomic.Bool
	stop    chan struct{}
}

func (t *loopTimer) Stop() {
	if t.stopped.CompareAndSwap(false, true) {
		close(t.stop)
	}
}
