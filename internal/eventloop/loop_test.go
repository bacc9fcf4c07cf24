package eventloop

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := New(16, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return loop
}

func TestLoop_GoDeliversDoneOnLoop(t *testing.T) {
	loop := startLoop(t)

	result := make(chan string, 1)
	var value string
	loop.Go(func(context.Context) { value = "fetched" }, func() { result <- value })

	select {
	case got := <-result:
		assert.Equal(t, "fetched", got)
	case <-time.After(2 * time.Second):
		t.Fatal("done callback never ran")
	}
}

func TestLoop_EveryStops(t *testing.T) {
	loop := startLoop(t)

	var ticks atomic.Int32
	stopped := make(chan struct{})
	var timer Timer
	loop.Post(func() {
		timer = loop.Every(5*time.Millisecond, func() {
			if ticks.Add(1) == 3 {
				timer.Stop()
				close(stopped)
			}
		})
	})

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never reached three ticks")
	}

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(3), ticks.Load())
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	loop := startLoop(t)

	ran := make(chan struct{})
	loop.Post(func() { panic("boom") })
	loop.Post(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("loop stopped after a panicking callback")
	}
}

func TestLoop_PostFromCallbackBeyondCapacity(t *testing.T) {
	loop := New(1, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	var ran atomic.Int32
	finished := make(chan struct{})
	loop.Post(func() {
		for i := 0; i < 10; i++ {
			loop.Post(func() { ran.Add(1) })
		}
		loop.Post(func() { close(finished) })
	})

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("callbacks posted from the loop never ran")
	}
	assert.Equal(t, int32(10), ran.Load())
}

func TestLoop_RunCancelsOutstandingWork(t *testing.T) {
	loop := New(4, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var workErr error
	loop.Go(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		workErr = ctx.Err()
	}, func() { t.Error("done must not run after the loop stopped") })

	runErr := make(chan error, 1)
	go func() { runErr <- loop.Run(ctx) }()
	<-started
	cancel()

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept waiting for blocked work")
	}
	assert.ErrorIs(t, workErr, context.Canceled)
}

func TestManual_AdvanceAndComplete(t *testing.T) {
	m := NewManual()

	fired := 0
	timer := m.Every(2*time.Second, func() { fired++ })

	m.Advance(time.Second)
	assert.Equal(t, 0, fired)
	m.Advance(time.Second)
	assert.Equal(t, 1, fired)
	m.Advance(4 * time.Second)
	assert.Equal(t, 3, fired)

	timer.Stop()
	m.Advance(10 * time.Second)
	assert.Equal(t, 3, fired)
	assert.Equal(t, 0, m.ActiveTimers())

	var order []string
	m.Go(func(context.Context) { order = append(order, "work") }, func() { order = append(order, "done") })
	require.Equal(t, 1, m.Pending())
	assert.Empty(t, order)
	assert.Equal(t, 1, m.Complete())
	assert.Equal(t, []string{"work", "done"}, order)
	assert.Equal(t, 0, m.Pending())
}
