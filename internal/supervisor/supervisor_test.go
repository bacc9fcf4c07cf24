package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errpkg "github.com/veranemoloko/media-taskdesk/internal/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingShell struct {
	mu      sync.Mutex
	loading int
	closed  int
	shown   []string
}

func (s *recordingShell) ShowLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading++
}

func (s *recordingShell) CloseLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *recordingShell) ShowMain(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, url)
}

// TestHelperProcess is not a real test. It stands in for the backend when
// started by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprintf(os.Stdout, "encoding=%s utf8=%s\n", os.Getenv("PYTHONIOENCODING"), os.Getenv("PYTHONUTF8"))
	fmt.Fprintln(os.Stdout, "服务启动")
	fmt.Fprintln(os.Stderr, "warming up")
	time.Sleep(time.Minute)
	os.Exit(0)
}

func helperOptions() Options {
	return Options{
		Command:       os.Args[0],
		Args:          []string{"-test.run=TestHelperProcess", "--"},
		HealthURL:     "http://127.0.0.1:1/health",
		MainURL:       "http://127.0.0.1:8000",
		ProbeInterval: 10 * time.Millisecond,
	}
}

func TestSupervisor_ReadinessRevealsOnce(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch probes.Add(1) {
		case 1:
			// Drop the connection so the probe sees a transport error.
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
				}
			}
		case 2:
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	shell := &recordingShell{}
	sup := New(Options{
		HealthURL:     server.URL + "/health",
		MainURL:       "http://127.0.0.1:8000",
		ProbeInterval: 10 * time.Millisecond,
	}, shell, newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, sup.WaitReady(ctx))
	require.NoError(t, sup.WaitReady(ctx))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(3), probes.Load())
	assert.True(t, sup.Ready())

	shell.mu.Lock()
	defer shell.mu.Unlock()
	assert.Equal(t, 1, shell.closed)
	assert.Equal(t, []string{"http://127.0.0.1:8000"}, shell.shown)
}

func TestSupervisor_ProbeCap(t *testing.T) {
	var probes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	shell := &recordingShell{}
	sup := New(Options{
		HealthURL:        server.URL,
		ProbeInterval:    5 * time.Millisecond,
		ProbeMaxAttempts: 3,
	}, shell, newTestLogger())

	err := sup.WaitReady(context.Background())
	assert.ErrorIs(t, err, errpkg.ErrBackendNotReady)
	assert.Equal(t, int32(3), probes.Load())
	assert.False(t, sup.Ready())
	assert.Empty(t, shell.shown)
}

func TestSupervisor_WaitReadyHonoursContext(t *testing.T) {
	sup := New(Options{HealthURL: "http://127.0.0.1:1/health", ProbeInterval: 5 * time.Millisecond}, &recordingShell{}, newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sup.WaitReady(ctx), context.DeadlineExceeded)
}

func TestSupervisor_StartAndStop(t *testing.T) {
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")

	shell := &recordingShell{}
	sup := New(helperOptions(), shell, newTestLogger())

	_, err := sup.Done()
	assert.ErrorIs(t, err, errpkg.ErrBackendNotRunning)

	require.NoError(t, sup.Start())
	assert.True(t, sup.Alive())
	assert.NotZero(t, sup.PID())
	assert.Error(t, sup.Start())

	done, err := sup.Done()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, sup.Stop(ctx))
	<-done
	assert.False(t, sup.Alive())
	assert.Zero(t, sup.PID())

	require.NoError(t, sup.Stop(ctx))

	shell.mu.Lock()
	defer shell.mu.Unlock()
	assert.Equal(t, 1, shell.loading)
}

func TestSupervisor_StartFailure(t *testing.T) {
	sup := New(Options{Command: "/nonexistent/backend"}, &recordingShell{}, newTestLogger())

	assert.Error(t, sup.Start())
	assert.False(t, sup.Alive())
	assert.NoError(t, sup.Stop(context.Background()))
}
