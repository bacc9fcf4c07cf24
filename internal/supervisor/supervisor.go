// Package supervisor owns the backend child process of the desktop host: it
// spawns it, forwards its output, probes it for readiness and kills it on
// shutdown.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	errpkg "github.com/veranemoloko/media-taskdesk/internal/errors"
	"github.com/veranemoloko/media-taskdesk/internal/metrics"
)

// utf8Env forces the backend interpreter to read and write UTF-8 regardless
// of the host locale.
var utf8Env = []string{"PYTHONIOENCODING=utf-8", "PYTHONUTF8=1"}

// Options configures a Supervisor.
type Options struct {
	Command          string
	Args             []string
	Dir              string
	HealthURL        string
	MainURL          string
	ProbeInterval    time.Duration
	ProbeMaxAttempts int
	HTTPClient       *http.Client
}

// Supervisor manages one backend process.
type Supervisor struct {
	opts   Options
	shell  Shell
	client *http.Client
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}

	alive     atomic.Bool
	ready     atomic.Bool
	revealed  sync.Once
	lastProbe atomic.Value
}

func New(opts Options, shell Shell, logger *slog.Logger) *Supervisor {
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.ProbeInterval}
	}
	return &Supervisor{
		opts:   opts,
		shell:  shell,
		client: client,
		logger: logger,
	}
}

// Start shows the loading surface and spawns the backend. The process is
// started directly, never through a shell.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return fmt.Errorf("backend already started (pid %d)", s.cmd.Process.Pid)
	}

	s.shell.ShowLoading()

	cmd := exec.Command(s.opts.Command, s.opts.Args...)
	cmd.Dir = s.opts.Dir
	cmd.Env = append(os.Environ(), utf8Env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open backend stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open backend stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start backend %q: %w", s.opts.Command, err)
	}

	s.cmd = cmd
	s.exited = make(chan struct{})
	s.alive.Store(true)
	metrics.BackendRunning.Set(1)
	s.logger.Info("backend started", "pid", cmd.Process.Pid, "command", s.opts.Command, "args", s.opts.Args)

	var readers sync.WaitGroup
	readers.Add(2)
	go s.forward(&readers, stdout, "stdout", slog.LevelInfo)
	go s.forward(&readers, stderr, "stderr", slog.LevelWarn)

	go func(cmd *exec.Cmd, exited chan struct{}) {
		readers.Wait()
		err := cmd.Wait()
		s.alive.Store(false)
		metrics.BackendRunning.Set(0)
		if err != nil {
			s.logger.Warn("backend exited", "pid", cmd.Process.Pid, "error", err)
		} else {
			s.logger.Info("backend exited", "pid", cmd.Process.Pid)
		}
		close(exited)
	}(cmd, s.exited)

	return nil
}

func (s *Supervisor) forward(wg *sync.WaitGroup, r io.Reader, stream string, level slog.Level) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), "�")
		s.logger.Log(context.Background(), level, line, "stream", stream)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug("backend output closed", "stream", stream, "error", err)
	}
}

// WaitReady probes the health endpoint every ProbeInterval until it answers
// 200, then closes the loading surface and reveals the main surface once.
// With ProbeMaxAttempts of zero it probes until ctx is done.
func (s *Supervisor) WaitReady(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}

	ticker := time.NewTicker(s.opts.ProbeInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if s.probe(ctx) {
			s.markReady()
			return nil
		}
		if s.opts.ProbeMaxAttempts > 0 && attempt >= s.opts.ProbeMaxAttempts {
			return fmt.Errorf("%w after %d probes", errpkg.ErrBackendNotReady, attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProbeInterval)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.HealthURL, nil)
	if err != nil {
		s.recordProbe("error", err.Error())
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.recordProbe("error", err.Error())
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.recordProbe("not_ready", resp.Status)
		return false
	}
	s.recordProbe("ready", resp.Status)
	return true
}

func (s *Supervisor) recordProbe(result, detail string) {
	metrics.ReadinessProbes.WithLabelValues(result).Inc()
	s.lastProbe.Store(detail)
	if result != "ready" {
		s.logger.Debug("backend not ready yet", "result", result, "detail", detail)
	}
}

func (s *Supervisor) markReady() {
	s.revealed.Do(func() {
		s.ready.Store(true)
		s.shell.CloseLoading()
		s.shell.ShowMain(s.opts.MainURL)
	})
}

// Stop kills the backend if one is running and clears the handle. It waits
// for the process to exit until ctx is done. Calling Stop again is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd, exited := s.cmd, s.exited
	s.cmd, s.exited = nil, nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}

	s.logger.Info("stopping backend", "pid", cmd.Process.Pid)
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill backend (pid %d): %w", cmd.Process.Pid, err)
	}

	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for backend to exit: %w", ctx.Err())
	}
}

// Alive reports whether the backend process is running.
func (s *Supervisor) Alive() bool {
	return s.alive.Load()
}

// Ready reports whether a readiness probe has succeeded.
func (s *Supervisor) Ready() bool {
	return s.ready.Load()
}

// PID returns the backend's process id, or 0 without a running backend.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// LastProbe describes the most recent probe outcome.
func (s *Supervisor) LastProbe() string {
	v, _ := s.lastProbe.Load().(string)
	return v
}

// Done is closed when the current backend process exits. It returns
// ErrBackendNotRunning without one.
func (s *Supervisor) Done() (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited == nil {
		return nil, errpkg.ErrBackendNotRunning
	}
	return s.exited, nil
}
