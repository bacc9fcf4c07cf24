package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/veranemoloko/media-taskdesk/internal/domain"
	errpkg "github.com/veranemoloko/media-taskdesk/internal/errors"
	"github.com/veranemoloko/media-taskdesk/internal/eventloop"
	"github.com/veranemoloko/media-taskdesk/internal/metrics"
	"github.com/veranemoloko/media-taskdesk/internal/validation"
)

// Job kinds used for logging and metrics.
const (
	KindSingle    = "single"
	KindAudio     = "audio"
	KindBatch     = "batch"
	KindSubtitle  = "subtitle"
	KindMultiPart = "multipart"
)

// TrackerOptions tunes a TaskTracker.
type TrackerOptions struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	MaxBatchURLs   int
}

// TaskTracker owns the currently tracked task: it submits jobs, polls their
// status on a single repeating timer and applies the results to TaskState.
// All methods must be called on the scheduler's loop.
type TaskTracker struct {
	backend TaskBackend
	sched   eventloop.Scheduler
	opts    TrackerOptions
	logger  *slog.Logger

	state      TaskState
	timer      eventloop.Timer
	generation uint64
	fetching   bool
	submitting bool
	onChange   func(TaskState)
}

// NewTaskTracker creates an idle tracker.
func NewTaskTracker(backend TaskBackend, sched eventloop.Scheduler, opts TrackerOptions, logger *slog.Logger) *TaskTracker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	return &TaskTracker{
		backend: backend,
		sched:   sched,
		opts:    opts,
		logger:  logger,
		state:   TaskState{Phase: PhaseIdle},
	}
}

// OnChange registers a callback invoked with every new state.
func (t *TaskTracker) OnChange(fn func(TaskState)) {
	t.onChange = fn
}

// State returns the current state.
func (t *TaskTracker) State() TaskState {
	return t.state
}

// SubmitSingle submits one video URL.
func (t *TaskTracker) SubmitSingle(req domain.SingleRequest) error {
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	return t.submit(KindSingle, validation.Request(req), func(ctx context.Context) (*domain.Task, error) {
		return t.backend.SubmitSingle(ctx, req)
	})
}

// SubmitAudio uploads a local audio file.
func (t *TaskTracker) SubmitAudio(req domain.AudioRequest) error {
	return t.submit(KindAudio, validation.Request(req), func(ctx context.Context) (*domain.Task, error) {
		return t.backend.SubmitAudio(ctx, req)
	})
}

// SubmitBatch submits newline-separated URLs as one job.
func (t *TaskTracker) SubmitBatch(text string, opts domain.ProcessOptions) error {
	req := domain.BatchRequest{URLs: domain.ParseURLList(text), ProcessOptions: opts}
	return t.submit(KindBatch, validation.Batch(req, t.opts.MaxBatchURLs), func(ctx context.Context) (*domain.Task, error) {
		return t.backend.SubmitBatch(ctx, req)
	})
}

// SubmitSubtitle requests subtitle generation for a local video.
func (t *TaskTracker) SubmitSubtitle(req domain.SubtitleRequest) error {
	req.VideoPath = strings.TrimSpace(req.VideoPath)
	req.SubtitleTextPath = strings.TrimSpace(req.SubtitleTextPath)
	return t.submit(KindSubtitle, validation.Request(req), func(ctx context.Context) (*domain.Task, error) {
		return t.backend.SubmitSubtitle(ctx, req)
	})
}

// SubmitMultiPart submits selected parts of multi-part content.
func (t *TaskTracker) SubmitMultiPart(req domain.MultiPartRequest) error {
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	return t.submit(KindMultiPart, validation.Request(req), func(ctx context.Context) (*domain.Task, error) {
		return t.backend.SubmitMultiPart(ctx, req)
	})
}

// submit runs call off the loop unless validation already failed or the
// tracked task is still running, in which case nothing is sent and the state
// is left untouched.
func (t *TaskTracker) submit(kind string, invalid error, call func(ctx context.Context) (*domain.Task, error)) error {
	if invalid != nil {
		return invalid
	}
	if t.submitting {
		return errpkg.ErrSubmissionInFlight
	}
	if t.state.Processing && !t.state.Phase.IsTerminal() {
		return errpkg.ErrTaskInProgress
	}

	t.submitting = true
	t.setState(t.state.Submitting())

	var (
		task *domain.Task
		err  error
	)
	t.sched.Go(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, t.opts.RequestTimeout)
		defer cancel()
		task, err = call(ctx)
	}, func() {
		t.submitting = false
		if err != nil {
			t.logger.Warn("task submission failed", "kind", kind, "error", err)
			t.setState(t.state.SubmitFailed(err))
			return
		}

		metrics.TasksSubmitted.WithLabelValues(kind).Inc()
		t.logger.Info("task submitted", "kind", kind, "task_id", task.ID, "status", task.Status)
		t.Track(*task)
	})
	return nil
}

// Track seeds the state with an existing task and starts polling it.
func (t *TaskTracker) Track(task domain.Task) {
	t.setState(t.state.Submitted(task))
	_ = t.StartPolling()
}

// StartPolling (re)starts the status timer for the tracked task. Any previous
// timer is stopped first and results of its in-flight fetch are discarded.
func (t *TaskTracker) StartPolling() error {
	if t.state.Task == nil {
		return errpkg.ErrNoActiveTask
	}
	t.StopPolling()

	gen := t.generation
	taskID := t.state.Task.ID
	t.setState(t.state.PollingStarted())
	t.timer = t.sched.Every(t.opts.PollInterval, func() {
		t.poll(gen, taskID)
	})
	t.logger.Debug("polling started", "task_id", taskID, "interval", t.opts.PollInterval)
	return nil
}

// StopPolling stops the status timer, if any.
func (t *TaskTracker) StopPolling() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
	t.fetching = false
}

// Polling reports whether a status timer is running.
func (t *TaskTracker) Polling() bool {
	return t.timer != nil
}

func (t *TaskTracker) poll(gen uint64, taskID string) {
	if gen != t.generation || t.fetching {
		return
	}
	t.fetching = true
	metrics.StatusPolls.Inc()

	var (
		task *domain.Task
		err  error
	)
	t.sched.Go(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, t.opts.RequestTimeout)
		defer cancel()
		task, err = t.backend.GetStatus(ctx, taskID)
	}, func() {
		if gen != t.generation {
			return
		}
		t.fetching = false
		t.applyStatus(taskID, task, err)
	})
}

func (t *TaskTracker) applyStatus(taskID string, task *domain.Task, err error) {
	switch {
	case err == nil:
		next := t.state.StatusReceived(*task)
		if next.Phase.IsTerminal() {
			t.StopPolling()
			metrics.TasksFinished.WithLabelValues(string(task.Status)).Inc()
			t.logger.Info("task finished", "task_id", taskID, "status", task.Status)
		}
		t.setState(next)

	case errpkg.IsNotFound(err):
		t.StopPolling()
		metrics.PollFailures.WithLabelValues("not_found").Inc()
		t.logger.Warn("tracked task disappeared", "task_id", taskID)
		t.setState(t.state.TaskLost())

	case errpkg.IsServer(err):
		// Keep polling: the backend answered, the task may still be running.
		metrics.PollFailures.WithLabelValues("server_error").Inc()
		t.logger.Warn("status poll rejected", "task_id", taskID, "error", err)

	default:
		t.StopPolling()
		metrics.PollFailures.WithLabelValues("transport").Inc()
		t.logger.Error("status poll failed, polling stopped", "task_id", taskID, "error", err)
		t.setState(t.state.ConnectionLost(err))
	}
}

// Cancel asks the backend to cancel the tracked task. The terminal phase is
// only ever taken from a later status fetch.
func (t *TaskTracker) Cancel() error {
	if t.state.Phase != PhasePolling || !t.state.CanCancel || t.state.Task == nil {
		return errpkg.ErrCancelNotAllowed
	}

	taskID := t.state.Task.ID
	t.setState(t.state.CancelRequested())

	var err error
	t.sched.Go(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, t.opts.RequestTimeout)
		defer cancel()
		err = t.backend.Cancel(ctx, taskID)
	}, func() {
		if t.state.Task == nil || t.state.Task.ID != taskID {
			return
		}
		if err != nil {
			t.logger.Warn("cancel request failed", "task_id", taskID, "error", err)
			t.setState(t.state.CancelFailed(err))
			return
		}
		t.logger.Info("cancel requested", "task_id", taskID)
		t.setState(t.state.CancelAccepted())
	})
	return nil
}

// Close stops polling.
func (t *TaskTracker) Close() {
	t.StopPolling()
}

func (t *TaskTracker) setState(s TaskState) {
	t.state = s
	if t.onChange != nil {
		t.onChange(s)
	}
}
