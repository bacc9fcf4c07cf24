package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/veranemoloko/media-taskdesk/internal/domain"
	"github.com/veranemoloko/media-taskdesk/internal/eventloop"
	"github.com/veranemoloko/media-taskdesk/internal/metrics"
)

// RosterPoller keeps the full task list fresh on its own timer. A tick that
// fires while the previous fetch is outstanding is skipped.
type RosterPoller struct {
	lister   TaskLister
	sched    eventloop.Scheduler
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	tasks    []domain.Task
	inFlight bool
	lastErr  error
	timer    eventloop.Timer
	onChange func([]domain.Task)
}

// NewRosterPoller creates a stopped poller.
func NewRosterPoller(lister TaskLister, sched eventloop.Scheduler, interval, timeout time.Duration, logger *slog.Logger) *RosterPoller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RosterPoller{
		lister:   lister,
		sched:    sched,
		interval: interval,
		timeout:  timeout,
		logger:   logger,
		tasks:    []domain.Task{},
	}
}

// OnChange registers a callback invoked after each successful refresh.
func (p *RosterPoller) OnChange(fn func([]domain.Task)) {
	p.onChange = fn
}

// Start fetches the roster once and then on every interval.
func (p *RosterPoller) Start() {
	p.Stop()
	p.Refresh()
	p.timer = p.sched.Every(p.interval, func() {
		p.Refresh()
	})
}

// Stop stops the timer. An outstanding fetch still lands.
func (p *RosterPoller) Stop() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// Refresh starts a fetch and reports whether it did; it does nothing while
// another fetch is outstanding.
func (p *RosterPoller) Refresh() bool {
	if p.inFlight {
		metrics.RosterTicksSkipped.Inc()
		p.logger.Debug("task list fetch still in flight, skipping tick")
		return false
	}
	p.inFlight = true

	var (
		tasks []domain.Task
		err   error
	)
	p.sched.Go(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		tasks, err = p.lister.ListTasks(ctx)
	}, func() {
		p.inFlight = false
		p.lastErr = err
		if err != nil {
			p.logger.Warn("failed to refresh task list", "error", err)
			return
		}

		metrics.RosterRefreshes.Inc()
		domain.SortNewestFirst(tasks)
		p.tasks = tasks
		if p.onChange != nil {
			p.onChange(p.Tasks())
		}
	})
	return true
}

// Tasks returns a copy of the roster, newest first.
func (p *RosterPoller) Tasks() []domain.Task {
	out := make([]domain.Task, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// InFlight reports whether a fetch is outstanding.
func (p *RosterPoller) InFlight() bool {
	return p.inFlight
}

// Err returns the error of the last fetch, if it failed.
func (p *RosterPoller) Err() error {
	return p.lastErr
}
