package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/media-taskdesk/internal/domain"
	"github.com/veranemoloko/media-taskdesk/internal/eventloop"
)

type fakeLister struct {
	calls int
	tasks []domain.Task
	err   error
}

func (f *fakeLister) ListTasks(context.Context) ([]domain.Task, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Task, len(f.tasks))
	copy(out, f.tasks)
	return out, nil
}

func TestRosterPoller_SkipsTickWhileInFlight(t *testing.T) {
	lister := &fakeLister{}
	sched := eventloop.NewManual()
	poller := NewRosterPoller(lister, sched, 3*time.Second, time.Second, newTestLogger())

	poller.Start()
	require.True(t, poller.InFlight())
	assert.Equal(t, 1, sched.Pending())

	sched.Advance(3 * time.Second)
	sched.Advance(3 * time.Second)
	assert.Equal(t, 1, sched.Pending())

	sched.Complete()
	assert.False(t, poller.InFlight())
	assert.Equal(t, 1, lister.calls)

	sched.Advance(3 * time.Second)
	assert.Equal(t, 1, sched.Pending())
}

func TestRosterPoller_ReplacesRosterNewestFirst(t *testing.T) {
	lister := &fakeLister{tasks: []domain.Task{
		{ID: "old", CreatedAt: "2025-01-01T10:00:00"},
		{ID: "broken", CreatedAt: "yesterday"},
		{ID: "new", CreatedAt: "2025-03-01T10:00:00.123456"},
		{ID: "none"},
	}}
	sched := eventloop.NewManual()
	poller := NewRosterPoller(lister, sched, 3*time.Second, time.Second, newTestLogger())

	var seen [][]domain.Task
	poller.OnChange(func(tasks []domain.Task) { seen = append(seen, tasks) })

	poller.Start()
	sched.Complete()

	ids := []string{}
	for _, task := range poller.Tasks() {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []string{"new", "old", "broken", "none"}, ids)
	require.Len(t, seen, 1)

	lister.tasks = []domain.Task{{ID: "only"}}
	sched.Advance(3 * time.Second)
	sched.Complete()
	require.Len(t, poller.Tasks(), 1)
	assert.Equal(t, "only", poller.Tasks()[0].ID)
}

func TestRosterPoller_FailureKeepsRoster(t *testing.T) {
	lister := &fakeLister{tasks: []domain.Task{{ID: "T1"}}}
	sched := eventloop.NewManual()
	poller := NewRosterPoller(lister, sched, 3*time.Second, time.Second, newTestLogger())

	poller.Start()
	sched.Complete()
	require.Len(t, poller.Tasks(), 1)

	lister.err = errors.New("connection refused")
	sched.Advance(3 * time.Second)
	sched.Complete()

	assert.Error(t, poller.Err())
	assert.Len(t, poller.Tasks(), 1)
	assert.False(t, poller.InFlight())
}

func TestRosterPoller_Stop(t *testing.T) {
	lister := &fakeLister{}
	sched := eventloop.NewManual()
	poller := NewRosterPoller(lister, sched, 3*time.Second, time.Second, newTestLogger())

	poller.Start()
	sched.Complete()
	poller.Stop()

	sched.Advance(time.Minute)
	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, 0, sched.ActiveTimers())
}
