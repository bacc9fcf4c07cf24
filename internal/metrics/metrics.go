package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskdesk_tasks_submitted_total",
		Help: "Total number of tasks accepted by the backend, by job kind",
	}, []string{"kind"})

	TasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskdesk_tasks_finished_total",
		Help: "Total number of tracked tasks that reached a terminal status",
	}, []string{"status"})

	StatusPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskdesk_status_polls_total",
		Help: "Total number of task status fetches issued",
	})

	PollFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskdesk_poll_failures_total",
		Help: "Total number of status polls that ended a poll sequence or were ignored, by reason",
	}, []string{"reason"})

	RosterRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskdesk_roster_refreshes_total",
		Help: "Total number of task list fetches issued",
	})

	RosterTicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskdesk_roster_ticks_skipped_total",
		Help: "Total number of task list ticks skipped because a fetch was still in flight",
	})

	ReadinessProbes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskdesk_readiness_probes_total",
		Help: "Total number of backend readiness probes, by result",
	}, []string{"result"})

	BackendRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskdesk_backend_running",
		Help: "Whether the supervised backend process is running (1) or not (0)",
	})
)
