package service

import (
	"github.com/veranemoloko/media-taskdesk/internal/domain"
)

// Phase is the client-side lifecycle of the tracked task.
//
//	idle -> submitted -> polling -> completed | failed | cancelled
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSubmitted Phase = "submitted"
	PhasePolling   Phase = "polling"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// IsTerminal reports whether the phase accepts no further transitions.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice is a user-facing message. How it is shown is up to the caller.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// TaskState is everything the presentation layer needs about the tracked
// task. Transitions are value methods that return the next state and never
// modify the receiver.
type TaskState struct {
	Phase      Phase
	Task       *domain.Task
	Result     map[string]any
	Processing bool
	CanCancel  bool
	Notice     *Notice
}

// Submitting marks a submission request as outstanding.
func (s TaskState) Submitting() TaskState {
	s.Processing = true
	s.Result = nil
	s.Notice = nil
	return s
}

// SubmitFailed aborts a submission attempt.
func (s TaskState) SubmitFailed(err error) TaskState {
	s.Processing = false
	s.Notice = &Notice{Level: NoticeError, Message: err.Error()}
	return s
}

// Submitted seeds the state with the task the backend just created.
func (s TaskState) Submitted(task domain.Task) TaskState {
	return TaskState{
		Phase:      PhaseSubmitted,
		Task:       &task,
		Processing: true,
		CanCancel:  true,
	}
}

// PollingStarted moves a submitted task into polling.
func (s TaskState) PollingStarted() TaskState {
	if s.Phase == PhaseSubmitted {
		s.Phase = PhasePolling
	}
	return s
}

// StatusReceived applies a fetched status. Updates for another task, or for
// a task that already reached a terminal phase, are ignored.
func (s TaskState) StatusReceived(task domain.Task) TaskState {
	if s.Phase != PhasePolling || s.Task == nil || s.Task.ID != task.ID {
		return s
	}
	s.Task = &task

	switch task.Status {
	case domain.TaskStatusCompleted:
		s.Phase = PhaseCompleted
		s.Result = task.Result
		s.Notice = &Notice{Level: NoticeInfo, Message: "task completed"}
	case domain.TaskStatusFailed:
		s.Phase = PhaseFailed
		msg := task.Error
		if msg == "" {
			msg = "unknown error"
		}
		s.Notice = &Notice{Level: NoticeError, Message: "task failed: " + msg}
	case domain.TaskStatusCancelled:
		s.Phase = PhaseCancelled
		s.Notice = &Notice{Level: NoticeInfo, Message: "task cancelled"}
	default:
		return s
	}

	s.Processing = false
	s.CanCancel = false
	return s
}

// TaskLost resets the state after the backend stopped knowing the task.
func (s TaskState) TaskLost() TaskState {
	s.Phase = PhaseIdle
	s.Processing = false
	s.CanCancel = false
	s.Notice = &Notice{Level: NoticeWarn, Message: "task no longer exists on the backend"}
	return s
}

// ConnectionLost resets the state after a status fetch got no response.
func (s TaskState) ConnectionLost(err error) TaskState {
	s.Phase = PhaseIdle
	s.Processing = false
	s.CanCancel = false
	s.Notice = &Notice{Level: NoticeError, Message: "lost connection to the backend: " + err.Error()}
	return s
}

// CancelRequested records that a cancel request was sent for this task.
func (s TaskState) CancelRequested() TaskState {
	s.CanCancel = false
	return s
}

// CancelAccepted acknowledges the request; the terminal phase still comes
// from the next status fetch.
func (s TaskState) CancelAccepted() TaskState {
	s.Notice = &Notice{Level: NoticeInfo, Message: "cancellation requested"}
	return s
}

// CancelFailed re-enables cancelling while the task is still being polled.
func (s TaskState) CancelFailed(err error) TaskState {
	if s.Phase == PhasePolling {
		s.CanCancel = true
	}
	s.Notice = &Notice{Level: NoticeError, Message: "cancel failed: " + err.Error()}
	return s
}
