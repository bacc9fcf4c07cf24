package service

import (
	"context"

	"github.com/veranemoloko/media-taskdesk/internal/domain"
)

// TaskBackend is the part of the gateway the task tracker drives.
type TaskBackend interface {
	SubmitSingle(ctx context.Context, req domain.SingleRequest) (*domain.Task, error)
	SubmitAudio(ctx context.Context, req domain.AudioRequest) (*domain.Task, error)
	SubmitBatch(ctx context.Context, req domain.BatchRequest) (*domain.Task, error)
	SubmitSubtitle(ctx context.Context, req domain.SubtitleRequest) (*domain.Task, error)
	SubmitMultiPart(ctx context.Context, req domain.MultiPartRequest) (*domain.Task, error)
	GetStatus(ctx context.Context, taskID string) (*domain.Task, error)
	Cancel(ctx context.Context, taskID string) error
}

// TaskLister fetches the task roster.
type TaskLister interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
}

// MultiPartChecker probes a source URL for multi-part content.
type MultiPartChecker interface {
	CheckMultiPart(ctx context.Context, videoURL string) (*domain.MultiPartCheck, error)
}

// MultiPartSubmitter starts a multi-part job; implemented by TaskTracker.
type MultiPartSubmitter interface {
	SubmitMultiPart(req domain.MultiPartRequest) error
}
