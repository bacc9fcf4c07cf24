package gateway

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/veranemoloko/media-taskdesk/internal/domain"
	errpkg "github.com/veranemoloko/media-taskdesk/internal/errors"
	"github.com/veranemoloko/media-taskdesk/internal/validation"
)

// Endpoint paths of the backend HTTP surface.
const (
	PathProcessSingle    = "/api/v1/process/bilibili"
	PathProcessAudio     = "/api/v1/process/audio"
	PathProcessBatch     = "/api/v1/process/batch"
	PathSubtitleGenerate = "/api/v1/subtitle/generate"
	PathCheckMultiPart   = "/api/v1/bilibili/check-multipart"
	PathProcessMultiPart = "/api/v1/process/multipart"
	PathTaskList         = "/api/v1/tasks"
	pathTask             = "/api/v1/task/"
	pathDownload         = "/api/v1/download/"
)

// SubmitSingle submits one video URL.
func (c *Client) SubmitSingle(ctx context.Context, req domain.SingleRequest) (*domain.Task, error) {
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	if err := validation.Request(req); err != nil {
		return nil, err
	}
	return c.submit(ctx, "submit single", PathProcessSingle, req)
}

// SubmitBatch submits several video URLs as one task.
func (c *Client) SubmitBatch(ctx context.Context, req domain.BatchRequest) (*domain.Task, error) {
	if err := validation.Batch(req, c.maxBatchURLs); err != nil {
		return nil, err
	}
	return c.submit(ctx, "submit batch", PathProcessBatch, req)
}

// SubmitSubtitle asks the backend to generate subtitles for a local video.
func (c *Client) SubmitSubtitle(ctx context.Context, req domain.SubtitleRequest) (*domain.Task, error) {
	req.VideoPath = strings.TrimSpace(req.VideoPath)
	req.SubtitleTextPath = strings.TrimSpace(req.SubtitleTextPath)
	if err := validation.Request(req); err != nil {
		return nil, err
	}
	return c.submit(ctx, "submit subtitle", PathSubtitleGenerate, req)
}

// SubmitMultiPart submits the selected parts of multi-part content.
func (c *Client) SubmitMultiPart(ctx context.Context, req domain.MultiPartRequest) (*domain.Task, error) {
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	if err := validation.Request(req); err != nil {
		return nil, err
	}
	return c.submit(ctx, "submit multipart", PathProcessMultiPart, req)
}

// SubmitAudio uploads a local audio file as multipart form data.
func (c *Client) SubmitAudio(ctx context.Context, req domain.AudioRequest) (*domain.Task, error) {
	if err := validation.Request(req); err != nil {
		return nil, err
	}

	file, err := os.Open(req.FilePath)
	if err != nil {
		return nil, &errpkg.ValidationError{Field: "file", Reason: err.Error()}
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		defer file.Close()
		pw.CloseWithError(writeAudioForm(form, file, req))
	}()

	var task domain.Task
	err = c.do(ctx, "submit audio", http.MethodPost, PathProcessAudio, pr, form.FormDataContentType(), &task)
	pr.Close()
	if err != nil {
		return nil, err
	}
	return checkSeeded(&task, "submit audio")
}

func writeAudioForm(form *multipart.Writer, file *os.File, req domain.AudioRequest) error {
	part, err := form.CreateFormFile("file", filepath.Base(req.FilePath))
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy audio file: %w", err)
	}

	fields := map[string]string{}
	if req.DisableLLMPolish != nil {
		fields["disable_llm_polish"] = strconv.FormatBool(*req.DisableLLMPolish)
	}
	if req.DisableLLMSummary != nil {
		fields["disable_llm_summary"] = strconv.FormatBool(*req.DisableLLMSummary)
	}
	if req.OutputStyle != "" {
		fields["output_style"] = req.OutputStyle
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}
	return form.Close()
}

// CheckMultiPart probes whether url resolves to multi-part content.
func (c *Client) CheckMultiPart(ctx context.Context, videoURL string) (*domain.MultiPartCheck, error) {
	req := domain.MultiPartCheckRequest{VideoURL: strings.TrimSpace(videoURL)}
	if err := validation.Request(req); err != nil {
		return nil, err
	}

	var check domain.MultiPartCheck
	if err := c.postJSON(ctx, "check multipart", PathCheckMultiPart, req, &check); err != nil {
		return nil, err
	}
	if check.IsMultiPart && (check.Info == nil || len(check.Info.Parts) == 0) {
		return nil, &errpkg.RequestError{Op: "check multipart", Err: fmt.Errorf("multi-part response without parts")}
	}
	if !check.IsMultiPart {
		check.Info = nil
	}
	return &check, nil
}

// GetStatus fetches the current state of a task. A 404 yields *NotFoundError.
func (c *Client) GetStatus(ctx context.Context, taskID string) (*domain.Task, error) {
	if err := validation.Required("task_id", taskID); err != nil {
		return nil, err
	}

	var task domain.Task
	err := c.do(ctx, "get status", http.MethodGet, pathTask+url.PathEscape(taskID), nil, "", &task)
	if serr, ok := asServerError(err); ok && serr.StatusCode == http.StatusNotFound {
		return nil, &errpkg.NotFoundError{TaskID: taskID}
	}
	if err != nil {
		return nil, err
	}
	if task.ID == "" {
		task.ID = taskID
	}
	return &task, nil
}

// Cancel requests cancellation. It does not wait for the task to stop.
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	if err := validation.Required("task_id", taskID); err != nil {
		return err
	}
	return c.do(ctx, "cancel", http.MethodPost, pathTask+url.PathEscape(taskID)+"/cancel", nil, "", nil)
}

// ListTasks fetches the full task roster. An empty roster is not an error.
func (c *Client) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var list domain.TaskList
	if err := c.do(ctx, "list tasks", http.MethodGet, PathTaskList, nil, "", &list); err != nil {
		return nil, err
	}
	if list.Tasks == nil {
		return []domain.Task{}, nil
	}
	return list.Tasks, nil
}

// DownloadURL returns the address of one result file of a task.
func (c *Client) DownloadURL(taskID, fileName string) string {
	return c.baseURL + pathDownload + url.PathEscape(taskID) + "/" + url.PathEscape(fileName)
}

func (c *Client) submit(ctx context.Context, op, path string, payload any) (*domain.Task, error) {
	var task domain.Task
	if err := c.postJSON(ctx, op, path, payload, &task); err != nil {
		return nil, err
	}
	return checkSeeded(&task, op)
}

func checkSeeded(task *domain.Task, op string) (*domain.Task, error) {
	if task.ID == "" {
		return nil, &errpkg.RequestError{Op: op, Err: fmt.Errorf("response is missing task_id")}
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	return task, nil
}
