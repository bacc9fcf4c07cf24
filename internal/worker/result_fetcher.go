package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/media-taskdesk/internal/domain"
	errpkg "github.com/veranemoloko/media-taskdesk/internal/errors"
	"github.com/veranemoloko/media-taskdesk/internal/storage"
)

// URLBuilder resolves the download address of a task's result file.
type URLBuilder interface {
	DownloadURL(taskID, fileName string) string
}

// ResultFetcher downloads the result files of completed tasks into
// FileStorage.
type ResultFetcher struct {
	fileStorage *storage.FileStorage
	urls        URLBuilder
	httpClient  *http.Client
	limit       int
	logger      *slog.Logger
}

// NewResultFetcher creates a fetcher running at most limit downloads at once.
func NewResultFetcher(fileStorage *storage.FileStorage, urls URLBuilder, httpClient *http.Client, limit int, logger *slog.Logger) *ResultFetcher {
	if limit <= 0 {
		limit = 4
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ResultFetcher{
		fileStorage: fileStorage,
		urls:        urls,
		httpClient:  httpClient,
		limit:       limit,
		logger:      logger,
	}
}

// FetchFile downloads one result file, resuming a partial copy with a Range
// request when the server supports it.
func (f *ResultFetcher) FetchFile(ctx context.Context, taskID, fileName string) (domain.FileResult, error) {
	result := domain.FileResult{TaskID: taskID, FileName: fileName}

	path, err := f.fileStorage.Path(taskID, fileName)
	if err != nil {
		result.Error = err.Error()
		return result, &errpkg.ValidationError{Field: "file_name", Reason: err.Error()}
	}
	result.Path = path

	if err := f.fileStorage.EnsureTaskDir(taskID); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("create task dir: %w", err)
	}

	existingSize, _ := f.fileStorage.FileSize(taskID, fileName)

	url := f.urls.DownloadURL(taskID, fileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		return result, &errpkg.RequestError{Op: "download result", Err: err}
	}
	if existingSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", existingSize))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		result.Error = err.Error()
		f.logger.Error("result download request failed", "task_id", taskID, "file_name", fileName, "error", err)
		return result, &errpkg.RequestError{Op: "download result", Err: err}
	}
	defer resp.Body.Close()

	// The whole file is already here.
	if existingSize > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
		result.BytesRead = existingSize
		result.Resumed = true
		result.Success = true
		return result, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("bad status: %s", resp.Status)
		f.logger.Error("result download failed", "task_id", taskID, "file_name", fileName, "status", resp.Status)
		if resp.StatusCode == http.StatusNotFound {
			return result, &errpkg.NotFoundError{TaskID: taskID}
		}
		return result, &errpkg.ServerError{StatusCode: resp.StatusCode, Detail: resp.Status}
	}

	if existingSize > 0 && resp.StatusCode != http.StatusPartialContent {
		existingSize = 0
	}

	var file *os.File
	if existingSize > 0 {
		file, err = f.fileStorage.AppendFile(taskID, fileName)
	} else {
		file, err = f.fileStorage.CreateFile(taskID, fileName)
	}
	if err != nil {
		result.Error = fmt.Sprintf("open file: %v", err)
		return result, fmt.Errorf("open result file: %w", err)
	}
	defer file.Close()

	n, err := copyWithContext(ctx, file, resp.Body)
	if err != nil {
		result.Error = fmt.Sprintf("copy data: %v", err)
		f.logger.Error("result download interrupted", "task_id", taskID, "file_name", fileName, "bytes", n, "error", err)
		return result, fmt.Errorf("copy result file: %w", err)
	}

	result.BytesRead = existingSize + n
	result.Resumed = existingSize > 0
	result.Success = true
	f.logger.Info("result file downloaded", "task_id", taskID, "file_name", fileName, "bytes", result.BytesRead, "resumed", result.Resumed)
	return result, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			total += int64(nw)
			if werr != nil {
				return total, werr
			}
			if nr != nw {
				return total, io.ErrShortWrite
			}
		}
		if errors.Is(rerr, io.EOF) {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// FetchAll downloads every result file of a completed task. Results keep the
// order of task.ResultFiles; the first error cancels the remaining downloads.
func (f *ResultFetcher) FetchAll(ctx context.Context, task domain.Task) ([]domain.FileResult, error) {
	if task.Status != domain.TaskStatusCompleted {
		return nil, fmt.Errorf("task %s is %s, not completed", task.ID, task.Status)
	}

	files := task.ResultFiles()
	results := make([]domain.FileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.limit)

	for i, name := range files {
		g.Go(func() error {
			result, err := f.FetchFile(ctx, task.ID, name)
			results[i] = result
			return err
		})
	}

	if err := g.Wait(); err != nil {
		f.logger.Error("result download failed", "task_id", task.ID, "error", err)
		return results, fmt.Errorf("download results of %s: %w", task.ID, err)
	}
	return results, nil
}
