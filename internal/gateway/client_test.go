package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/media-taskdesk/internal/domain"
	errpkg "github.com/veranemoloko/media-taskdesk/internal/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	calls atomic.Int32
	mu    sync.Mutex
	last  map[string]any
}

func (f *fakeBackend) setLast(body map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = body
}

func (f *fakeBackend) lastBody() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeBackend) router(t *testing.T) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.calls.Add(1)
			assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
			next.ServeHTTP(w, r)
		})
	})

	decode := func(r *http.Request) map[string]any {
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.setLast(body)
		return body
	}

	r.Post(PathProcessSingle, func(w http.ResponseWriter, r *http.Request) {
		decode(r)
		writeJSON(w, http.StatusOK, map[string]any{"task_id": "T1", "status": "pending"})
	})
	r.Post(PathProcessBatch, func(w http.ResponseWriter, r *http.Request) {
		decode(r)
		writeJSON(w, http.StatusOK, map[string]any{"task_id": "B1"})
	})
	r.Post(PathSubtitleGenerate, func(w http.ResponseWriter, r *http.Request) {
		decode(r)
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "video not found"})
	})
	r.Post(PathProcessMultiPart, func(w http.ResponseWriter, r *http.Request) {
		decode(r)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"unexpected": true})
	})
	r.Post(PathProcessAudio, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		f.setLast(map[string]any{
			"file_name":    header.Filename,
			"content":      string(data),
			"output_style": r.FormValue("output_style"),
		})
		writeJSON(w, http.StatusOK, map[string]any{"task_id": "A1", "status": "pending"})
	})
	r.Post(PathCheckMultiPart, func(w http.ResponseWriter, r *http.Request) {
		if decode(r)["video_url"] == "https://b23.tv/single" {
			writeJSON(w, http.StatusOK, map[string]any{"is_multipart": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"is_multipart": true,
			"info": map[string]any{
				"main_title":  "series",
				"total_parts": 2,
				"parts": []map[string]any{
					{"part_number": 1, "title": "intro", "duration": 61},
					{"part_number": 2, "title": "outro"},
				},
			},
		})
	})
	r.Get("/api/v1/task/{taskID}", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "taskID") {
		case "T1":
			writeJSON(w, http.StatusOK, map[string]any{"task_id": "T1", "status": "completed", "result": map[string]any{"title": "demo"}})
		case "garbled":
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, "{not json")
		default:
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "任务不存在"})
		}
	})
	r.Post("/api/v1/task/{taskID}/cancel", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"task_id": chi.URLParam(r, "taskID"), "message": "ok", "status": "cancelled"})
	})
	r.Get(PathTaskList, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"tasks": nil, "total": 0})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func newTestClient(t *testing.T) (*Client, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	server := httptest.NewServer(backend.router(t))
	t.Cleanup(server.Close)
	return NewClient(server.URL, 2*time.Second, 3, newTestLogger()), backend
}

func TestClient_ValidationPerformsNoRequest(t *testing.T) {
	client, backend := newTestClient(t)
	ctx := context.Background()

	_, err := client.SubmitSingle(ctx, domain.SingleRequest{VideoURL: "   "})
	assert.True(t, errpkg.IsValidation(err))

	_, err = client.SubmitAudio(ctx, domain.AudioRequest{})
	assert.True(t, errpkg.IsValidation(err))

	_, err = client.SubmitBatch(ctx, domain.BatchRequest{URLs: domain.ParseURLList("\n  \n")})
	assert.True(t, errpkg.IsValidation(err))

	_, err = client.SubmitBatch(ctx, domain.BatchRequest{URLs: []string{"a", "b", "c", "d"}})
	assert.True(t, errpkg.IsValidation(err))

	_, err = client.SubmitSubtitle(ctx, domain.SubtitleRequest{})
	assert.True(t, errpkg.IsValidation(err))

	_, err = client.SubmitMultiPart(ctx, domain.MultiPartRequest{VideoURL: "https://b23.tv/x"})
	assert.True(t, errpkg.IsValidation(err))

	_, err = client.CheckMultiPart(ctx, "")
	assert.True(t, errpkg.IsValidation(err))

	assert.Equal(t, int32(0), backend.calls.Load())
}

func TestClient_SubmitSingle(t *testing.T) {
	client, backend := newTestClient(t)

	task, err := client.SubmitSingle(context.Background(), domain.SingleRequest{VideoURL: " https://b23.tv/x "})
	require.NoError(t, err)

	assert.Equal(t, "T1", task.ID)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, "https://b23.tv/x", backend.lastBody()["video_url"])
}

func TestClient_SubmitBatchSeedsPending(t *testing.T) {
	client, backend := newTestClient(t)

	task, err := client.SubmitBatch(context.Background(), domain.BatchRequest{URLs: domain.ParseURLList("https://b23.tv/a\n\nhttps://b23.tv/b")})
	require.NoError(t, err)

	assert.Equal(t, "B1", task.ID)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, []any{"https://b23.tv/a", "https://b23.tv/b"}, backend.lastBody()["urls"])
}

func TestClient_SubmitAudioUploadsFile(t *testing.T) {
	client, backend := newTestClient(t)

	path := filepath.Join(t.TempDir(), "lecture.mp3")
	require.NoError(t, os.WriteFile(path, []byte("audio-bytes"), 0o644))

	task, err := client.SubmitAudio(context.Background(), domain.AudioRequest{
		FilePath:       path,
		ProcessOptions: domain.ProcessOptions{OutputStyle: domain.OutputStylePDFOnly},
	})
	require.NoError(t, err)

	assert.Equal(t, "A1", task.ID)
	assert.Equal(t, "lecture.mp3", backend.lastBody()["file_name"])
	assert.Equal(t, "audio-bytes", backend.lastBody()["content"])
	assert.Equal(t, "pdf_only", backend.lastBody()["output_style"])
}

func TestClient_ServerErrorDetail(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.SubmitSubtitle(context.Background(), domain.SubtitleRequest{VideoPath: "/videos/a.mp4"})
	var serr *errpkg.ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.StatusCode)
	assert.Equal(t, "video not found", serr.Detail)

	_, err = client.SubmitMultiPart(context.Background(), domain.MultiPartRequest{VideoURL: "https://b23.tv/x", SelectedParts: []int{1}})
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "request failed with status 500", serr.Detail)
}

func TestClient_CheckMultiPart(t *testing.T) {
	client, _ := newTestClient(t)

	single, err := client.CheckMultiPart(context.Background(), "https://b23.tv/single")
	require.NoError(t, err)
	assert.False(t, single.IsMultiPart)
	assert.Nil(t, single.Info)

	multi, err := client.CheckMultiPart(context.Background(), "https://b23.tv/series")
	require.NoError(t, err)
	require.True(t, multi.IsMultiPart)
	assert.Equal(t, []string{"1", "2"}, multi.Info.PartIDs())
	assert.Equal(t, "intro", multi.Info.Parts[0].Title)
	assert.Equal(t, float64(61), multi.Info.Parts[0].Duration)
}

func TestClient_GetStatus(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	task, err := client.GetStatus(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	title, _ := task.ResultString("title")
	assert.Equal(t, "demo", title)

	_, err = client.GetStatus(ctx, "expired")
	assert.True(t, errpkg.IsNotFound(err))

	_, err = client.GetStatus(ctx, "garbled")
	assert.True(t, errpkg.IsRequest(err))
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewClient(server.URL, time.Second, 10, newTestLogger())

	_, err := client.GetStatus(context.Background(), "T1")
	assert.True(t, errpkg.IsRequest(err))

	_, err = client.ListTasks(context.Background())
	assert.True(t, errpkg.IsRequest(err))
}

func TestClient_CancelAndList(t *testing.T) {
	client, _ := newTestClient(t)

	assert.NoError(t, client.Cancel(context.Background(), "T1"))

	tasks, err := client.ListTasks(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestClient_DownloadURL(t *testing.T) {
	client := NewClient("http://127.0.0.1:8000/", time.Second, 10, newTestLogger())
	assert.Equal(t, "http://127.0.0.1:8000/api/v1/download/T1/out%20put.pdf", client.DownloadURL("T1", "out put.pdf"))
}
