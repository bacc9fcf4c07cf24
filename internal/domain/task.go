package domain

import (
	"sort"
	"time"
)

// Task is one backend job as reported by the status and list endpoints.
// Timestamps are kept as sent; use Created to parse them.
type Task struct {
	ID          string         `json:"task_id"`
	Status      TaskStatus     `json:"status"`
	Message     string         `json:"message,omitempty"`
	CreatedAt   string         `json:"created_at,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
	CompletedAt string         `json:"completed_at,omitempty"`
	URL         string         `json:"url,omitempty"`
	FileName    string         `json:"file_name,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	OutputDir   string         `json:"output_dir,omitempty"`
	Files       []string       `json:"files,omitempty"`
}

// TaskList is the body of GET /api/v1/tasks.
type TaskList struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Created parses CreatedAt. The second return value is false when the
// timestamp is missing or in an unknown format.
func (t Task) Created() (time.Time, bool) {
	return parseTimestamp(t.CreatedAt)
}

// ResultString returns a string field of the result payload, if present.
func (t Task) ResultString(key string) (string, bool) {
	v, ok := t.Result[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// SortNewestFirst orders tasks by creation time, newest first. Tasks without
// a usable timestamp sort as oldest and keep their relative order.
func SortNewestFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		ti, okI := tasks[i].Created()
		tj, okJ := tasks[j].Created()
		switch {
		case okI && !okJ:
			return true
		case !okI:
			return false
		default:
			return ti.After(tj)
		}
	})
}
