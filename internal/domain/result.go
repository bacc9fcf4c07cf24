package domain

// FileResult reports the download of one result file of a completed task.
type FileResult struct {
	TaskID    string `json:"task_id"`
	FileName  string `json:"file_name"`
	Path      string `json:"path,omitempty"`
	BytesRead int64  `json:"bytes_read"`
	Resumed   bool   `json:"resumed,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// ResultFiles lists the files a finished task produced. Tasks that report a
// single file only carry it in FileName.
func (t Task) ResultFiles() []string {
	if len(t.Files) > 0 {
		return t.Files
	}
	if t.FileName != "" {
		return []string{t.FileName}
	}
	return nil
}
