package domain

import "strings"

// Output styles accepted by the processing endpoints.
const (
	OutputStylePDFOnly    = "pdf_only"
	OutputStylePDFWithImg = "pdf_with_img"
	OutputStyleImgOnly    = "img_only"
	OutputStyleTextOnly   = "text_only"
)

// ProcessOptions are the optional per-job overrides shared by the video and
// audio endpoints.
type ProcessOptions struct {
	DisableLLMPolish  *bool  `json:"disable_llm_polish,omitempty"`
	DisableLLMSummary *bool  `json:"disable_llm_summary,omitempty"`
	OutputStyle       string `json:"output_style,omitempty" validate:"omitempty,oneof=pdf_only pdf_with_img img_only text_only"`
}

// SingleRequest is the body of POST /api/v1/process/bilibili.
type SingleRequest struct {
	VideoURL string `json:"video_url" validate:"required"`
	ProcessOptions
}

// AudioRequest describes a local file uploaded to POST /api/v1/process/audio.
type AudioRequest struct {
	FilePath string `json:"-" validate:"required,file"`
	ProcessOptions
}

// BatchRequest is the body of POST /api/v1/process/batch.
type BatchRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,dive,required"`
	ProcessOptions
}

// SubtitleRequest is the body of POST /api/v1/subtitle/generate.
type SubtitleRequest struct {
	VideoPath        string `json:"video_path" validate:"required"`
	SubtitleTextPath string `json:"subtitle_text_path,omitempty"`
}

// MultiPartCheckRequest is the body of POST /api/v1/bilibili/check-multipart.
type MultiPartCheckRequest struct {
	VideoURL string `json:"video_url" validate:"required"`
}

// MultiPartRequest is the body of POST /api/v1/process/multipart.
type MultiPartRequest struct {
	VideoURL      string `json:"video_url" validate:"required"`
	SelectedParts []int  `json:"selected_parts" validate:"required,min=1,dive,gt=0"`
	ProcessOptions
}

// ParseURLList splits free text on newlines, trims every line and drops blanks.
func ParseURLList(text string) []string {
	lines := strings.Split(text, "\n")
	urls := make([]string, 0, len(lines))
	for _, line := range lines {
		if u := strings.TrimSpace(line); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}
