package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// TaskStatus is the lifecycle state reported by /status/:task_id.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusDone       TaskStatus = "done"
	StatusError      TaskStatus = "error"
)

// Terminal reports whether polling should stop at this status.
func (s TaskStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// StatusSnapshot is one status report for a task.
type StatusSnapshot struct {
	Status  TaskStatus `json:"status"`
	Current int        `json:"current"`
	Total   int        `json:"total"`
	Percent float64    `json:"percent"`
	File    string     `json:"file,omitempty"`
	Files   []string   `json:"files,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Label decodes a JSON value that the backend sends either as a string or
// as a number, such as a resolution of 720 or "Audio".
type Label string

func (l *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Label(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = Label(n.String())
	return nil
}

func (l Label) String() string {
	return string(l)
}

// Format is one downloadable encoding variant of a source video.
type Format struct {
	FormatID          Label  `json:"format_id" yaml:"format_id"`
	Resolution        Label  `json:"resolution" yaml:"resolution"`
	DisplayResolution string `json:"display_resolution,omitempty" yaml:"display_resolution,omitempty"`
	Ext               string `json:"ext" yaml:"ext"`
	SizeStr           string `json:"size_str,omitempty" yaml:"size_str,omitempty"`
	Filesize          *int64 `json:"filesize,omitempty" yaml:"filesize,omitempty"`
	FormatNote        string `json:"format_note,omitempty" yaml:"format_note,omitempty"`
}

// VideoInfo is the /fetch-formats response.
type VideoInfo struct {
	Title     string   `json:"title" yaml:"title"`
	Thumbnail string   `json:"thumbnail" yaml:"thumbnail"`
	Formats   []Format `json:"formats" yaml:"formats"`
}

// FileResult is the immediate response of the synchronous endpoints.
type FileResult struct {
	Status      string `json:"status,omitempty"`
	File        string `json:"file,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// StartResult is the /start response.
type StartResult struct {
	TaskID string `json:"task_id"`
}

// errorBody is decoded from every response to detect backend errors.
type errorBody struct {
	Error *string `json:"error"`
}

// Upload is a local file sent as one multipart part.
type Upload struct {
	Field string
	Path  string
}

// SplitRequest describes a /split-video call.
type SplitRequest struct {
	Video string
	Start float64
	End   float64
}

// Fields returns the non-file form values.
func (r SplitRequest) Fields() map[string]string {
	return map[string]string{
		"start": strconv.FormatFloat(r.Start, 'f', -1, 64),
		"end":   strconv.FormatFloat(r.End, 'f', -1, 64),
	}
}

// VideoOpsRequest describes a /api/video-ops/process call.
type VideoOpsRequest struct {
	Video             string
	Threshold         *float64
	BackgroundColor   string
	BackgroundImage   string
	BackgroundVideo   string
	PredefinedBgImage string
	PredefinedBgVideo string
	RemoveVoice       bool
}

// Fields returns the non-file form values. remove_voice is only sent when
// enabled; the backend treats any other value as disabled.
func (r VideoOpsRequest) Fields() map[string]string {
	fields := make(map[string]string)
	if r.Threshold != nil {
		fields["threshold"] = strconv.FormatFloat(*r.Threshold, 'f', -1, 64)
	}
	if r.BackgroundColor != "" {
		fields["background_color"] = r.BackgroundColor
	}
	if r.PredefinedBgImage != "" {
		fields["predefined_bg_image"] = r.PredefinedBgImage
	}
	if r.PredefinedBgVideo != "" {
		fields["predefined_bg_video"] = r.PredefinedBgVideo
	}
	if r.RemoveVoice {
		fields["remove_voice"] = "true"
	}
	return fields
}

// Uploads returns the file parts of the request.
func (r VideoOpsRequest) Uploads() []Upload {
	uploads := []Upload{{Field: "video_file", Path: r.Video}}
	if r.BackgroundImage != "" {
		uploads = append(uploads, Upload{Field: "background_image", Path: r.BackgroundImage})
	}
	if r.BackgroundVideo != "" {
		uploads = append(uploads, Upload{Field: "background_video", Path: r.BackgroundVideo})
	}
	return uploads
}
