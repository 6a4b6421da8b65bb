// Package backend implements the HTTP client for the video-processing
// backend: format lookup, uploads, task status and file downloads.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxResponseBody bounds how much of a JSON reply is read.
const maxResponseBody = 64 << 20

// MaxTaskItems bounds the item count a status snapshot may report.
const MaxTaskItems = 10000

// Config holds the configuration for a backend client.
type Config struct {
	BaseURL string
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
}

// Client talks to the video-processing backend.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new backend client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With().Str("component", "backend").Logger(),
	}
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// LinkURL resolves a backend-relative link such as /download/a.mp4.
func (c *Client) LinkURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.config.BaseURL + path
}

// FetchFormats lists the downloadable variants of a video URL.
func (c *Client) FetchFormats(ctx context.Context, videoURL string) (*VideoInfo, error) {
	resp, err := c.doJSON(ctx, "fetch formats", "/fetch-formats", map[string]string{"url": videoURL})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var info VideoInfo
	if err := c.decode("fetch formats", resp, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DownloadVideo asks the backend to download one variant. The call blocks
// until the backend has produced the file.
func (c *Client) DownloadVideo(ctx context.Context, videoURL, formatID string) (*FileResult, error) {
	body := map[string]string{
		"url":       videoURL,
		"format_id": formatID,
	}
	resp, err := c.doJSON(ctx, "download video", "/download-video", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result FileResult
	if err := c.decode("download video", resp, &result); err != nil {
		return nil, err
	}
	if result.File == "" {
		return nil, &TransportError{Op: "download video", Err: fmt.Errorf("response carries no file")}
	}
	return &result, nil
}

// StartCompression uploads files for compression and returns the task id.
func (c *Client) StartCompression(ctx context.Context, files []string, codec string) (string, error) {
	uploads := make([]Upload, 0, len(files))
	for _, f := range files {
		uploads = append(uploads, Upload{Field: "videos", Path: f})
	}

	resp, err := c.doMultipart(ctx, "start compression", "/start", uploads, map[string]string{"codec": codec})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result StartResult
	if err := c.decode("start compression", resp, &result); err != nil {
		return "", err
	}
	if result.TaskID == "" {
		return "", &TransportError{Op: "start compression", Err: fmt.Errorf("response carries no task_id")}
	}
	return result.TaskID, nil
}

// Status fetches the current snapshot of a task. A snapshot with status
// "error" is returned as a value, not as an error.
func (c *Client) Status(ctx context.Context, taskID string) (*StatusSnapshot, error) {
	const op = "task status"

	resp, err := c.do(ctx, op, http.MethodGet, "/status/"+url.PathEscape(taskID), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.decode(op, resp, nil)
	}

	var snap StatusSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to decode status: %w", err)}
	}
	if snap.Status == "" {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("status missing from response")}
	}
	if snap.Total < 0 || snap.Total > MaxTaskItems || len(snap.Files) > MaxTaskItems {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("implausible item count %d", snap.Total)}
	}
	return &snap, nil
}

// SplitVideo uploads a video and trims it to [Start, End] seconds.
func (c *Client) SplitVideo(ctx context.Context, req SplitRequest) (*FileResult, error) {
	uploads := []Upload{{Field: "video", Path: req.Video}}
	resp, err := c.doMultipart(ctx, "split video", "/split-video", uploads, req.Fields())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result FileResult
	if err := c.decode("split video", resp, &result); err != nil {
		return nil, err
	}
	if result.Status != "done" {
		return nil, &TransportError{Op: "split video", Err: fmt.Errorf("unexpected status %q", result.Status)}
	}
	if result.File == "" {
		return nil, &TransportError{Op: "split video", Err: fmt.Errorf("response carries no file")}
	}
	return &result, nil
}

// ProcessVideo runs the generic video operations endpoint.
func (c *Client) ProcessVideo(ctx context.Context, req VideoOpsRequest) (*FileResult, error) {
	resp, err := c.doMultipart(ctx, "process video", "/api/video-ops/process", req.Uploads(), req.Fields())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result FileResult
	if err := c.decode("process video", resp, &result); err != nil {
		return nil, err
	}
	if result.File == "" && result.DownloadURL == "" {
		return nil, &TransportError{Op: "process video", Err: fmt.Errorf("response carries neither file nor download_url")}
	}
	return &result, nil
}

// Fetch streams a produced file into w and returns the number of bytes.
func (c *Client) Fetch(ctx context.Context, link string, w io.Writer) (int64, error) {
	const op = "fetch file"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.LinkURL(link), nil)
	if err != nil {
		return 0, &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	c.tag(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.decode(op, resp, nil)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &TransportError{Op: op, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	return n, nil
}

func (c *Client) doJSON(ctx context.Context, op, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, op, http.MethodPost, path, bytes.NewReader(data), "application/json")
}

// doMultipart streams the files through a pipe so large videos are never
// held in memory.
func (c *Client) doMultipart(ctx context.Context, op, path string, uploads []Upload, fields map[string]string) (*http.Response, error) {
	for _, u := range uploads {
		if _, err := os.Stat(u.Path); err != nil {
			return nil, Invalid(ErrNoFiles, fmt.Sprintf("cannot read %s: %v", u.Path, err))
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeMultipart(mw, uploads, fields))
	}()

	resp, err := c.do(ctx, op, http.MethodPost, path, pr, mw.FormDataContentType())
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return resp, nil
}

func writeMultipart(mw *multipart.Writer, uploads []Upload, fields map[string]string) error {
	for _, u := range uploads {
		part, err := mw.CreateFormFile(u.Field, filepath.Base(u.Path))
		if err != nil {
			return err
		}
		f, err := os.Open(u.Path)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	return mw.Close()
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := c.tag(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Str("requestId", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Backend request")

	return resp, nil
}

func (c *Client) tag(req *http.Request) string {
	id := uuid.NewString()
	req.Header.Set("X-Request-ID", id)
	return id
}

// decode interprets a response body. A non-null "error" field wins over
// the HTTP status; otherwise non-2xx replies are transport errors.
func (c *Client) decode(op string, resp *http.Response, out any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var eb errorBody
	if json.Unmarshal(data, &eb) == nil && eb.Error != nil {
		return &BackendError{Op: op, StatusCode: resp.StatusCode, Message: *eb.Error}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
