package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL + "/"}, zerolog.Nop())
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestClient_FetchFormats(t *testing.T) {
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fetch-formats", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://example.com/v", body["url"])

		io.WriteString(w, `{"title":"Clip","thumbnail":"https://img/t.jpg","formats":[
			{"format_id":"18","resolution":360,"display_resolution":"360p","ext":"mp4","size_str":"4.2 MB","filesize":4404019},
			{"format_id":"140","resolution":"Audio","display_resolution":"Audio","ext":"m4a","size_str":"Unknown size","filesize":null}
		]}`)
	}))

	info, err := client.FetchFormats(context.Background(), "https://example.com/v")
	require.NoError(t, err)
	assert.Equal(t, "Clip", info.Title)
	require.Len(t, info.Formats, 2)
	assert.Equal(t, Label("18"), info.Formats[0].FormatID)
	assert.Equal(t, Label("360"), info.Formats[0].Resolution)
	require.NotNil(t, info.Formats[0].Filesize)
	assert.Equal(t, int64(4404019), *info.Formats[0].Filesize)
	assert.Equal(t, Label("Audio"), info.Formats[1].Resolution)
	assert.Nil(t, info.Formats[1].Filesize)
}

func TestClient_FetchFormats_BackendError(t *testing.T) {
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"Unsupported URL: not-a-url"}`)
	}))

	_, err := client.FetchFormats(context.Background(), "not-a-url")

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, http.StatusInternalServerError, berr.StatusCode)
	assert.Equal(t, "Unsupported URL: not-a-url", UserMessage(err))
}

func TestClient_ErrorFieldOnSuccessStatus(t *testing.T) {
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":"Download failed - no file created"}`)
	}))

	_, err := client.DownloadVideo(context.Background(), "https://example.com/v", "22")

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, http.StatusOK, berr.StatusCode)
}

func TestClient_NonJSONFailure(t *testing.T) {
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))

	_, err := client.DownloadVideo(context.Background(), "https://example.com/v", "22")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusBadGateway, terr.StatusCode)
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: base}, zerolog.Nop())
	_, err := client.FetchFormats(context.Background(), "https://example.com/v")

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.True(t, terr.Network())
}

func TestClient_StartCompression(t *testing.T) {
	a := writeTempFile(t, "a.mp4", "first")
	b := writeTempFile(t, "b.mov", "second")

	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/start", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "h264", r.FormValue("codec"))
		files := r.MultipartForm.File["videos"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.mp4", files[0].Filename)
		assert.Equal(t, "b.mov", files[1].Filename)

		f, err := files[1].Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		f.Close()
		assert.Equal(t, "second", string(data))

		io.WriteString(w, `{"task_id":"abc"}`)
	}))

	taskID, err := client.StartCompression(context.Background(), []string{a, b}, "h264")
	require.NoError(t, err)
	assert.Equal(t, "abc", taskID)
}

func TestClient_StartCompression_NoValidFiles(t *testing.T) {
	a := writeTempFile(t, "a.txt", "text")
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"No valid video files uploaded"}`)
	}))

	_, err := client.StartCompression(context.Background(), []string{a}, "libx264")

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "No valid video files uploaded", berr.Message)
}

func TestClient_StartCompression_MissingFile(t *testing.T) {
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))

	_, err := client.StartCompression(context.Background(), []string{filepath.Join(t.TempDir(), "gone.mp4")}, "libx264")
	assert.ErrorIs(t, err, ErrNoFiles)
}

func TestClient_Status(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		body    string
		want    *StatusSnapshot
		wantErr bool
	}{
		{
			name: "processing",
			code: http.StatusOK,
			body: `{"status":"processing","current":1,"total":2,"percent":40,"file":"a_1a2b3c4d.mp4","files":[]}`,
			want: &StatusSnapshot{Status: StatusProcessing, Current: 1, Total: 2, Percent: 40, File: "a_1a2b3c4d.mp4", Files: []string{}},
		},
		{
			name: "error status is a value",
			code: http.StatusOK,
			body: `{"status":"error","error":"ffmpeg crashed"}`,
			want: &StatusSnapshot{Status: StatusError, Error: "ffmpeg crashed"},
		},
		{
			name:    "unknown task",
			code:    http.StatusNotFound,
			body:    `{"error":"Task not found"}`,
			wantErr: true,
		},
		{
			name:    "garbage",
			code:    http.StatusOK,
			body:    `<html>`,
			wantErr: true,
		},
		{
			name:    "implausible total",
			code:    http.StatusOK,
			body:    `{"status":"processing","current":1,"total":100000000000,"percent":10}`,
			wantErr: true,
		},
		{
			name:    "negative total",
			code:    http.StatusOK,
			body:    `{"status":"processing","current":1,"total":-1,"percent":10}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/status/abc", r.URL.Path)
				w.WriteHeader(tt.code)
				io.WriteString(w, tt.body)
			}))

			got, err := client.Status(context.Background(), "abc")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_SplitVideo(t *testing.T) {
	video := writeTempFile(t, "clip.mp4", "video")
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/split-video", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "2.5", r.FormValue("start"))
		assert.Equal(t, "10", r.FormValue("end"))
		_, header, err := r.FormFile("video")
		require.NoError(t, err)
		assert.Equal(t, "clip.mp4", header.Filename)
		io.WriteString(w, `{"status":"done","file":"split_clip_0a1b2c3d.mp4"}`)
	}))

	result, err := client.SplitVideo(context.Background(), SplitRequest{Video: video, Start: 2.5, End: 10})
	require.NoError(t, err)
	assert.Equal(t, "done", result.Status)
	assert.Equal(t, "split_clip_0a1b2c3d.mp4", result.File)
}

func TestClient_ProcessVideo(t *testing.T) {
	video := writeTempFile(t, "me.mp4", "video")
	bg := writeTempFile(t, "beach.jpg", "image")
	threshold := 0.7

	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "0.7", r.FormValue("threshold"))
		_, hasVoice := r.MultipartForm.Value["remove_voice"]
		assert.False(t, hasVoice, "remove_voice must be omitted when disabled")
		assert.Len(t, r.MultipartForm.File["video_file"], 1)
		assert.Len(t, r.MultipartForm.File["background_image"], 1)
		io.WriteString(w, `{"status":"done","file":"bg_removed_1234abcd.mp4","download_url":"/download-file/bg_removed_1234abcd.mp4"}`)
	}))

	result, err := client.ProcessVideo(context.Background(), VideoOpsRequest{
		Video:           video,
		Threshold:       &threshold,
		BackgroundImage: bg,
	})
	require.NoError(t, err)
	assert.Equal(t, "/download-file/bg_removed_1234abcd.mp4", result.DownloadURL)
}

func TestClient_IncompleteFileReplies(t *testing.T) {
	video := writeTempFile(t, "clip.mp4", "video")

	tests := []struct {
		name string
		body string
		call func(*Client) error
	}{
		{
			name: "split still processing",
			body: `{"status":"processing"}`,
			call: func(c *Client) error {
				_, err := c.SplitVideo(context.Background(), SplitRequest{Video: video, Start: 0, End: 1})
				return err
			},
		},
		{
			name: "split done without file",
			body: `{"status":"done"}`,
			call: func(c *Client) error {
				_, err := c.SplitVideo(context.Background(), SplitRequest{Video: video, Start: 0, End: 1})
				return err
			},
		},
		{
			name: "download without file",
			body: `{"status":"success"}`,
			call: func(c *Client) error {
				_, err := c.DownloadVideo(context.Background(), "https://example.com/v", "22")
				return err
			},
		},
		{
			name: "video ops without file or url",
			body: `{"status":"success"}`,
			call: func(c *Client) error {
				_, err := c.ProcessVideo(context.Background(), VideoOpsRequest{Video: video})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))

			var terr *TransportError
			require.ErrorAs(t, tt.call(client), &terr)
			assert.False(t, terr.Network())
		})
	}
}

func TestVideoOpsRequest_RemoveVoice(t *testing.T) {
	assert.Equal(t, "true", VideoOpsRequest{RemoveVoice: true}.Fields()["remove_voice"])
	assert.NotContains(t, VideoOpsRequest{}.Fields(), "remove_voice")
}

func TestClient_Fetch(t *testing.T) {
	client := setupTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/download/a_out.mp4":
			io.WriteString(w, "binary-data")
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"File not found"}`)
		}
	}))

	var buf bytes.Buffer
	n, err := client.Fetch(context.Background(), "/download/a_out.mp4", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "binary-data", buf.String())

	_, err = client.Fetch(context.Background(), "/download/missing.mp4", io.Discard)
	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "File not found", berr.Message)
}

func TestClient_LinkURL(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:11000/"}, zerolog.Nop())
	assert.Equal(t, "http://localhost:11000/download/a.mp4", client.LinkURL("/download/a.mp4"))
	assert.Equal(t, "http://localhost:11000/download/a.mp4", client.LinkURL("download/a.mp4"))
	assert.Equal(t, "https://cdn/x.mp4", client.LinkURL("https://cdn/x.mp4"))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "Please paste a video link.", UserMessage(Invalid(ErrNoURL, "Please paste a video link.")))
	assert.Equal(t, "Unknown error", UserMessage(&BackendError{}))
	assert.True(t, errors.Is(Invalid(ErrInvalidRange, "x"), ErrInvalidRange))
}
