// Package controller runs the client flows: it validates input, submits
// requests to the backend, tracks asynchronous tasks and renders results
// through a view binding.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clipforge/clipforge/internal/backend"
	"github.com/clipforge/clipforge/internal/health"
	"github.com/clipforge/clipforge/internal/poller"
	"github.com/clipforge/clipforge/internal/progress"
	"github.com/clipforge/clipforge/internal/retry"
	"github.com/clipforge/clipforge/internal/view"
)

// Backend is the subset of the backend client the flows use.
type Backend interface {
	poller.StatusSource

	FetchFormats(ctx context.Context, videoURL string) (*backend.VideoInfo, error)
	DownloadVideo(ctx context.Context, videoURL, formatID string) (*backend.FileResult, error)
	StartCompression(ctx context.Context, files []string, codec string) (string, error)
	SplitVideo(ctx context.Context, req backend.SplitRequest) (*backend.FileResult, error)
	ProcessVideo(ctx context.Context, req backend.VideoOpsRequest) (*backend.FileResult, error)
	Fetch(ctx context.Context, link string, w io.Writer) (int64, error)
	LinkURL(path string) string
}

// Config holds controller configuration.
type Config struct {
	Poll poller.Config
	// Fetch saves every produced file into DownloadDir.
	Fetch       bool
	DownloadDir string
	// Retry governs re-fetching produced files; zero uses
	// retry.DefaultConfig for network failures.
	Retry retry.Config
}

// Result summarizes a finished flow.
type Result struct {
	Flow   string          `json:"flow" yaml:"flow"`
	TaskID string          `json:"taskId,omitempty" yaml:"taskId,omitempty"`
	Links  []progress.Link `json:"links" yaml:"links"`
	Saved  []string        `json:"saved,omitempty" yaml:"saved,omitempty"`
}

// Controller drives the submit, poll and render flows.
type Controller struct {
	backend Backend
	view    view.Bindings
	poller  *poller.Poller
	config  Config
	logger  zerolog.Logger
}

// New creates a controller bound to one view.
func New(b Backend, v view.Bindings, cfg Config, logger zerolog.Logger) *Controller {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig(networkFailure)
	}
	return &Controller{
		backend: b,
		view:    v,
		poller:  poller.New(b, cfg.Poll, logger),
		config:  cfg,
		logger:  logger.With().Str("component", "controller").Logger(),
	}
}

// submit shows a busy label on control for the duration of fn only.
func (c *Controller) submit(control, label string, fn func() error) error {
	c.view.SetBusy(control, label)
	defer c.view.ClearBusy(control)
	return fn()
}

// fail surfaces err to the user and returns it. Transport failures are
// shown with a flow-specific message; details go to the log.
func (c *Controller) fail(flow string, err error, transportMsg string) error {
	msg := backend.UserMessage(err)

	var terr *backend.TransportError
	if errors.As(err, &terr) && transportMsg != "" {
		msg = transportMsg
	}

	var verr *backend.ValidationError
	if errors.As(err, &verr) {
		c.logger.Debug().Str("flow", flow).Err(err).Msg("Input rejected")
	} else {
		c.logger.Error().Str("flow", flow).Err(err).Msg("Flow failed")
	}

	c.view.Alert(msg)
	return err
}

// finish renders the produced links and saves them when configured.
func (c *Controller) finish(ctx context.Context, res *Result, title string) (*Result, error) {
	c.view.RenderLinks(title, res.Links)

	if !c.config.Fetch {
		return res, nil
	}
	return c.saveAll(ctx, res)
}

// networkFailure reports transport errors caused by the connection.
func networkFailure(err error) bool {
	var terr *backend.TransportError
	return errors.As(err, &terr) && terr.Network()
}

// checkDownloads fails a flow early when produced files cannot be saved.
func (c *Controller) checkDownloads(flow string) error {
	if !c.config.Fetch {
		return nil
	}
	if err := health.PrepareDownloadDir(c.config.DownloadDir); err != nil {
		return c.fail(flow, err, "")
	}
	return nil
}

func (c *Controller) save(ctx context.Context, link progress.Link) (string, error) {
	name, err := outputName(link)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(c.config.DownloadDir, name)
	tmp := dest + ".part"

	var n int64
	err = retry.Do(ctx, "fetch "+name, c.config.Retry, func() error {
		var err error
		n, err = c.fetchTo(ctx, link.Href, tmp)
		return err
	}, c.logger)
	if err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", dest, err)
	}

	c.logger.Info().Str("file", dest).Int64("bytes", n).Msg("Saved output")
	c.view.ShowStatus(fmt.Sprintf("Saved %s", dest))
	return dest, nil
}

// outputName picks the local file name of a produced output: the link
// name, or the last segment of its href when the backend sent no name.
func outputName(link progress.Link) (string, error) {
	name := link.Name
	if name == "" {
		if u, err := url.Parse(link.Href); err == nil {
			name = path.Base(u.Path)
		}
	}
	name = filepath.Base(filepath.FromSlash(name))
	switch name {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("cannot derive a file name from %q", link.Href)
	}
	return name, nil
}

// fetchTo writes one produced file to dest, truncating earlier attempts.
func (c *Controller) fetchTo(ctx context.Context, href, dest string) (int64, error) {
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	n, err := c.backend.Fetch(ctx, href, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close %s: %w", dest, cerr)
	}
	return n, err
}

// checkFiles rejects an empty selection and paths that are not regular files.
func checkFiles(files []string, emptyMsg string) error {
	if len(files) == 0 {
		return backend.Invalid(backend.ErrNoFiles, emptyMsg)
	}
	for _, f := range files {
		if strings.TrimSpace(f) == "" {
			return backend.Invalid(backend.ErrNoFiles, emptyMsg)
		}
		info, err := os.Stat(f)
		if err != nil {
			return backend.Invalid(backend.ErrNoFiles, fmt.Sprintf("Cannot read %s.", f))
		}
		if !info.Mode().IsRegular() {
			return backend.Invalid(backend.ErrNoFiles, fmt.Sprintf("%s is not a file.", f))
		}
	}
	return nil
}
