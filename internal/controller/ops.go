package controller

import (
	"context"
	"net/url"
	"regexp"

	"github.com/clipforge/clipforge/internal/backend"
	"github.com/clipforge/clipforge/internal/progress"
)

var hexColor = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// ProcessVideo runs the generic video operations form.
func (c *Controller) ProcessVideo(ctx context.Context, req backend.VideoOpsRequest) (*Result, error) {
	const flow = "video-ops"

	if err := checkFiles([]string{req.Video}, "Please select a video file."); err != nil {
		return nil, c.fail(flow, err, "")
	}
	for _, extra := range []string{req.BackgroundImage, req.BackgroundVideo} {
		if extra == "" {
			continue
		}
		if err := checkFiles([]string{extra}, ""); err != nil {
			return nil, c.fail(flow, err, "")
		}
	}
	if req.Threshold != nil && !(*req.Threshold >= 0 && *req.Threshold <= 1) {
		return nil, c.fail(flow, backend.Invalid(backend.ErrInvalidRange, "Threshold must be between 0 and 1."), "")
	}
	if req.BackgroundColor != "" && !hexColor.MatchString(req.BackgroundColor) {
		return nil, c.fail(flow, backend.Invalid(backend.ErrInvalidRange, "Background color must look like #00ff00."), "")
	}

	if err := c.checkDownloads(flow); err != nil {
		return nil, err
	}

	c.view.Reset()
	c.view.ShowStatus("Processing...")

	var result *backend.FileResult
	err := c.submit(flow, "Processing...", func() error {
		var err error
		result, err = c.backend.ProcessVideo(ctx, req)
		return err
	})
	if err != nil {
		return nil, c.fail(flow, err, "Request failed.")
	}

	href := result.DownloadURL
	if href == "" {
		href = "/download/" + url.PathEscape(result.File)
	}
	link := progress.Link{Name: result.File, Href: c.backend.LinkURL(href)}

	c.view.ShowStatus("Done!")
	return c.finish(ctx, &Result{Flow: flow, Links: []progress.Link{link}}, "Download processed video")
}
