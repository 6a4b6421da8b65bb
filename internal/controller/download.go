package controller

import (
	"context"
	"net/url"
	"strings"

	"github.com/clipforge/clipforge/internal/backend"
	"github.com/clipforge/clipforge/internal/formats"
	"github.com/clipforge/clipforge/internal/progress"
)

// FetchFormats looks up the variants of a video URL and renders them. On
// failure nothing is rendered and the session stays unset.
func (c *Controller) FetchFormats(ctx context.Context, session *formats.Session, videoURL string) (*formats.Selector, error) {
	const flow = "fetch-formats"

	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return nil, c.fail(flow, backend.Invalid(backend.ErrNoURL, "Please paste a video link."), "")
	}

	session.Reset()
	c.view.Reset()

	var info *backend.VideoInfo
	err := c.submit(flow, "Fetching formats...", func() error {
		var err error
		info, err = c.backend.FetchFormats(ctx, videoURL)
		return err
	})
	if err != nil {
		return nil, c.fail(flow, err, "Failed to fetch formats.")
	}

	sel := formats.NewSelector(session, c.view)
	sel.Load(videoURL, info)

	c.logger.Info().Str("url", videoURL).Int("formats", len(info.Formats)).Msg("Fetched formats")
	return sel, nil
}

// ChooseFormat records the chosen variant and immediately downloads it.
func (c *Controller) ChooseFormat(ctx context.Context, sel *formats.Selector, session *formats.Session, formatID string) (*Result, error) {
	const flow = "download"

	if sel == nil {
		return nil, c.fail(flow, backend.Invalid(backend.ErrNoURL, "Please paste a video link."), "")
	}
	if _, err := sel.Select(formatID); err != nil {
		return nil, c.fail(flow, err, "")
	}
	return c.DownloadSelected(ctx, session)
}

// DownloadSelected downloads the session's selected variant. The backend
// call is synchronous; no task is polled.
func (c *Controller) DownloadSelected(ctx context.Context, session *formats.Session) (*Result, error) {
	const flow = "download"

	if !session.Ready() {
		return nil, c.fail(flow, backend.Invalid(backend.ErrNoFormatSelected, "Please select a format."), "")
	}
	if err := c.checkDownloads(flow); err != nil {
		return nil, err
	}

	c.view.ShowStatus("Downloading...")

	var result *backend.FileResult
	err := c.submit(flow, "Downloading...", func() error {
		var err error
		result, err = c.backend.DownloadVideo(ctx, session.URL, session.Selected.FormatID.String())
		return err
	})
	if err != nil {
		return nil, c.fail(flow, err, "Failed to download video.")
	}

	c.view.ShowStatus("")
	link := progress.Link{
		Name: result.File,
		Href: c.backend.LinkURL("/download-file/" + url.PathEscape(result.File)),
	}
	return c.finish(ctx, &Result{Flow: flow, Links: []progress.Link{link}}, "Click here to download")
}
