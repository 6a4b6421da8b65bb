package controller

import (
	"context"
	"math"
	"net/url"

	"github.com/clipforge/clipforge/internal/backend"
	"github.com/clipforge/clipforge/internal/progress"
	"github.com/clipforge/clipforge/internal/trim"
)

// DurationProber reads the length of a local media file in seconds. Zero
// means unknown.
type DurationProber interface {
	DurationSeconds(ctx context.Context, path string) float64
}

// NewRange builds a range selector over the video, spanning its whole
// length. A positive duration skips probing.
func (c *Controller) NewRange(ctx context.Context, prober DurationProber, video string, duration float64) *trim.Selector {
	if duration <= 0 && prober != nil {
		duration = prober.DurationSeconds(ctx, video)
	}
	return trim.NewSelector(duration, c.view)
}

// Split trims video to the selector's range on the backend.
func (c *Controller) Split(ctx context.Context, video string, rng *trim.Selector) (*Result, error) {
	const flow = "split"

	if rng == nil {
		return nil, c.fail(flow, backend.Invalid(backend.ErrNoFiles, "Please upload a video and select a segment first."), "")
	}
	if err := checkFiles([]string{video}, "Please upload a video and select a segment first."); err != nil {
		return nil, c.fail(flow, err, "")
	}

	start, end := rng.Range()
	duration := rng.Duration()
	if math.IsInf(duration, 1) {
		duration = 0
	}
	if err := trim.Validate(start, end, duration); err != nil {
		return nil, c.fail(flow, err, "")
	}
	if err := c.checkDownloads(flow); err != nil {
		return nil, err
	}

	var result *backend.FileResult
	err := c.submit(flow, "Splitting...", func() error {
		var err error
		result, err = c.backend.SplitVideo(ctx, backend.SplitRequest{Video: video, Start: start, End: end})
		return err
	})
	if err != nil {
		msg := "Failed to split video."
		if networkFailure(err) {
			msg = "An error occurred while splitting the video."
		}
		return nil, c.fail(flow, err, msg)
	}

	c.logger.Info().Float64("start", start).Float64("end", end).Str("file", result.File).Msg("Video split")

	link := progress.Link{
		Name: result.File,
		Href: c.backend.LinkURL("/download-split/" + url.PathEscape(result.File)),
	}
	return c.finish(ctx, &Result{Flow: flow, Links: []progress.Link{link}}, "Split Result:")
}
