package controller

import (
	"context"
	"path/filepath"

	"github.com/clipforge/clipforge/internal/backend"
	"github.com/clipforge/clipforge/internal/progress"
)

// DefaultCodec is used when no codec is chosen.
const DefaultCodec = "libx264"

// Compress uploads files, tracks the compression task until it ends and
// renders one download link per output.
func (c *Controller) Compress(ctx context.Context, files []string, codec string) (*Result, error) {
	const flow = "compress"

	if err := checkFiles(files, "Please select at least one video."); err != nil {
		return nil, c.fail(flow, err, "")
	}
	if codec == "" {
		codec = DefaultCodec
	}
	if err := c.checkDownloads(flow); err != nil {
		return nil, err
	}

	c.view.Reset()

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}
	pv := progress.NewView(c.view, names, progress.PathLinker(c.backend.LinkURL("/download/")), c.logger)
	pv.Init()

	var taskID string
	err := c.submit(flow, "Uploading...", func() error {
		var err error
		taskID, err = c.backend.StartCompression(ctx, files, codec)
		return err
	})
	if err != nil {
		return nil, c.fail(flow, err, "Failed to start compression.")
	}

	c.logger.Info().
		Str("taskId", taskID).
		Int("files", len(files)).
		Str("codec", codec).
		Msg("Compression task started")

	handle := c.poller.Start(ctx, taskID, pv)
	defer handle.Stop()

	final, err := handle.Wait()
	if err != nil {
		return nil, c.fail(flow, err, "")
	}

	if final.Status == backend.StatusError {
		msg := final.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, c.fail(flow, &backend.BackendError{Op: "compression", Message: "Compression failed: " + msg}, "")
	}

	c.logger.Info().Str("taskId", taskID).Strs("files", final.Files).Msg("Compression task done")

	res := &Result{Flow: flow, TaskID: taskID, Links: pv.Links()}
	if c.config.Fetch {
		return c.saveAll(ctx, res)
	}
	return res, nil
}

// saveAll saves links that were already rendered by a progress view.
func (c *Controller) saveAll(ctx context.Context, res *Result) (*Result, error) {
	for _, link := range res.Links {
		path, err := c.save(ctx, link)
		if err != nil {
			label := link.Name
			if label == "" {
				label = link.Href
			}
			return res, c.fail(res.Flow, err, "Failed to save "+label+".")
		}
		res.Saved = append(res.Saved, path)
	}
	return res, nil
}
