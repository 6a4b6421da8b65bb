// Package mediainfo reads the length of a local media file so the trim
// range can be bounded before upload.
package mediainfo

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNoProbeTool is returned when neither ffprobe nor mediainfo is found.
var ErrNoProbeTool = errors.New("no media probe tool found (ffprobe or mediainfo)")

// Config holds probe configuration.
type Config struct {
	FFprobePath   string // Path to ffprobe binary (empty = search PATH)
	MediaInfoPath string // Path to mediainfo binary (empty = search PATH)
}

// Service extracts media information from local files.
type Service struct {
	config    Config
	logger    zerolog.Logger
	probeFunc func(ctx context.Context, path string) (*MediaInfo, error)
}

// NewService creates a new probe service.
func NewService(cfg Config, logger zerolog.Logger) *Service {
	s := &Service{
		config: cfg,
		logger: logger.With().Str("component", "mediainfo").Logger(),
	}
	s.probeFunc = s.selectProbeMethod()
	return s
}

// selectProbeMethod prefers ffprobe, which reports duration in seconds.
func (s *Service) selectProbeMethod() func(context.Context, string) (*MediaInfo, error) {
	if path := findExecutable("ffprobe", s.config.FFprobePath); path != "" {
		s.logger.Debug().Str("path", path).Msg("Using ffprobe CLI")
		return func(ctx context.Context, p string) (*MediaInfo, error) {
			return probeWithFFprobe(ctx, p, path)
		}
	}

	if path := findExecutable("mediainfo", s.config.MediaInfoPath); path != "" {
		s.logger.Debug().Str("path", path).Msg("Using mediainfo CLI")
		return func(ctx context.Context, p string) (*MediaInfo, error) {
			return probeWithMediaInfo(ctx, p, path)
		}
	}

	s.logger.Debug().Msg("No media probe tool found")
	return nil
}

// IsAvailable returns true if a probe tool is available.
func (s *Service) IsAvailable() bool {
	return s.probeFunc != nil
}

// Probe extracts media information from a file.
func (s *Service) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	if s.probeFunc == nil {
		return nil, ErrNoProbeTool
	}
	info, err := s.probeFunc(ctx, path)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("path", path).Dur("duration", info.Duration).Msg("Probed media file")
	return info, nil
}

// DurationSeconds returns the media length, or 0 when it cannot be
// determined. The trim range is left unbounded in that case.
func (s *Service) DurationSeconds(ctx context.Context, path string) float64 {
	info, err := s.Probe(ctx, path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Could not read media duration")
		return 0
	}
	return info.Seconds()
}
