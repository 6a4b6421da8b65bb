package mediainfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// findExecutable finds an executable by name or explicit path.
func findExecutable(name, explicitPath string) string {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	var commonPaths []string
	switch runtime.GOOS {
	case "darwin":
		commonPaths = []string{"/usr/local/bin/" + name, "/opt/homebrew/bin/" + name}
	case "linux":
		commonPaths = []string{"/usr/bin/" + name, "/usr/local/bin/" + name}
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", binary, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func probeWithFFprobe(ctx context.Context, path, binaryPath string) (*MediaInfo, error) {
	out, err := run(ctx, binaryPath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, err
	}
	return parseFFprobeJSON(out)
}

func probeWithMediaInfo(ctx context.Context, path, binaryPath string) (*MediaInfo, error) {
	out, err := run(ctx, binaryPath, "--Output=JSON", path)
	if err != nil {
		return nil, err
	}
	return parseMediaInfoJSON(out)
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// parseFFprobeJSON parses ffprobe JSON output. The container duration wins;
// the first video stream's duration is the fallback.
func parseFFprobeJSON(data []byte) (*MediaInfo, error) {
	var output ffprobeOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &MediaInfo{ContainerFormat: output.Format.FormatName}
	if d, err := parseSeconds(output.Format.Duration); err == nil {
		info.Duration = d
	}

	for _, stream := range output.Streams {
		if stream.CodecType != "video" {
			continue
		}
		info.VideoCodec = stream.CodecName
		info.Width = stream.Width
		info.Height = stream.Height
		if info.Duration == 0 {
			if d, err := parseSeconds(stream.Duration); err == nil {
				info.Duration = d
			}
		}
		break
	}

	return info, nil
}

type mediaInfoOutput struct {
	Media struct {
		Track []struct {
			Type     string `json:"@type"`
			Format   string `json:"Format"`
			Width    string `json:"Width"`
			Height   string `json:"Height"`
			Duration string `json:"Duration"`
		} `json:"track"`
	} `json:"media"`
}

// parseMediaInfoJSON parses mediainfo JSON output.
func parseMediaInfoJSON(data []byte) (*MediaInfo, error) {
	var output mediaInfoOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse mediainfo output: %w", err)
	}

	info := &MediaInfo{}
	for _, track := range output.Media.Track {
		switch track.Type {
		case "General":
			info.ContainerFormat = track.Format
			if d, err := parseSeconds(track.Duration); err == nil {
				info.Duration = d
			}
		case "Video":
			if info.VideoCodec != "" {
				continue
			}
			info.VideoCodec = track.Format
			info.Width, _ = strconv.Atoi(track.Width)
			info.Height, _ = strconv.Atoi(track.Height)
		}
	}
	return info, nil
}

// parseSeconds parses a decimal seconds value such as "12.480000".
func parseSeconds(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}
