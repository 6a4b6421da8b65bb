package mediainfo

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFFprobeJSON(t *testing.T) {
	data := []byte(`{
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "duration": "12.000000"}
		],
		"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.480000"}
	}`)

	info, err := parseFFprobeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, 12480*time.Millisecond, info.Duration)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, 1920, info.Width)
	assert.InDelta(t, 12.48, info.Seconds(), 1e-9)
}

func TestParseFFprobeJSON_StreamDurationFallback(t *testing.T) {
	data := []byte(`{"streams":[{"codec_type":"video","codec_name":"vp9","duration":"3.5"}],"format":{"format_name":"webm"}}`)

	info, err := parseFFprobeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, 3500*time.Millisecond, info.Duration)
}

func TestParseFFprobeJSON_Invalid(t *testing.T) {
	_, err := parseFFprobeJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestParseMediaInfoJSON(t *testing.T) {
	data := []byte(`{"media":{"track":[
		{"@type":"General","Format":"MPEG-4","Duration":"65.021"},
		{"@type":"Video","Format":"AVC","Width":"1280","Height":"720"}
	]}}`)

	info, err := parseMediaInfoJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "MPEG-4", info.ContainerFormat)
	assert.Equal(t, "AVC", info.VideoCodec)
	assert.Equal(t, 720, info.Height)
	assert.InDelta(t, 65.021, info.Seconds(), 1e-6)
}

func TestService_NoProbeTool(t *testing.T) {
	s := &Service{logger: zerolog.Nop()}
	assert.False(t, s.IsAvailable())

	_, err := s.Probe(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, ErrNoProbeTool)
	assert.Equal(t, 0.0, s.DurationSeconds(context.Background(), "clip.mp4"))
}

func TestMediaInfo_SecondsNil(t *testing.T) {
	var m *MediaInfo
	assert.Equal(t, 0.0, m.Seconds())
}
