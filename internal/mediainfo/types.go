package mediainfo

import "time"

// MediaInfo is the subset of container metadata the trim flow needs.
type MediaInfo struct {
	Duration        time.Duration `json:"duration"`
	ContainerFormat string        `json:"containerFormat,omitempty"`
	VideoCodec      string        `json:"videoCodec,omitempty"`
	Width           int           `json:"width,omitempty"`
	Height          int           `json:"height,omitempty"`
}

// Seconds returns the duration as fractional seconds.
func (m *MediaInfo) Seconds() float64 {
	if m == nil {
		return 0
	}
	return m.Duration.Seconds()
}
