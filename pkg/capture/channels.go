package capture

import "fmt"

// ChannelConfig describes how interleaved input is reduced to one channel.
// It is derived once per session and never changes.
//
// Only the first channel of every interleaved group is kept; the others are
// discarded rather than mixed down.
type ChannelConfig struct {
	Channels int `json:"channels"` // interleave stride
	Channel  int `json:"channel"`  // extracted channel index, always 0
}

// NewChannelConfig derives the extraction rule for a device delivering channels channels
func NewChannelConfig(channels int) (ChannelConfig, error) {
	if channels < 1 {
		return ChannelConfig{}, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	return ChannelConfig{Channels: channels, Channel: 0}, nil
}

// Samples returns how many single-channel samples an interleaved buffer of
// length n yields. A trailing partial group still yields its first sample.
func (c ChannelConfig) Samples(n int) int {
	if n <= c.Channel {
		return 0
	}
	return (n-c.Channel-1)/c.Channels + 1
}
