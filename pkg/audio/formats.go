package audio

import (
	"fmt"
	"time"
)

// SampleWidth is the size in bytes of one signed 16-bit PCM sample.
const SampleWidth = 2

// Default format constants shared by the codec and mixer layers.
const (
	DefaultSampleRate   = 44_100 // Hz
	DefaultChannels     = 1      // monaural
	DefaultFrameSamples = 4_410  // samples per channel (100 ms)
)

// DefaultFormat is the single supported channel configuration.
var DefaultFormat = Format{
	SampleRate:   DefaultSampleRate,
	Channels:     DefaultChannels,
	FrameSamples: DefaultFrameSamples,
}

// Format describes the fixed framing every packet and lane agrees on.
type Format struct {
	SampleRate   int
	Channels     int
	FrameSamples int // samples per channel in one frame
}

// FrameLen returns the number of int16 samples in one frame.
func (f Format) FrameLen() int {
	return f.FrameSamples * f.Channels
}

// FrameBytes returns the raw PCM size of one frame.
func (f Format) FrameBytes() int {
	return f.FrameLen() * SampleWidth
}

// FrameDuration returns the playback time covered by one frame.
func (f Format) FrameDuration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.FrameSamples) * time.Second / time.Duration(f.SampleRate)
}

// Silence returns a zero-filled frame.
func (f Format) Silence() []int16 {
	return make([]int16, f.FrameLen())
}

// Validate reports whether the format can frame audio at all.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidArgument, f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channels must be positive, got %d", ErrInvalidArgument, f.Channels)
	}
	if f.FrameSamples <= 0 {
		return fmt.Errorf("%w: frame samples must be positive, got %d", ErrInvalidArgument, f.FrameSamples)
	}
	return nil
}
