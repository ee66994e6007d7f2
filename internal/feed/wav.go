// Package feed streams WAV files into a mixing server as a producer lane.
package feed

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"

	"github.com/Raikerian/go-lane-mixer/pkg/audio"
)

// LoadWAV reads a 16-bit PCM WAV file and splits it into frames of format.
// The file's sample rate and channel count must match format. The last frame
// is zero padded.
func LoadWAV(path string, format audio.Format) ([][]int16, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", audio.ErrInvalidArgument, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	switch {
	case dec.BitDepth != 16:
		return nil, fmt.Errorf("%w: %s has %d-bit samples, want 16", audio.ErrInvalidArgument, path, dec.BitDepth)
	case int(dec.SampleRate) != format.SampleRate:
		return nil, fmt.Errorf("%w: %s is %d Hz, want %d", audio.ErrInvalidArgument, path, dec.SampleRate, format.SampleRate)
	case int(dec.NumChans) != format.Channels:
		return nil, fmt.Errorf("%w: %s has %d channels, want %d", audio.ErrInvalidArgument, path, dec.NumChans, format.Channels)
	}

	frameLen := format.FrameLen()
	frames := make([][]int16, 0, (len(buf.Data)+frameLen-1)/frameLen)
	for start := 0; start < len(buf.Data); start += frameLen {
		frame := make([]int16, frameLen)
		end := min(start+frameLen, len(buf.Data))
		for i, s := range buf.Data[start:end] {
			frame[i] = int16(s)
		}
		frames = append(frames, frame)
	}

	return frames, nil
}
