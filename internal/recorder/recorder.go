// Package recorder writes mixed frames to a 16-bit PCM WAV file.
package recorder

import (
	"errors"
	"fmt"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Raikerian/go-lane-mixer/pkg/audio"
)

const (
	bitDepth      = 16
	pcmFormatCode = 1
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("recorder is closed")

// Recorder appends whole frames to a WAV file. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	format  audio.Format
	buf     *goaudio.IntBuffer
	frames  int
	closed  bool
}

// Open creates (or truncates) the WAV file at path.
func Open(path string, format audio.Format) (*Recorder, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording %s: %w", path, err)
	}

	return &Recorder{
		file:    f,
		encoder: wav.NewEncoder(f, format.SampleRate, bitDepth, format.Channels, pcmFormatCode),
		format:  format,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: format.Channels,
				SampleRate:  format.SampleRate,
			},
			Data:           make([]int, format.FrameLen()),
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// Write appends one frame.
func (r *Recorder) Write(pcm []int16) error {
	if len(pcm) != r.format.FrameLen() {
		return fmt.Errorf("%w: frame has %d samples, want %d", audio.ErrInvalidArgument, len(pcm), r.format.FrameLen())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	for i, s := range pcm {
		r.buf.Data[i] = int(s)
	}
	if err := r.encoder.Write(r.buf); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	r.frames++

	return nil
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.frames
}

// Close finalises the WAV header and closes the file. Calling it twice is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	encErr := r.encoder.Close()
	fileErr := r.file.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finalise recording: %w", encErr)
	}

	return fileErr
}
