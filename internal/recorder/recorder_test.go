package recorder_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-lane-mixer/internal/recorder"
	"github.com/Raikerian/go-lane-mixer/pkg/audio"
)

var testFormat = audio.Format{SampleRate: 8000, Channels: 1, FrameSamples: 80}

func ramp(start int16) []int16 {
	frame := make([]int16, testFormat.FrameLen())
	for i := range frame {
		frame[i] = start + int16(i)
	}

	return frame
}

func TestRecorder_WriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mix.wav")

	rec, err := recorder.Open(path, testFormat)
	require.NoError(t, err)

	require.NoError(t, rec.Write(ramp(-1000)))
	require.NoError(t, rec.Write(ramp(2000)))
	assert.Equal(t, 2, rec.Frames())
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())

	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, uint32(8000), dec.SampleRate)
	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)
	require.Len(t, buf.Data, 2*testFormat.FrameLen())
	assert.Equal(t, -1000, buf.Data[0])
	assert.Equal(t, -1000+79, buf.Data[79])
	assert.Equal(t, 2000, buf.Data[80])
}

func TestRecorder_Errors(t *testing.T) {
	t.Run("invalid format", func(t *testing.T) {
		_, err := recorder.Open(filepath.Join(t.TempDir(), "x.wav"), audio.Format{})
		assert.ErrorIs(t, err, audio.ErrInvalidArgument)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := recorder.Open(filepath.Join(t.TempDir(), "nope", "x.wav"), testFormat)
		assert.Error(t, err)
	})

	t.Run("wrong frame length", func(t *testing.T) {
		rec, err := recorder.Open(filepath.Join(t.TempDir(), "x.wav"), testFormat)
		require.NoError(t, err)
		defer rec.Close()

		assert.ErrorIs(t, rec.Write(make([]int16, 3)), audio.ErrInvalidArgument)
		assert.Equal(t, 0, rec.Frames())
	})

	t.Run("write after close", func(t *testing.T) {
		rec, err := recorder.Open(filepath.Join(t.TempDir(), "x.wav"), testFormat)
		require.NoError(t, err)
		require.NoError(t, rec.Close())
		require.NoError(t, rec.Close())

		assert.ErrorIs(t, rec.Write(ramp(0)), recorder.ErrClosed)
	})
}
