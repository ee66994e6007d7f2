package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-lane-mixer/pkg/audio"
)

func constantFrame(n int, v int16) []int16 {
	frame := make([]int16, n)
	for i := range frame {
		frame[i] = v
	}
	return frame
}

func TestDBFS(t *testing.T) {
	t.Run("all zero is negative infinity", func(t *testing.T) {
		assert.True(t, math.IsInf(audio.DBFS(make([]int16, 128)), -1))
	})

	t.Run("empty is negative infinity", func(t *testing.T) {
		assert.True(t, math.IsInf(audio.DBFS(nil), -1))
	})

	t.Run("full scale square is zero dBFS", func(t *testing.T) {
		frame := make([]int16, 100)
		for i := range frame {
			frame[i] = -32768
		}
		assert.InDelta(t, 0.0, audio.DBFS(frame), 1e-9)
	})

	t.Run("half scale is about minus six", func(t *testing.T) {
		assert.InDelta(t, -6.02, audio.DBFS(constantFrame(100, 16384)), 0.01)
	})

	t.Run("tenth scale is minus twenty", func(t *testing.T) {
		assert.InDelta(t, -20.0, audio.DBFS(constantFrame(100, 3277)), 0.01)
	})
}

func TestRMS(t *testing.T) {
	assert.Zero(t, audio.RMS(nil))
	assert.InDelta(t, 0.5, audio.RMS(constantFrame(10, 16384)), 1e-9)
	assert.InDelta(t, 0.5, audio.RMS([]int16{16384, -16384}), 1e-9)
}

func TestPCMRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 1234}

	raw := audio.PCMInt16ToLE(samples)
	require.Len(t, raw, len(samples)*audio.SampleWidth)
	assert.Equal(t, []byte{0x01, 0x00}, raw[2:4])
	assert.Equal(t, []byte{0xff, 0xff}, raw[4:6])

	back, err := audio.LEToPCMInt16(raw)
	require.NoError(t, err)
	assert.Equal(t, samples, back)

	assert.Equal(t, raw, audio.AppendPCMInt16LE(nil, samples))
}

func TestLEToPCMInt16_OddLength(t *testing.T) {
	_, err := audio.LEToPCMInt16([]byte{1, 2, 3})
	assert.ErrorIs(t, err, audio.ErrMalformedPacket)
}

func TestFormat(t *testing.T) {
	f := audio.DefaultFormat

	require.NoError(t, f.Validate())
	assert.Equal(t, 4410, f.FrameLen())
	assert.Equal(t, 8820, f.FrameBytes())
	assert.Equal(t, 100*time.Millisecond, f.FrameDuration())
	assert.Len(t, f.Silence(), f.FrameLen())

	tests := []struct {
		name   string
		format audio.Format
	}{
		{"zero rate", audio.Format{SampleRate: 0, Channels: 1, FrameSamples: 10}},
		{"zero channels", audio.Format{SampleRate: 8000, Channels: 0, FrameSamples: 10}},
		{"negative frame", audio.Format{SampleRate: 8000, Channels: 1, FrameSamples: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.format.Validate(), audio.ErrInvalidArgument)
		})
	}
}
