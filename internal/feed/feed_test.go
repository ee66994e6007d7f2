package feed_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-lane-mixer/internal/config"
	"github.com/Raikerian/go-lane-mixer/internal/feed"
	"github.com/Raikerian/go-lane-mixer/internal/recorder"
	"github.com/Raikerian/go-lane-mixer/internal/server"
	"github.com/Raikerian/go-lane-mixer/pkg/audio"
	"github.com/Raikerian/go-lane-mixer/pkg/audiomixer"
	"github.com/Raikerian/go-lane-mixer/pkg/packet"
)

var testFormat = audio.Format{SampleRate: 8000, Channels: 1, FrameSamples: 80}

func constant(v int16, n int) []int16 {
	frame := make([]int16, n)
	for i := range frame {
		frame[i] = v
	}

	return frame
}

// writeWAV records frames of format and returns the file path.
func writeWAV(t *testing.T, format audio.Format, frames ...[]int16) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "input.wav")
	rec, err := recorder.Open(path, format)
	require.NoError(t, err)
	for _, frame := range frames {
		require.NoError(t, rec.Write(frame))
	}
	require.NoError(t, rec.Close())

	return path
}

func TestLoadWAV(t *testing.T) {
	t.Run("splits and pads", func(t *testing.T) {
		// 40-sample recording frames make 120 samples: one full 80-sample frame plus half.
		recFormat := audio.Format{SampleRate: 8000, Channels: 1, FrameSamples: 40}
		path := writeWAV(t, recFormat, constant(100, 40), constant(200, 40), constant(300, 40))

		frames, err := feed.LoadWAV(path, testFormat)
		require.NoError(t, err)
		require.Len(t, frames, 2)

		assert.Equal(t, append(constant(100, 40), constant(200, 40)...), frames[0])
		assert.Equal(t, append(constant(300, 40), constant(0, 40)...), frames[1])
	})

	t.Run("sample rate mismatch", func(t *testing.T) {
		path := writeWAV(t, audio.Format{SampleRate: 16000, Channels: 1, FrameSamples: 80}, constant(1, 80))

		_, err := feed.LoadWAV(path, testFormat)
		assert.ErrorIs(t, err, audio.ErrInvalidArgument)
	})

	t.Run("channel mismatch", func(t *testing.T) {
		path := writeWAV(t, audio.Format{SampleRate: 8000, Channels: 2, FrameSamples: 40}, constant(1, 80))

		_, err := feed.LoadWAV(path, testFormat)
		assert.ErrorIs(t, err, audio.ErrInvalidArgument)
	})

	t.Run("not a wav file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bogus.wav")
		require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF data"), 0o600))

		_, err := feed.LoadWAV(path, testFormat)
		assert.ErrorIs(t, err, audio.ErrInvalidArgument)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := feed.LoadWAV(filepath.Join(t.TempDir(), "missing.wav"), testFormat)
		assert.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := feed.LoadWAV("unused.wav", audio.Format{})
		assert.ErrorIs(t, err, audio.ErrInvalidArgument)
	})
}

func startServer(t *testing.T) (*audiomixer.Mixer, string) {
	t.Helper()

	cfg := config.Default()
	cfg.Audio.SampleRate = testFormat.SampleRate
	cfg.Audio.FrameSamples = testFormat.FrameSamples
	cfg.Server.IdleTimeout = 0

	logger := zaptest.NewLogger(t)
	mixer, err := audiomixer.NewMixer(logger, audiomixer.Config{
		Format:          testFormat,
		StalenessWindow: 5 * time.Second,
	})
	require.NoError(t, err)

	srv, err := server.NewServer(server.NewServerParams{
		Cfg:    cfg,
		Mixer:  mixer,
		Codec:  packet.NewCodec(testFormat, -60),
		Logger: logger,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(ctx))
	})

	return mixer, "ws" + strings.TrimPrefix(ts.URL, "http") + cfg.Server.Path
}

func TestClient_Run(t *testing.T) {
	mixer, url := startServer(t)

	client := &feed.Client{
		URL:      url,
		LaneName: "mic",
		Codec:    packet.NewCodec(testFormat, -60),
		Logger:   zaptest.NewLogger(t),
	}

	frames := [][]int16{
		constant(1000, 80),
		constant(0, 80),
		constant(-1000, 80),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := client.Run(ctx, frames)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Sent)
	assert.Equal(t, 1, stats.Silent)
	assert.Equal(t, 3, stats.Replies)
	assert.Equal(t, 0, stats.Lane)

	assert.Eventually(t, func() bool { return mixer.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestClient_RunInvalidFrame(t *testing.T) {
	_, url := startServer(t)

	client := &feed.Client{URL: url, LaneName: "mic", Codec: packet.NewCodec(testFormat, -60)}

	stats, err := client.Run(context.Background(), [][]int16{constant(1, 3)})
	assert.ErrorIs(t, err, audio.ErrInvalidArgument)
	assert.Equal(t, 0, stats.Sent)
}

func TestClient_SetVolume(t *testing.T) {
	mixer, url := startServer(t)

	lane, err := mixer.CreateLane()
	require.NoError(t, err)

	client := &feed.Client{URL: url, LaneName: "ctl", Codec: packet.NewCodec(testFormat, -60)}
	require.NoError(t, client.SetVolume(context.Background(), int(lane), 30))

	assert.Eventually(t, func() bool {
		v, err := mixer.Volume(lane)
		return err == nil && v == 30
	}, 5*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, client.SetVolume(context.Background(), int(lane), 300), audio.ErrInvalidArgument)
}

func TestClient_DialFailure(t *testing.T) {
	client := &feed.Client{URL: "ws://127.0.0.1:1/mixer", LaneName: "x", Codec: packet.NewCodec(testFormat, -60)}

	_, err := client.Run(context.Background(), [][]int16{constant(1, 80)})
	assert.Error(t, err)
}
