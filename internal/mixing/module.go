// Package mixing builds the codec and lane mixer from configuration and
// exposes them as an Fx module.
package mixing

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-lane-mixer/internal/config"
	"github.com/Raikerian/go-lane-mixer/pkg/audio"
	"github.com/Raikerian/go-lane-mixer/pkg/audiomixer"
	"github.com/Raikerian/go-lane-mixer/pkg/packet"
)

// Module provides audio.Format, *packet.Codec and audiomixer.AudioMixer.
var Module = fx.Module("mixing",
	fx.Provide(
		NewFormat,
		NewCodec,
		NewAudioMixer,
	),
)

// NewFormat converts the audio section of the config.
func NewFormat(cfg *config.Config) audio.Format {
	return audio.Format{
		SampleRate:   cfg.Audio.SampleRate,
		Channels:     cfg.Audio.Channels,
		FrameSamples: cfg.Audio.FrameSamples,
	}
}

// NewCodec creates the packet codec shared by every connection.
func NewCodec(cfg *config.Config, format audio.Format, logger *zap.Logger) *packet.Codec {
	logger.Info("Creating packet codec",
		zap.Int("sample_rate", format.SampleRate),
		zap.Int("frame_samples", format.FrameSamples),
		zap.Int("frame_bytes", format.FrameBytes()),
		zap.Float64("silence_threshold_dbfs", cfg.Codec.SilenceThresholdDBFS))

	return packet.NewCodec(format, cfg.Codec.SilenceThresholdDBFS)
}

// NewAudioMixer creates the lane mixer.
func NewAudioMixer(cfg *config.Config, format audio.Format, logger *zap.Logger) (audiomixer.AudioMixer, error) {
	logger.Info("Creating lane mixer",
		zap.Duration("staleness_window", cfg.Mixer.StalenessWindow),
		zap.Int("max_lanes", cfg.Mixer.MaxLanes))

	return audiomixer.NewMixer(logger.Named("mixer"), audiomixer.Config{
		Format:          format,
		StalenessWindow: cfg.Mixer.StalenessWindow,
		MaxLanes:        cfg.Mixer.MaxLanes,
	})
}
