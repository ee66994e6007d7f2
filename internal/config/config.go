package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LANEMIXER_SERVER_PORT.
const EnvPrefix = "LANEMIXER_"

// AudioConfig stores the process-wide audio framing.
type AudioConfig struct {
	SampleRate   int `yaml:"sample_rate" env:"SAMPLE_RATE"`
	Channels     int `yaml:"channels" env:"CHANNELS"`
	FrameSamples int `yaml:"frame_samples" env:"FRAME_SAMPLES"`
}

// CodecConfig stores packet codec settings.
type CodecConfig struct {
	SilenceThresholdDBFS float64 `yaml:"silence_threshold_dbfs" env:"SILENCE_THRESHOLD_DBFS"`
}

// MixerConfig stores lane mixer settings.
type MixerConfig struct {
	StalenessWindow time.Duration `yaml:"staleness_window" env:"STALENESS_WINDOW"`
	MaxLanes        int           `yaml:"max_lanes" env:"MAX_LANES"`
}

// ServerConfig stores WebSocket mixing server settings.
type ServerConfig struct {
	Port                int           `yaml:"port" env:"PORT"`
	Path                string        `yaml:"path" env:"PATH"`
	Name                string        `yaml:"name" env:"NAME"`
	IdleTimeout         time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	OutputLaneName      string        `yaml:"output_lane_name" env:"OUTPUT_LANE_NAME"`
	MaxMalformedPackets int           `yaml:"max_malformed_packets" env:"MAX_MALFORMED_PACKETS"`
	StrikeCacheSize     int           `yaml:"strike_cache_size" env:"STRIKE_CACHE_SIZE"`
	EnableMDNS          bool          `yaml:"enable_mdns" env:"ENABLE_MDNS"`
	RecordPath          string        `yaml:"record_path" env:"RECORD_PATH"`
}

// Config stores the application configuration.
type Config struct {
	Audio    AudioConfig  `yaml:"audio" envPrefix:"AUDIO_"`
	Codec    CodecConfig  `yaml:"codec" envPrefix:"CODEC_"`
	Mixer    MixerConfig  `yaml:"mixer" envPrefix:"MIXER_"`
	Server   ServerConfig `yaml:"server" envPrefix:"SERVER_"`
	LogLevel string       `yaml:"log_level" env:"LOG_LEVEL"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:   44_100,
			Channels:     1,
			FrameSamples: 4_410,
		},
		Codec: CodecConfig{
			SilenceThresholdDBFS: -20.0,
		},
		Mixer: MixerConfig{
			StalenessWindow: 200 * time.Millisecond,
			MaxLanes:        256,
		},
		Server: ServerConfig{
			Port:                8765,
			Path:                "/mixer",
			Name:                "Lane Mixer",
			IdleTimeout:         30 * time.Second,
			OutputLaneName:      "mix",
			MaxMalformedPackets: 10,
			StrikeCacheSize:     1024,
		},
		LogLevel: "info",
	}
}

// LoadConfig loads the configuration from the given file path on top of the
// defaults, then applies LANEMIXER_* environment overrides. A missing file
// leaves the defaults in place.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", filePath, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment overrides are invalid: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges the components cannot repair themselves.
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 || c.Audio.Channels <= 0 || c.Audio.FrameSamples <= 0 {
		return fmt.Errorf("audio: sample_rate, channels and frame_samples must be positive")
	}
	if c.Audio.Channels != 1 {
		return fmt.Errorf("audio: only monaural audio is supported, got %d channels", c.Audio.Channels)
	}
	if c.Mixer.StalenessWindow <= 0 {
		return fmt.Errorf("mixer: staleness_window must be positive, got %s", c.Mixer.StalenessWindow)
	}
	if c.Mixer.MaxLanes <= 0 || c.Mixer.MaxLanes > 256 {
		return fmt.Errorf("mixer: max_lanes must be in 1-256, got %d", c.Mixer.MaxLanes)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Path == "" || c.Server.Path[0] != '/' {
		return fmt.Errorf("server: path must start with '/', got %q", c.Server.Path)
	}
	if len(c.Server.OutputLaneName) > 3 {
		return fmt.Errorf("server: output_lane_name must be at most 3 characters, got %q", c.Server.OutputLaneName)
	}
	if c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server: idle_timeout must not be negative, got %s", c.Server.IdleTimeout)
	}
	if c.Server.StrikeCacheSize <= 0 {
		return fmt.Errorf("server: strike_cache_size must be positive, got %d", c.Server.StrikeCacheSize)
	}
	return nil
}
