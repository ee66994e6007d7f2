// Command lanefeed streams a WAV file into a mixing server as one lane, or
// changes the volume of a lane.
//
//	lanefeed -url ws://localhost:8765/mixer -lane mic -file voice.wav
//	lanefeed -url ws://localhost:8765/mixer -set-lane 2 -volume 50
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-lane-mixer/internal/config"
	"github.com/Raikerian/go-lane-mixer/internal/feed"
	"github.com/Raikerian/go-lane-mixer/internal/infrastructure"
	"github.com/Raikerian/go-lane-mixer/internal/mixing"
	"github.com/Raikerian/go-lane-mixer/pkg/audio"
	"github.com/Raikerian/go-lane-mixer/pkg/packet"
)

// Options holds the command-line flags.
type Options struct {
	URL      string
	Lane     string
	File     string
	Loops    int
	SetLane  int
	Volume   int
	Config   string
	LogLevel string
}

func parseFlags(args []string) (Options, error) {
	var opts Options

	fs := flag.NewFlagSet("lanefeed", flag.ContinueOnError)
	fs.StringVar(&opts.URL, "url", "ws://localhost:8765/mixer", "mixing server WebSocket URL")
	fs.StringVar(&opts.Lane, "lane", "in", "lane name stamped on packets (at most 3 ASCII characters)")
	fs.StringVar(&opts.File, "file", "", "16-bit PCM WAV file to stream")
	fs.IntVar(&opts.Loops, "loops", 1, "number of times to stream the file")
	fs.IntVar(&opts.SetLane, "set-lane", -1, "lane id whose volume to change instead of streaming")
	fs.IntVar(&opts.Volume, "volume", 100, "volume percent (0-255) used with -set-lane")
	fs.StringVar(&opts.Config, "config", "config.yaml", "config file providing the audio format")
	fs.StringVar(&opts.LogLevel, "log-level", "", "overrides log_level from the config file")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.SetLane < 0 && opts.File == "" {
		return opts, errors.New("either -file or -set-lane is required")
	}
	if opts.Loops < 1 {
		return opts, fmt.Errorf("-loops must be at least 1, got %d", opts.Loops)
	}

	return opts, nil
}

// FeedParams holds dependencies for registerFeed.
type FeedParams struct {
	fx.In

	Opts       Options
	Format     audio.Format
	Codec      *packet.Codec
	Logger     *zap.Logger
	LC         fx.Lifecycle
	Shutdowner fx.Shutdowner
}

// registerFeed runs the feed once the application has started and shuts the
// application down when it finishes.
func registerFeed(params FeedParams) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	params.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			client := &feed.Client{
				URL:      params.Opts.URL,
				LaneName: params.Opts.Lane,
				Codec:    params.Codec,
				Logger:   params.Logger,
			}

			go func() {
				defer close(done)

				exitCode := 0
				if err := run(ctx, client, params); err != nil && !errors.Is(err, context.Canceled) {
					params.Logger.Error("Feed failed", zap.Error(err))
					exitCode = 1
				}
				if err := params.Shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
					params.Logger.Error("Failed to request shutdown", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func run(ctx context.Context, client *feed.Client, params FeedParams) error {
	opts := params.Opts
	if opts.SetLane >= 0 {
		return client.SetVolume(ctx, opts.SetLane, opts.Volume)
	}

	frames, err := feed.LoadWAV(opts.File, params.Format)
	if err != nil {
		return err
	}
	params.Logger.Info("Loaded WAV file",
		zap.String("file", opts.File),
		zap.Int("frames", len(frames)),
		zap.Duration("duration", params.Format.FrameDuration()*time.Duration(len(frames))))

	for i := 0; i < opts.Loops; i++ {
		stats, err := client.Run(ctx, frames)
		if err != nil {
			return err
		}
		if stats.Replies != stats.Sent {
			params.Logger.Warn("Server did not answer every packet",
				zap.Int("sent", stats.Sent),
				zap.Int("replies", stats.Replies))
		}
	}

	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fx.New(
		fx.Supply(opts.Config, opts),
		fx.Provide(config.LoadConfig),
		fx.Decorate(func(cfg *config.Config) *config.Config {
			if opts.LogLevel != "" {
				cfg.LogLevel = opts.LogLevel
			}
			return cfg
		}),
		infrastructure.LoggerModule,
		fx.Provide(mixing.NewFormat, mixing.NewCodec),
		fx.Invoke(registerFeed),
		fx.WithLogger(infrastructure.NewFxLoggerAdapter),
	).Run()
}
