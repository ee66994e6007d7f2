// Package infrastructure provides core infrastructure components and their Fx modules.
package infrastructure

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Raikerian/go-lane-mixer/internal/config"
	pkginfra "github.com/Raikerian/go-lane-mixer/pkg/infrastructure"
)

// LoggerModule provides logging infrastructure.
var LoggerModule = fx.Module("logger",
	fx.Provide(NewZapLogger),
)

// NewZapLoggerParams holds dependencies for NewZapLogger.
type NewZapLoggerParams struct {
	fx.In
	Cfg *config.Config
	LC  fx.Lifecycle
}

// NewZapLogger creates a Zap logger for the configured level and flushes it
// when the application stops.
func NewZapLogger(params NewZapLoggerParams) (*zap.Logger, error) {
	logger, err := BuildLogger(params.Cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	params.LC.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// Sync on stderr fails with EINVAL on some platforms; nothing to flush then.
			_ = logger.Sync()
			return nil
		},
	})

	return logger, nil
}

// BuildLogger returns a development logger for "debug" and a production
// JSON logger for every other level. Unknown levels fall back to info.
func BuildLogger(level string) (*zap.Logger, error) {
	var zapConfig zap.Config
	if level == "debug" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		// The mixing path logs per packet at debug level; sampling would hide bursts of warnings.
		zapConfig.Sampling = nil

		lvl := zapcore.InfoLevel
		switch level {
		case "warn":
			lvl = zapcore.WarnLevel
		case "error":
			lvl = zapcore.ErrorLevel
		}
		zapConfig.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}

	return logger, nil
}

// NewFxLoggerAdapter creates a new Fx logger adapter using the public package.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return pkginfra.NewFxLoggerAdapter(logger)
}
