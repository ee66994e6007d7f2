// Package infrastructure provides reusable infrastructure components for Go applications.
package infrastructure

import (
	"fmt"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxLoggerAdapter routes Fx lifecycle events into a Zap logger as structured
// entries. Successful wiring steps log at debug, failures at error.
type FxLoggerAdapter struct {
	logger *zap.Logger
}

// NewFxLoggerAdapter creates an fxevent.Logger backed by logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxLoggerAdapter{logger: logger.Named("fx")}
}

// LogEvent implements fxevent.Logger.
func (a *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		a.logger.Debug("OnStart hook executing",
			zap.String("callee", e.FunctionName),
			zap.String("caller", e.CallerName))
	case *fxevent.OnStartExecuted:
		a.hookResult("OnStart", e.FunctionName, e.CallerName, e.Runtime.String(), e.Err)
	case *fxevent.OnStopExecuting:
		a.logger.Debug("OnStop hook executing",
			zap.String("callee", e.FunctionName),
			zap.String("caller", e.CallerName))
	case *fxevent.OnStopExecuted:
		a.hookResult("OnStop", e.FunctionName, e.CallerName, e.Runtime.String(), e.Err)
	case *fxevent.Supplied:
		a.result("Supplied", e.Err, zap.String("type", e.TypeName), zap.String("module", e.ModuleName))
	case *fxevent.Provided:
		a.result("Provided", e.Err,
			zap.Strings("types", e.OutputTypeNames),
			zap.String("constructor", e.ConstructorName),
			zap.String("module", e.ModuleName))
	case *fxevent.Invoking:
		a.logger.Debug("Invoking", zap.String("function", e.FunctionName), zap.String("module", e.ModuleName))
	case *fxevent.Invoked:
		a.result("Invoked", e.Err, zap.String("function", e.FunctionName), zap.String("module", e.ModuleName))
	case *fxevent.Stopping:
		a.logger.Info("Received signal", zap.String("signal", e.Signal.String()))
	case *fxevent.Stopped:
		a.status("Stopped", e.Err)
	case *fxevent.RollingBack:
		a.logger.Error("Start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		a.status("Rolled back", e.Err)
	case *fxevent.Started:
		a.status("Started", e.Err)
	case *fxevent.LoggerInitialized:
		a.result("Logger initialized", e.Err, zap.String("constructor", e.ConstructorName))
	default:
		a.logger.Debug("Unhandled Fx event", zap.String("event", fmt.Sprintf("%T", event)))
	}
}

func (a *FxLoggerAdapter) hookResult(hook, callee, caller, runtime string, err error) {
	fields := []zap.Field{
		zap.String("callee", callee),
		zap.String("caller", caller),
	}
	if err != nil {
		a.logger.Error(hook+" hook failed", append(fields, zap.Error(err))...)
		return
	}
	a.logger.Debug(hook+" hook executed", append(fields, zap.String("runtime", runtime))...)
}

func (a *FxLoggerAdapter) result(msg string, err error, fields ...zap.Field) {
	if err != nil {
		a.logger.Error(msg+" with error", append(fields, zap.Error(err))...)
		return
	}
	a.logger.Debug(msg, fields...)
}

func (a *FxLoggerAdapter) status(msg string, err error) {
	if err != nil {
		a.logger.Error(msg+" with error", zap.Error(err))
		return
	}
	a.logger.Info(msg)
}
