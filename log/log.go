// Package log wraps zap the way the teacher's common/log wraps it: a
// small Logger interface backed by a *zap.SugaredLogger, one default
// logger built once, and every component constructor taking a Logger
// explicitly instead of reaching for a package-level global.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is an interface that can log to different levels.
type Logger interface {
	Info(keyvals ...interface{})
	Debug(keyvals ...interface{})
	Warn(keyvals ...interface{})
	Error(keyvals ...interface{})
	Fatal(keyvals ...interface{})
	// With returns a new Logger that inserts the given key value pairs for
	// each statement at each level.
	With(keyvals ...interface{}) Logger
}

const (
	// LogNone forbids any log entries
	LogNone int = iota
	// LogInfo sets the logging verbosity to info
	LogInfo
	// LogDebug sets the logging verbosity to debug
	LogDebug
)

func zapLevel(level int) zapcore.Level {
	switch level {
	case LogNone:
		return zapcore.Level(99) // above Fatal, so nothing is ever enabled
	case LogDebug:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// DefaultLevel is the default level where statements are logged. Change the
// value of this variable before the first call to DefaultLogger to change
// the level of the default logger.
var DefaultLevel = LogInfo

var defaultLogger Logger
var defaultLoggerSet sync.Once

// DefaultLogger is the default logger that only logs at DefaultLevel.
func DefaultLogger() Logger {
	defaultLoggerSet.Do(func() {
		defaultLogger = NewLogger(nil, DefaultLevel)
	})
	return defaultLogger
}

type zapLogger struct {
	*zap.SugaredLogger
}

// NewLogger returns a Logger backed by zap, writing to w (stderr if nil)
// at the given level.
func NewLogger(w zapcore.WriteSyncer, level int) Logger {
	if w == nil {
		w = zapcore.AddSync(os.Stderr)
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), w, zapLevel(level))
	return &zapLogger{zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()}
}

// split treats kv[0] as the zap event message and the remainder as the
// alternating key/value pairs, matching how the teacher's core package
// calls its own Infow/Debugw (e.g. core/drand_beacon.go).
func split(kv []interface{}) (string, []interface{}) {
	if len(kv) == 0 {
		return "", nil
	}
	msg, _ := kv[0].(string)
	return msg, kv[1:]
}

func (z *zapLogger) Info(kv ...interface{}) {
	msg, rest := split(kv)
	z.SugaredLogger.Infow(msg, rest...)
}

func (z *zapLogger) Debug(kv ...interface{}) {
	msg, rest := split(kv)
	z.SugaredLogger.Debugw(msg, rest...)
}

func (z *zapLogger) Warn(kv ...interface{}) {
	msg, rest := split(kv)
	z.SugaredLogger.Warnw(msg, rest...)
}

func (z *zapLogger) Error(kv ...interface{}) {
	msg, rest := split(kv)
	z.SugaredLogger.Errorw(msg, rest...)
}

func (z *zapLogger) Fatal(kv ...interface{}) {
	msg, rest := split(kv)
	z.SugaredLogger.Fatalw(msg, rest...)
}

func (z *zapLogger) With(kv ...interface{}) Logger {
	return &zapLogger{z.SugaredLogger.With(kv...)}
}
