// Package logx is the structured logger used across lsp-provision.
// The Logger interface takes key/value pairs and is backed by zap.
package logx

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLevel names the environment variable that selects the default level.
const EnvLevel = "LSPPROVISION_LOG_LEVEL"

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Err(err error, kv ...any)
	With(kv ...any) Logger
	SetLevel(lvl Level)
}

type zapLogger struct {
	lvl zap.AtomicLevel
	lg  *zap.SugaredLogger
}

// New creates a stderr logger whose level comes from LSPPROVISION_LOG_LEVEL.
func New() Logger {
	return NewWithWriter(os.Stderr, parseLevel(os.Getenv(EnvLevel)))
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{lvl: zap.NewAtomicLevelAt(zapcore.FatalLevel), lg: zap.NewNop().Sugar()}
}

// NewWithWriter creates a console logger writing to w.
func NewWithWriter(w io.Writer, lvl Level) Logger {
	atom := zap.NewAtomicLevelAt(toZap(lvl))

	encCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeLevel:      encodeTag,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(w)), atom)

	return &zapLogger{lvl: atom, lg: zap.New(core).Sugar()}
}

func (s *zapLogger) With(kv ...any) Logger {
	return &zapLogger{lvl: s.lvl, lg: s.lg.With(kv...)}
}

// SetLevel changes the level of this logger and every logger derived from it.
func (s *zapLogger) SetLevel(lvl Level) {
	s.lvl.SetLevel(toZap(lvl))
}

func (s *zapLogger) Debug(msg string, kv ...any) { s.lg.Debugw(msg, kv...) }
func (s *zapLogger) Info(msg string, kv ...any)  { s.lg.Infow(msg, kv...) }
func (s *zapLogger) Warn(msg string, kv ...any)  { s.lg.Warnw(msg, kv...) }
func (s *zapLogger) Err(err error, kv ...any) {
	if err == nil {
		return
	}
	s.lg.Errorw(err.Error(), kv...)
}

// encodeTag keeps the short three-letter level tags.
func encodeTag(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch l {
	case zapcore.DebugLevel:
		enc.AppendString("DBG")
	case zapcore.InfoLevel:
		enc.AppendString("INF")
	case zapcore.WarnLevel:
		enc.AppendString("WRN")
	default:
		enc.AppendString("ERR")
	}
}

func toZap(lvl Level) zapcore.Level {
	switch lvl {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "dbg":
		return LevelDebug
	case "info", "inf", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "err", "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseLevel converts a level name into a Level, defaulting to LevelInfo.
func ParseLevel(s string) Level {
	return parseLevel(s)
}
