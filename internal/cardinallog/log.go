// Package cardinallog constructs the process-wide zap logger, optionally
// rolling file output through timberjack, following the same
// construct-once-and-thread-down pattern Caddy uses for its *zap.Logger.
package cardinallog

import (
	"os"

	"github.com/DeRuina/timberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileSink configures rotation when logs are written to a file instead of
// stderr.
type FileSink struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Options controls logger construction.
type Options struct {
	Level string // debug|info|warn|error
	File  *FileSink
}

// New builds a *zap.Logger per Options. Unknown levels default to info.
func New(opts Options) (*zap.Logger, error) {
	level := parseLevel(opts.Level)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var writer zapcore.WriteSyncer
	if opts.File != nil && opts.File.Path != "" {
		roller := &timberjack.Logger{
			Filename:   opts.File.Path,
			MaxSize:    nonZero(opts.File.MaxSizeMB, 100),
			MaxBackups: opts.File.MaxBackups,
			MaxAge:     opts.File.MaxAgeDays,
		}
		writer = zapcore.AddSync(roller)
	} else {
		writer = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, level)
	return zap.New(core), nil
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func nonZero(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
