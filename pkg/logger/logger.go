package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity that gets written.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

const messageKey = "message"

func (l Level) zap() (zapcore.Level, error) {
	switch Level(strings.ToLower(string(l))) {
	case DebugLevel:
		return zapcore.DebugLevel, nil
	case InfoLevel, "":
		return zapcore.InfoLevel, nil
	case WarnLevel:
		return zapcore.WarnLevel, nil
	case ErrorLevel:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", string(l))
	}
}

// Options configures New. Zero values give JSON on stderr at info level.
type Options struct {
	Level       Level
	Format      string // "json" or "console"
	OutputPaths []string
}

// Validate reports option values New would refuse.
func (o Options) Validate() error {
	if _, err := o.Level.zap(); err != nil {
		return err
	}
	switch o.Format {
	case "", "json", "console":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", o.Format)
	}
}

// New builds a production zap logger with "message" as the message key.
func New(opts Options) (*zap.Logger, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	lvl, _ := opts.Level.zap()

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.MessageKey = messageKey
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Format == "console" {
		cfg.Encoding = "console"
	}
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}
	return cfg.Build()
}
