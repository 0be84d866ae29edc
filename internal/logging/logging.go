// Package logging builds the zap loggers shared by every farmer.
//
// Console output is colored and human oriented; when a file is configured a
// second JSON core writes rotated logs next to it.
package logging

import (
	"fmt"
	"io"

	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configure New.
type Options struct {
	Level string
	File  string
	// Console overrides stdout, mostly for tests.
	Console io.Writer
}

// New creates the root logger.
func New(opts Options) (*zap.Logger, error) {
	level := zap.InfoLevel
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: parse level: %w", err)
		}
		level = parsed
	}

	console := opts.Console
	if console == nil {
		console = colorable.NewColorableStdout()
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), level),
	}

	if opts.File != "" {
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			writer,
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

// ForSession tags every entry with the session name.
func ForSession(lg *zap.Logger, session string) *zap.Logger {
	return lg.With(zap.String("session", session))
}
