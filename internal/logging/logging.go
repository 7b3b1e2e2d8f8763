// Package logging builds the process logger: console output plus an optional
// size-rotated log file.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"gpsfeed/internal/config"
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// New returns a named logger writing to console and, when cfg.File is set,
// to a lumberjack-rotated file. The returned closer flushes and closes the file.
func New(cfg config.LogConfig, name string, console io.Writer) (*zap.SugaredLogger, io.Closer, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}
	if console == nil {
		console = os.Stderr
	}
	atom := zap.NewAtomicLevelAt(level)

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(console), atom),
	}

	var rot *lumberjack.Logger
	if cfg.File != "" {
		rot = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rot), atom))
	}

	logger := zap.New(zapcore.NewTee(cores...)).Sugar().Named(name)
	return logger, &closer{logger: logger, file: rot}, nil
}

type closer struct {
	logger *zap.SugaredLogger
	file   *lumberjack.Logger
}

func (c *closer) Close() error {
	// Sync on a console fd routinely fails with EINVAL; only the file matters.
	_ = c.logger.Sync()
	if c.file == nil {
		return nil
	}
	return c.file.Close()
}
