// Package logging builds the zerolog loggers used by the didauth binaries and
// keeps credential material out of log output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Level is a zerolog level name ("debug", "info", ...). Empty means info.
	Level string
	// Format is "json" (default) or "console".
	Format string

	// File, when set, receives a copy of every log line with rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a logger writing to console (normally os.Stderr) and, when
// opts.File is set, to a rotating file. Every sink is wrapped in a
// FilteringWriter. The returned Closer releases the log file.
func New(opts Options, console io.Writer) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q", opts.Level)
		}
		level = l
	}

	if console == nil {
		console = os.Stderr
	}
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		console = NewFilteringWriter(console)
	case "console":
		console = zerolog.ConsoleWriter{Out: NewFilteringWriter(console), TimeFormat: "15:04:05"}
	default:
		return zerolog.Nop(), nil, fmt.Errorf("invalid log format %q (want json or console)", opts.Format)
	}

	var (
		writer io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 50),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 30),
			Compress:   true,
		}
		writer = zerolog.MultiLevelWriter(console, NewFilteringWriter(lj))
		closer = lj
	}

	logger := zerolog.New(writer).Level(level).Hook(SensitiveDataHook{}).With().Timestamp().Logger()
	return logger, closer, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
