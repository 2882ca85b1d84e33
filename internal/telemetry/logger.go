package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// LogOptions controls how the process logger is built.
type LogOptions struct {
	// Level is a zerolog level name ("debug", "info", ...). Empty or
	// unparseable values fall back to info.
	Level string

	// Format selects the output encoding: "json", "console", or "auto"
	// (console when Output is a terminal, JSON otherwise). Empty means auto.
	Format string

	// Output receives log lines. Defaults to stderr so command output on
	// stdout stays machine-readable.
	Output io.Writer
}

// NewLogger builds the zerolog logger for a lockstep process.
func NewLogger(opts LogOptions) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	format := opts.Format
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := out.(*os.File); ok {
			if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
				format = "console"
			}
		}
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a component name, so log
// lines from the engine adapter, the waiter, and so on stay attributable.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
