// Package logging provides structured logging with zerolog.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logging configuration.
type Config struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	TimeFormat string `yaml:"time_format"` // RFC3339, Unix, etc.
}

// DefaultConfig returns sensible default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: time.RFC3339,
	}
}

// Init initializes the global zerolog logger.
func Init(cfg Config) {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.Kitchen,
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "meeting-audio-pipeline").
		Logger()
}

// WithComponent returns a logger tagged with a component name.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// WithSource returns a logger tagged with an audio source ("mic"/"system").
func WithSource(component, source string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("source", source).
		Logger()
}

// WithSegment returns a logger with segment context.
func WithSegment(component, source, segmentID string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("source", source).
		Str("segmentId", segmentID).
		Logger()
}

// WithMeeting returns a logger with meeting context.
func WithMeeting(component, meetingID string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("meetingId", meetingID).
		Logger()
}
