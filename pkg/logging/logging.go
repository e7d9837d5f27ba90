// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TimeFormat is the timestamp layout of the console output.
const TimeFormat = "2006-01-02_15:04:05"

const filePerms = 0o666

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Options selects the log destination and format.
type Options struct {
	// Level is a zerolog level name; empty means info.
	Level string
	// File, when set, receives the log instead of stderr. The board always needs a file
	// because stderr belongs to the terminal UI.
	File string
	// JSON writes one JSON object per line instead of the console format.
	JSON bool
}

// Setup points log.Logger at the destination described by opts. The returned closer
// releases the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	level := zerolog.InfoLevel

	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("error parsing log level: %w", err)
		}

		level = parsed
	}

	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)

	if opts.File != "" {
		logFile, err := os.OpenFile(opts.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, fs.FileMode(filePerms))
		if err != nil {
			return nil, fmt.Errorf("error opening log file: %w", err)
		}

		out, closer = logFile, logFile
	}

	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: TimeFormat, NoColor: opts.File != ""}
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()

	return closer, nil
}
