package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

type Format int8

const (
	Unspecified Format = iota
	Pretty
	Plain
	Json
)

// FormatIds maps formats to their flag spellings.
var FormatIds = map[Format][]string{
	Unspecified: {""},
	Pretty:      {"pretty"},
	Plain:       {"plain"},
	Json:        {"json"},
}

// LevelIds maps the levels selectable on the command line to their spellings.
var LevelIds = map[zerolog.Level][]string{
	zerolog.TraceLevel: {"trace"},
	zerolog.DebugLevel: {"debug"},
	zerolog.InfoLevel:  {"info"},
	zerolog.WarnLevel:  {"warn"},
	zerolog.ErrorLevel: {"error"},
}

// Configure sets up the global logger writing to out. An unspecified format
// becomes Pretty when out is a terminal and Plain otherwise.
func Configure(out io.Writer, level zerolog.Level, format Format) zerolog.Logger {
	if format == Unspecified {
		if isTerminal(out) {
			format = Pretty
		} else {
			format = Plain
		}
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(out).With().Timestamp().Logger()
	switch format {
	case Pretty, Plain:
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00", // RFC3339 with milliseconds
			NoColor:    format == Plain,
		})
	}

	log.Logger = logger
	return logger
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
