package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the process-wide root logger. Components derive from it via
// GetForComponent rather than logging through it directly.
var Logger zerolog.Logger

// Initialize configures the root logger. Output is human-readable console
// format unless SVM_LOG_JSON is set, in which case raw JSON goes to stdout
// for log shippers.
func Initialize(logLevel string) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if os.Getenv("SVM_LOG_JSON") == "" {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	Logger = zerolog.New(out).With().Timestamp().Caller().Logger()

	level, err := zerolog.ParseLevel(strings.ToLower(logLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = Logger
}

// GetForComponent returns a logger tagged with a component field.
func GetForComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// ForCycle tags a component logger with the cycle ID so one cycle's logs can
// be traced across components.
func ForCycle(base zerolog.Logger, cycleID string) zerolog.Logger {
	return base.With().Str("cycle_id", cycleID).Logger()
}
