package log

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// Init configures the global zerolog logger from the environment:
// LOG_LEVEL selects verbosity (debug/info/warn/error, default info),
// LOG_FILE redirects output to a file instead of stderr, and color is
// auto-detected against the output stream unless DISABLE_COLORS is set.
func Init() {
	level := zerolog.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)

	var out *os.File = os.Stderr
	if path := os.Getenv("LOG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out = f
		}
	}

	noColor := os.Getenv("DISABLE_COLORS") != "" || !term.IsTerminal(int(out.Fd()))
	writer := zerolog.ConsoleWriter{Out: out, NoColor: noColor, TimeFormat: "15:04:05"}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}
