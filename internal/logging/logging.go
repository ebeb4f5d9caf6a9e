// Package logging builds the structured logger shared by the client and
// helixctl.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
)

type Format string

const (
	FormatAuto   Format = "auto"
	FormatText   Format = "text"
	FormatLogfmt Format = "logfmt"
	FormatJSON   Format = "json"
)

type Options struct {
	Level  string
	Format Format
	Prefix string
}

// New returns a logger writing to w. The auto format picks text on a
// terminal and logfmt everywhere else.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := log.ParseLevel(strings.TrimSpace(opts.Level))
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	formatter, err := formatterFor(w, opts.Format)
	if err != nil {
		return nil, err
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	}), nil
}

// Discard is a logger for tests and library callers that do not want output.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

func formatterFor(w io.Writer, format Format) (log.Formatter, error) {
	switch Format(strings.ToLower(string(format))) {
	case "", FormatAuto:
		if isTerminal(w) {
			return log.TextFormatter, nil
		}
		return log.LogfmtFormatter, nil
	case FormatText:
		return log.TextFormatter, nil
	case FormatLogfmt:
		return log.LogfmtFormatter, nil
	case FormatJSON:
		return log.JSONFormatter, nil
	default:
		return 0, fmt.Errorf("unknown log format %q", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
