package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the component-tagged logging surface shared by every package.
type Logger interface {
	Debug(component, message string, fields map[string]interface{})
	Info(component, message string, fields map[string]interface{})
	Warning(component, message string, fields map[string]interface{})
	Error(component string, err error, fields map[string]interface{})
}

type Options struct {
	Level string
	Human bool
	Out   io.Writer
}

// New builds a zerolog-backed Logger from options. An empty level means info.
func New(opts Options) (*ZerologAdapter, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	if opts.Human {
		return NewZerolog(zerolog.ConsoleWriter{Out: out}, level), nil
	}
	return NewZerolog(out, level), nil
}

func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewNop returns a Logger that drops everything.
func NewNop() *ZerologAdapter {
	return &ZerologAdapter{logger: zerolog.Nop()}
}
